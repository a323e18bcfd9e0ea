package clients

import "context"

// --- Dashboard (/generate-timeline) ---
type TimelineReq struct {
	RunID      string    `json:"run_id"`
	Timestamps []float64 `json:"timestamps"`
	Valence    []float64 `json:"valence"`
	Arousal    []float64 `json:"arousal"`
	Emotions   []string  `json:"emotions"`
	OutputDir  string    `json:"output_dir,omitempty"`
}

type TimelineResp struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

func (h *HTTP) GenerateTimeline(ctx context.Context, url string, req TimelineReq) (*TimelineResp, error) {
	var out TimelineResp
	if err := h.postJSON(ctx, "dashboard timeline", url+"/generate-timeline", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
