package clients

import (
	"context"
	"fmt"
)

// --- Biosignal CNN (/load, /predict) ---
type BioLoadReq struct {
	Weights string `json:"weights"`
}

type BioPredictReq struct {
	Segments [][]float64 `json:"segments"`
}

// BioPredictResp holds one row of raw logits per segment for each head.
type BioPredictResp struct {
	ValenceLogits [][]float64 `json:"valence_logits"`
	ArousalLogits [][]float64 `json:"arousal_logits"`
}

// BioLoad asks the model service to load weights; the service answers 200
// once the model is ready for inference.
func (h *HTTP) BioLoad(ctx context.Context, url, weights string) error {
	return h.postJSON(ctx, "biosignal load", url+"/load", BioLoadReq{Weights: weights}, nil)
}

// BioPredict runs the CNN over a batch of equal-length segments.
func (h *HTTP) BioPredict(ctx context.Context, url string, segments [][]float64) (*BioPredictResp, error) {
	var out BioPredictResp
	if err := h.postJSON(ctx, "biosignal predict", url+"/predict", BioPredictReq{Segments: segments}, &out); err != nil {
		return nil, err
	}
	if len(out.ValenceLogits) != len(segments) || len(out.ArousalLogits) != len(segments) {
		return nil, fmt.Errorf("biosignal predict: %d segments in, %d/%d logit rows out",
			len(segments), len(out.ValenceLogits), len(out.ArousalLogits))
	}
	return &out, nil
}
