package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// --- Face expression detector (/detect) ---
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type Face struct {
	Emotion    string             `json:"emotion"`
	Confidence float64            `json:"confidence"`
	Position   Position           `json:"position"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

type DetectResp struct {
	Faces []Face `json:"faces"`
}

// Detect uploads one JPEG frame and returns the faces found in it.
func (h *HTTP) Detect(ctx context.Context, url, framePath string) (*DetectResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("frame", filepath.Base(framePath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(framePath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/detect", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("detect %s: %s", resp.Status, string(body))
	}

	var out DetectResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detect decode: %w", err)
	}
	return &out, nil
}
