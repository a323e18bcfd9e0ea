package orchestrator

import "errors"

// Error kinds a stage can end with. Stage errors wrap exactly one of them.
var (
	ErrModelUnavailable = errors.New("model unavailable")
	ErrMalformedInput   = errors.New("malformed input")
	ErrIO               = errors.New("i/o failure")
)

// StageError is a recovered stage failure as written to the run summary.
type StageError struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "internal"
	}
}
