package fusion

import (
	"fmt"
	"strings"
)

type Strategy string

const (
	WeightedAverage    Strategy = "weighted_average"
	ConfidenceWeighted Strategy = "confidence_weighted"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "", WeightedAverage:
		return WeightedAverage, nil
	case ConfidenceWeighted:
		return ConfidenceWeighted, nil
	default:
		return "", fmt.Errorf("unknown fusion strategy %q", s)
	}
}

type Weights struct {
	Biosignal float64 `json:"biosignal"`
	Visual    float64 `json:"visual"`
}

// Biosignal is one CNN segment prediction: class indices plus confidence.
type Biosignal struct {
	Valence    int
	Arousal    int
	Confidence float64
}

// Visual is one detector prediction already mapped to the affect plane.
type Visual struct {
	Emotion    string
	Valence    float64
	Arousal    float64
	Confidence float64
}

type Result struct {
	Affect
	DiscreteEmotion       string
	Confidence            float64
	Strategy              Strategy
	BiosignalContribution float64
	VisualContribution    float64
	BiosignalAffect       Affect // CNN classes on the affect plane
}

// Module is the late-fusion stage. It is stateless after construction.
type Module struct {
	strategy Strategy
	weights  Weights
	classes  int
}

// New validates the strategy and weights. classes is the number of CNN
// output classes per head.
func New(strategy Strategy, w Weights, classes int) (*Module, error) {
	strategy, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	if w.Biosignal < 0 || w.Visual < 0 || w.Biosignal+w.Visual <= 0 {
		return nil, fmt.Errorf("fusion weights %+v: need non-negative weights with a positive sum", w)
	}
	if classes < 2 {
		return nil, fmt.Errorf("fusion: %d biosignal classes, need at least 2", classes)
	}
	return &Module{strategy: strategy, weights: w, classes: classes}, nil
}

func (m *Module) Strategy() Strategy { return m.strategy }
func (m *Module) Weights() Weights   { return m.weights }

// Fuse mixes one biosignal and one visual prediction.
func (m *Module) Fuse(b Biosignal, v Visual) Result {
	bio := Affect{
		Valence: ClassToAffect(b.Valence, m.classes),
		Arousal: ClassToAffect(b.Arousal, m.classes),
	}

	wb, wv := m.weights.Biosignal, m.weights.Visual
	if m.strategy == ConfidenceWeighted {
		cb, cv := wb*clamp(b.Confidence, 0, 1), wv*clamp(v.Confidence, 0, 1)
		if cb+cv > 0 {
			wb, wv = cb, cv
		}
	}
	sum := wb + wv
	wb, wv = wb/sum, wv/sum

	fused := Affect{
		Valence: clamp(wb*bio.Valence+wv*v.Valence, -1, 1),
		Arousal: clamp(wb*bio.Arousal+wv*v.Arousal, -1, 1),
	}
	return Result{
		Affect:                fused,
		DiscreteEmotion:       Label(fused),
		Confidence:            clamp(wb*b.Confidence+wv*v.Confidence, 0, 1),
		Strategy:              m.strategy,
		BiosignalContribution: wb,
		VisualContribution:    wv,
		BiosignalAffect:       bio,
	}
}
