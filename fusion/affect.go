// Package fusion combines per-modality emotion predictions: it places both
// modalities on the valence/arousal plane, pairs records by time and mixes
// them with a late-fusion strategy.
package fusion

import (
	"math"
	"strings"
)

// Affect is a point on the valence/arousal plane, both axes in [-1, 1].
type Affect struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

type anchor struct {
	label string
	Affect
}

// Circumplex positions of the detector's label set. Order matters for
// Label: ties go to the earlier entry.
var anchors = []anchor{
	{"neutral", Affect{0, 0}},
	{"happy", Affect{0.8, 0.5}},
	{"surprise", Affect{0.4, 0.8}},
	{"angry", Affect{-0.6, 0.7}},
	{"fear", Affect{-0.7, 0.6}},
	{"disgust", Affect{-0.7, 0.3}},
	{"contempt", Affect{-0.5, 0.1}},
	{"sad", Affect{-0.7, -0.4}},
}

var aliases = map[string]string{
	"anger":     "angry",
	"happiness": "happy",
	"joy":       "happy",
	"sadness":   "sad",
	"surprised": "surprise",
	"fearful":   "fear",
	"disgusted": "disgust",
	"calm":      "neutral",
}

// canonical lower-cases label and folds known synonyms.
func canonical(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if a, ok := aliases[l]; ok {
		return a
	}
	return l
}

// MapEmotion returns the circumplex position of label scaled by the
// detector confidence. ok is false for labels outside the table.
func MapEmotion(label string, confidence float64) (Affect, bool) {
	l := canonical(label)
	c := clamp(confidence, 0, 1)
	for _, a := range anchors {
		if a.label == l {
			return Affect{Valence: a.Valence * c, Arousal: a.Arousal * c}, true
		}
	}
	return Affect{}, false
}

// Label names the anchor nearest to a.
func Label(a Affect) string {
	best, bestDist := anchors[0].label, math.Inf(1)
	for _, an := range anchors {
		d := math.Hypot(a.Valence-an.Valence, a.Arousal-an.Arousal)
		if d < bestDist {
			best, bestDist = an.label, d
		}
	}
	return best
}

// ClassToAffect spreads class indices 0..classes-1 evenly over [-1, 1].
func ClassToAffect(class, classes int) float64 {
	if classes < 2 {
		return 0
	}
	c := min(max(class, 0), classes-1)
	return -1 + 2*float64(c)/float64(classes-1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
