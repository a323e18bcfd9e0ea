package orchestrator

import (
	"errors"
	"math"
)

// classify returns argmax(logits) and its softmax probability.
func classify(logits []float64) (class int, confidence float64, err error) {
	if len(logits) == 0 {
		return 0, 0, errors.New("empty logits")
	}
	for _, v := range logits {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, errors.New("non-finite logit")
		}
	}
	probs := softmax(logits)
	for i, p := range probs {
		if p > probs[class] {
			class = i
		}
	}
	return class, probs[class], nil
}

func softmax(logits []float64) []float64 {
	hi := math.Inf(-1)
	for _, v := range logits {
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}
