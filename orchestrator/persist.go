package orchestrator

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeBiosignalCSV writes the per-segment class predictions. The timestamp
// column is wall-clock when the recording had a start time, seconds from the
// start of the recording otherwise.
func writeBiosignalCSV(path string, preds []BiosignalPrediction) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "valence_prediction", "arousal_prediction"}); err != nil {
		return err
	}
	for _, p := range preds {
		ts := strconv.FormatFloat(p.Timestamp, 'f', 3, 64)
		if p.StartTime != nil {
			ts = p.StartTime.UTC().Format(isoMillis)
		}
		if err := w.Write([]string{ts, strconv.Itoa(p.Valence), strconv.Itoa(p.Arousal)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
