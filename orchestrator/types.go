package orchestrator

import (
	"time"

	"github.com/maastricht-university/affect-demo/clients"
	"github.com/maastricht-university/affect-demo/fusion"
)

// BiosignalPrediction is the CNN output for one PPG segment.
type BiosignalPrediction struct {
	SegmentID         int        `json:"segment_id"` // 1-based
	Valence           int        `json:"valence"`    // class index
	Arousal           int        `json:"arousal"`    // class index
	Confidence        float64    `json:"confidence"`
	ValenceConfidence float64    `json:"valence_confidence"`
	ArousalConfidence float64    `json:"arousal_confidence"`
	Timestamp         float64    `json:"timestamp"` // sec from recording start
	StartTime         *time.Time `json:"start_time,omitempty"`
	PPGSegment        []float64  `json:"ppg_segment"`
}

// VisualPrediction is one face found in one sampled frame.
type VisualPrediction struct {
	FrameID        int              `json:"frame_id"`
	Timestamp      float64          `json:"timestamp"` // sec
	FaceID         int              `json:"face_id"`
	Emotion        string           `json:"emotion"`
	Confidence     float64          `json:"confidence"`
	Valence        float64          `json:"valence"`
	Arousal        float64          `json:"arousal"`
	Position       clients.Position `json:"position"`
	ProcessingTime time.Time        `json:"processing_time"`
}

type FusedMetadata struct {
	TimeDifference   float64 `json:"time_difference"`
	VisualTimestamp  float64 `json:"visual_timestamp"`
	VisualEmotion    string  `json:"visual_emotion"`
	VisualFaceID     int     `json:"visual_face_id"`
	BiosignalValence float64 `json:"biosignal_valence"`
	BiosignalArousal float64 `json:"biosignal_arousal"`
}

// FusedPrediction pairs one biosignal segment with its nearest visual record.
type FusedPrediction struct {
	FusionID              int             `json:"fusion_id"`
	BiosignalSegment      int             `json:"biosignal_segment"`
	VisualFrame           int             `json:"visual_frame"`
	Timestamp             float64         `json:"timestamp"`
	Valence               float64         `json:"valence"`
	Arousal               float64         `json:"arousal"`
	DiscreteEmotion       string          `json:"discrete_emotion"`
	FusionConfidence      float64         `json:"fusion_confidence"`
	FusionStrategy        fusion.Strategy `json:"fusion_strategy"`
	BiosignalContribution float64         `json:"biosignal_contribution"`
	VisualContribution    float64         `json:"visual_contribution"`
	Metadata              FusedMetadata   `json:"metadata"`
}

// Result is what Run reports back to the caller.
type Result struct {
	RunID       string
	Biosignal   int
	Visual      int
	Fused       int
	StageErrors []StageError
	Elapsed     time.Duration
	OutputDir   string
}
