package models

// Label is a classifier output.
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Utterance is one transcribed segment with its classifications.
type Utterance struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Emotion   Label   `json:"emotion"`
	Sentiment Label   `json:"sentiment"`
}

// Overall aggregates utterance classifications across the whole video.
type Overall struct {
	DominantEmotion       string             `json:"dominantEmotion"`
	DominantSentiment     string             `json:"dominantSentiment"`
	EscalationRisk        float64            `json:"escalationRisk"`
	EmotionDistribution   map[string]float64 `json:"emotionDistribution"`
	SentimentDistribution map[string]float64 `json:"sentimentDistribution"`
}

// Result is the analysis document the worker writes to object storage.
// The service stores and serves it verbatim; this type is used by clients
// that want to inspect it.
type Result struct {
	JobID      string      `json:"jobId,omitempty"`
	OrgID      string      `json:"orgId,omitempty"`
	Overall    Overall     `json:"overall"`
	Utterances []Utterance `json:"utterances"`
}
