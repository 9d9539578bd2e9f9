package pipeline

import "time"

// Outcome classifies a run for status reporting.
type Outcome string

const (
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeDelivered   Outcome = "delivered"
	OutcomePartial     Outcome = "partial"
	OutcomeUndelivered Outcome = "undelivered"
	// OutcomeNotRun marks a run that never started, e.g. on a configuration error.
	OutcomeNotRun Outcome = "not_run"
)

// RunSummary is what one screening run did.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Watched         int           `json:"watched"`
	LookupMisses    int           `json:"lookup_misses"`
	FetchFailures   int           `json:"fetch_failures"`
	Matched         int           `json:"matched"`
	ChunksSent      int           `json:"chunks_sent"`
	ChunksFailed    int           `json:"chunks_failed"`
	OversizedChunks int           `json:"oversized_chunks,omitempty"`
	Errors          []string      `json:"errors,omitempty"`
}

// Outcome tells "nothing matched" apart from full, partial and failed delivery.
func (s RunSummary) Outcome() Outcome {
	switch {
	case s.Matched == 0:
		return OutcomeNoMatch
	case s.ChunksFailed == 0:
		return OutcomeDelivered
	case s.ChunksSent > 0:
		return OutcomePartial
	default:
		return OutcomeUndelivered
	}
}
