package pipeline

import (
	"fmt"
	"time"

	"crisiswatch/internal/model"
)

// Stage identifies a pipeline stage for failure and degradation
// reporting. Correlation has no stage constant: it is pure computation
// and cannot fail.
type Stage string

const (
	StageScan    Stage = "scan"
	StageHunt    Stage = "hunt"
	StageRespond Stage = "respond"
	StageArchive Stage = "archive"
)

// StageError wraps a collaborator failure with the stage it happened in,
// so the caller can retry just that stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Outcome is the terminal state a scan reached.
type Outcome string

const (
	// OutcomeNormal: no anomaly, no action needed.
	OutcomeNormal Outcome = "NORMAL"
	// OutcomeOrganic: anomaly detected but no misinformation trigger found.
	OutcomeOrganic Outcome = "ORGANIC"
	// OutcomeLowConfidence: correlation below the gate, flagged for manual review.
	OutcomeLowConfidence Outcome = "LOW_CONFIDENCE"
	// OutcomeVerified: high-confidence attack, responses drafted and archived.
	OutcomeVerified Outcome = "VERIFIED"
	// OutcomeFailed: a collaborator failed; FailedStage and Err carry the context.
	OutcomeFailed Outcome = "FAILED"
)

// ScanResult is the typed result of one ticker scan. Fields beyond
// Outcome are populated progressively as the scan advances; a Verified
// result carries everything a Normal result does plus the attack.
type ScanResult struct {
	Ticker      string
	Outcome     Outcome
	ScannedAt   time.Time
	Stats       *model.VolatilityStats
	Prediction  *model.Prediction
	Hunt        *model.HuntResult
	Correlation *model.CorrelationResult
	Attack      *model.AttackPackage
	// Degraded lists stages that fell back to a reduced result
	// (placeholder responses, unarchived attack) without failing the scan.
	Degraded    []Stage
	FailedStage Stage
	Err         error
}

// Failed reports whether the scan aborted on a collaborator error.
func (r ScanResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}
