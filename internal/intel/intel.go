package intel

import (
	"context"
	"errors"

	"crisiswatch/internal/model"
)

// ErrMalformedOutput marks collaborator output that failed strict
// decoding. Callers recover with fallback values; this error never
// aborts a scan.
var ErrMalformedOutput = errors.New("intel: malformed collaborator output")

// PanicScorer rates a batch of headlines for fear and urgency language.
type PanicScorer interface {
	ScorePanic(ctx context.Context, headlines []string) (model.PanicAssessment, error)
}

// ThreatSummary is the fixed-shape record handed to the response
// generator once a threat is verified.
type ThreatSummary struct {
	CompanyName  string
	FakeHeadline string
	DropPct      float64
	PanicScore   int
}

// ResponseGenerator drafts the three crisis-communication texts for a
// verified threat.
type ResponseGenerator interface {
	GenerateResponses(ctx context.Context, summary ThreatSummary) (model.ResponseSet, error)
}
