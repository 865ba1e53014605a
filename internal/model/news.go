package model

import "time"

// NewsArticle is an immutable headline candidate. Articles without a
// parseable publish time are dropped at the source, never retained.
type NewsArticle struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
}

// AgeMinutes reports how long ago the article was published.
func (a NewsArticle) AgeMinutes(now time.Time) float64 {
	return now.Sub(a.PublishedAt).Minutes()
}

// PanicAssessment is the scored output of a single headline batch.
type PanicAssessment struct {
	Score               int    `json:"panic_score"`
	HighestRiskHeadline string `json:"highest_risk_headline"`
	RiskReason          string `json:"risk_reason"`
}

// HuntVerdict summarises the outcome of a reactive news hunt.
type HuntVerdict string

const (
	VerdictMisinformationLikely HuntVerdict = "MISINFORMATION_LIKELY"
	VerdictOrganicVolatility    HuntVerdict = "ORGANIC_VOLATILITY"
	VerdictNoMisinformation     HuntVerdict = "NO_MISINFORMATION_DETECTED"
)

// HuntResult is the hunter's answer to "what pushed this ticker down?".
// It is always structurally valid: scorer failures surface through
// ScoringError with a zero panic score, not through a missing result.
type HuntResult struct {
	Ticker          string
	CrashTime       time.Time
	Articles        []NewsArticle
	Assessment      PanicAssessment
	SmokingGunFound bool
	Verdict         HuntVerdict
	ScoringError    string
}
