package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CorrelationVerdict grades the causality match between an article and a crash.
type CorrelationVerdict string

const (
	CorrelationHighConfidence   CorrelationVerdict = "HIGH_CONFIDENCE"
	CorrelationMediumConfidence CorrelationVerdict = "MEDIUM_CONFIDENCE"
	CorrelationNoTemporalMatch  CorrelationVerdict = "NO_TEMPORAL_MATCH"
	CorrelationNoNewsData       CorrelationVerdict = "NO_NEWS_DATA"
)

// CorrelationResult quantifies whether a specific article caused a price
// anomaly. LatencyMinutes is crash time minus article time and is only
// meaningful when Found is true.
type CorrelationResult struct {
	Found           bool               `json:"found"`
	SmokingGun      *NewsArticle       `json:"smoking_gun,omitempty"`
	LatencyMinutes  float64            `json:"latency_minutes"`
	Confidence      int                `json:"confidence"`
	Verdict         CorrelationVerdict `json:"verdict"`
	TotalCandidates int                `json:"total_candidates"`
}

// ResponseSet carries the three drafted crisis-communication texts.
type ResponseSet struct {
	CeaseDesist    string `json:"cease_desist"`
	OfficialDenial string `json:"official_denial"`
	CEOAlert       string `json:"ceo_alert"`
}

// AttackPackage is the terminal aggregate of a scan that crossed every
// gate. Deployed is the only field mutated after creation, and only by
// the deployment workflow.
type AttackPackage struct {
	EventID            string          `json:"event_id"`
	Ticker             string          `json:"ticker"`
	CrashTimestamp     time.Time       `json:"crash_timestamp"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	ZScore             float64         `json:"z_score"`
	ProjectedLossPct   float64         `json:"projected_loss"`
	SmokingGunHeadline string          `json:"smoking_gun_headline"`
	SmokingGunLink     string          `json:"smoking_gun_link"`
	ArticleTimestamp   time.Time       `json:"article_timestamp"`
	LatencyMinutes     float64         `json:"latency_minutes"`
	PanicScore         int             `json:"panic_score"`
	Confidence         int             `json:"correlation_confidence"`
	Responses          ResponseSet     `json:"responses"`
	ArchivedAt         time.Time       `json:"archived_at"`
	Deployed           bool            `json:"response_deployed"`
}

// EventID derives the unique identifier for an attack detected on ticker
// at the given scan time.
func EventID(ticker string, scanTime time.Time) string {
	return fmt.Sprintf("%s_%s", ticker, scanTime.UTC().Format("20060102_150405"))
}
