package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeploymentRecord tracks a crisis response that was pushed out for a
// verified attack, and later the measured market recovery.
type DeploymentRecord struct {
	ID            int64
	EventID       string
	Ticker        string
	Strategy      string
	DeployPrice   decimal.Decimal
	DeployedAt    time.Time
	Status        string
	RecoveryPct   *decimal.Decimal
	Effectiveness *string
	CheckedAt     *time.Time
}

// Deployment effectiveness grades.
const (
	EffectivenessSuccess = "SUCCESS"
	EffectivenessFailure = "FAILURE"
	EffectivenessNeutral = "NEUTRAL"
)
