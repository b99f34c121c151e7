package finance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PayoutStatus enumerates the lifecycle states of a notary payout.
type PayoutStatus string

const (
	// PayoutCreated is the initial state of a payout.
	PayoutCreated PayoutStatus = "created"
	// PayoutPaid marks a payout that has been transferred.
	PayoutPaid PayoutStatus = "paid"
	// PayoutCanceled marks a payout that will not be transferred.
	PayoutCanceled PayoutStatus = "canceled"
)

// ErrUnknownPayoutStatus indicates a value outside the payout status enum.
var ErrUnknownPayoutStatus = errors.New("finance: unknown payout status")

// PayoutTransitionError reports a payout status write rejected by the
// transition table.
type PayoutTransitionError struct {
	From PayoutStatus
	To   PayoutStatus
}

func (e *PayoutTransitionError) Error() string {
	return fmt.Sprintf("finance: illegal payout transition %s -> %s", e.From, e.To)
}

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutCreated:  {PayoutPaid, PayoutCanceled},
	PayoutPaid:     {},
	PayoutCanceled: {},
}

// legacyPayoutStatuses maps historical status spellings onto the current enum.
var legacyPayoutStatuses = map[string]PayoutStatus{
	"pending":    PayoutCreated,
	"processing": PayoutCreated,
	"completed":  PayoutPaid,
	"cancelled":  PayoutCanceled,
	"failed":     PayoutCanceled,
}

// NormalizePayoutStatus maps raw stored values, including legacy synonyms,
// onto the current enum.
func NormalizePayoutStatus(raw string) (PayoutStatus, error) {
	candidate := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := payoutTransitions[PayoutStatus(candidate)]; ok {
		return PayoutStatus(candidate), nil
	}
	if normalized, ok := legacyPayoutStatuses[candidate]; ok {
		return normalized, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPayoutStatus, raw)
}

// CanTransitionTo reports whether the transition table permits moving to next.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PayoutStatusLabel returns the display label for a raw status value,
// including legacy synonyms. The mapping is total; unknown values fall back
// to the raw string rather than blank.
func PayoutStatusLabel(raw string) string {
	normalized, err := NormalizePayoutStatus(raw)
	if err != nil {
		if strings.TrimSpace(raw) == "" {
			return "Unknown"
		}
		return raw
	}
	switch normalized {
	case PayoutCreated:
		return "Created"
	case PayoutPaid:
		return "Paid"
	case PayoutCanceled:
		return "Canceled"
	default:
		return string(normalized)
	}
}

// Payout is a transfer owed to a notary, optionally tied to one submission.
type Payout struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	NotaryID     string    `gorm:"column:notary_id;size:190;not null;index"`
	SubmissionID *string   `gorm:"column:submission_id;size:190;index"`
	Amount       float64   `gorm:"column:amount;not null"`
	Date         time.Time `gorm:"column:date;not null;index"`
	Description  string    `gorm:"column:description;type:text"`
	Status       string    `gorm:"column:status;size:32;not null;default:'created'"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Payout) TableName() string {
	return "notary_payouts"
}

// NormalizedStatus returns the payout status with legacy synonyms folded in.
func (p Payout) NormalizedStatus() PayoutStatus {
	normalized, err := NormalizePayoutStatus(p.Status)
	if err != nil {
		return PayoutCreated
	}
	return normalized
}

// WebserviceCost is a hosting or SaaS expense, optionally recurring monthly.
type WebserviceCost struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	Name       string    `gorm:"column:name;size:320;not null"`
	Amount     float64   `gorm:"column:amount;not null"`
	Date       time.Time `gorm:"column:date;not null;index"`
	Recurring  bool      `gorm:"column:recurring;not null;default:false"`
	BillingDay int       `gorm:"column:billing_day;not null;default:0"`
	Active     bool      `gorm:"column:active;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (WebserviceCost) TableName() string {
	return "webservice_costs"
}

// AdCost is one advertising spend entry.
type AdCost struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	Campaign  string    `gorm:"column:campaign;size:320"`
	Amount    float64   `gorm:"column:amount;not null"`
	Date      time.Time `gorm:"column:date;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (AdCost) TableName() string {
	return "ad_costs"
}

// OtherCost is a free-form expense entry.
type OtherCost struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	Description string    `gorm:"column:description;type:text"`
	Amount      float64   `gorm:"column:amount;not null"`
	Date        time.Time `gorm:"column:date;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (OtherCost) TableName() string {
	return "other_costs"
}
