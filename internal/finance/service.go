package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sigillo-app/backend/internal/submissions"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingNotary     = errors.New("notary identifier is required")
	errPayoutNotFound    = errors.New("payout not found")
	errCostNotFound      = errors.New("cost record not found")
	errNotaryMismatch    = errors.New("payout notary does not match the submission's assigned notary")
	noOpLogger           = zap.NewNop()
)

// ServiceError wraps a failure with a dotted operation code for API surfacing.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code for the failure.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "finance.service.new"
	opCreatePayout  = "finance.create_payout"
	opAdvancePayout = "finance.advance_payout"
	opDeletePayout  = "finance.delete_payout"
	opListPayouts   = "finance.list_payouts"
	opCosts         = "finance.costs"
	opKPIs          = "finance.kpis"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ReceiptSource extracts payment receipts from submission data records.
type ReceiptSource interface {
	PaymentReceipts(ctx context.Context) ([]submissions.ReceiptRecord, error)
}

// SubmissionDirectory resolves the notary assigned to a submission.
type SubmissionDirectory interface {
	AssignedNotary(ctx context.Context, submissionID string) (string, error)
}

// ServiceConfig describes the dependencies of the finance service.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Receipts    ReceiptSource
	Submissions SubmissionDirectory
	Logger      *zap.Logger
}

// IDProvider issues unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// Service manages payouts, cost records and KPI aggregation.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	ids         IDProvider
	receipts    ReceiptSource
	submissions SubmissionDirectory
	logger      *zap.Logger
}

// NewService constructs the finance service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:          cfg.Database,
		clock:       clock,
		ids:         cfg.IDProvider,
		receipts:    cfg.Receipts,
		submissions: cfg.Submissions,
		logger:      logger,
	}, nil
}

// PayoutRequest carries the fields of a new payout.
type PayoutRequest struct {
	NotaryID     string
	SubmissionID *string
	Amount       float64
	Date         time.Time
	Description  string
}

// CreatePayout inserts a payout in the created state. When tied to a
// submission, the payout notary must match the submission's assigned notary.
func (s *Service) CreatePayout(ctx context.Context, request PayoutRequest) (Payout, error) {
	if strings.TrimSpace(request.NotaryID) == "" {
		return Payout{}, newServiceError(opCreatePayout, "missing_notary", errMissingNotary)
	}
	if request.SubmissionID != nil && s.submissions != nil {
		assigned, err := s.submissions.AssignedNotary(ctx, *request.SubmissionID)
		if err != nil {
			s.logError(opCreatePayout, "submission_lookup_failed", err,
				zap.String("submission_id", *request.SubmissionID))
			return Payout{}, newServiceError(opCreatePayout, "submission_lookup_failed", err)
		}
		if assigned != request.NotaryID {
			return Payout{}, newServiceError(opCreatePayout, "notary_mismatch", errNotaryMismatch)
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		s.logError(opCreatePayout, "id_generation_failed", err)
		return Payout{}, newServiceError(opCreatePayout, "id_generation_failed", err)
	}
	date := request.Date
	if date.IsZero() {
		date = s.clock().UTC()
	}
	payout := Payout{
		ID:           id,
		NotaryID:     request.NotaryID,
		SubmissionID: request.SubmissionID,
		Amount:       request.Amount,
		Date:         date,
		Description:  request.Description,
		Status:       string(PayoutCreated),
	}
	if err := s.db.WithContext(ctx).Create(&payout).Error; err != nil {
		s.logError(opCreatePayout, "insert_failed", err)
		return Payout{}, newServiceError(opCreatePayout, "insert_failed", err)
	}
	return payout, nil
}

// AdvancePayoutStatus moves a payout to the next status, validated against
// the transition table after legacy-synonym normalization.
func (s *Service) AdvancePayoutStatus(ctx context.Context, payoutID string, next PayoutStatus) (Payout, error) {
	normalizedNext, err := NormalizePayoutStatus(string(next))
	if err != nil {
		return Payout{}, newServiceError(opAdvancePayout, "invalid_status", err)
	}

	var updated Payout
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Payout
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", payoutID).
			Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opAdvancePayout, "not_found", errPayoutNotFound)
		}
		if err != nil {
			s.logError(opAdvancePayout, "select_failed", err, zap.String("payout_id", payoutID))
			return newServiceError(opAdvancePayout, "select_failed", err)
		}

		from := current.NormalizedStatus()
		if !from.CanTransitionTo(normalizedNext) {
			return newServiceError(opAdvancePayout, "illegal_transition",
				&PayoutTransitionError{From: from, To: normalizedNext})
		}
		if err := tx.Model(&current).Update("status", string(normalizedNext)).Error; err != nil {
			s.logError(opAdvancePayout, "update_failed", err, zap.String("payout_id", payoutID))
			return newServiceError(opAdvancePayout, "update_failed", err)
		}
		current.Status = string(normalizedNext)
		updated = current
		return nil
	})
	if txErr != nil {
		return Payout{}, txErr
	}
	return updated, nil
}

// DeletePayout removes a payout. Deletion is an escape hatch outside the
// normal flow.
func (s *Service) DeletePayout(ctx context.Context, payoutID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", payoutID).Delete(&Payout{})
	if result.Error != nil {
		s.logError(opDeletePayout, "delete_failed", result.Error, zap.String("payout_id", payoutID))
		return newServiceError(opDeletePayout, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeletePayout, "not_found", errPayoutNotFound)
	}
	return nil
}

// ListPayouts returns payouts newest-first, optionally filtered by notary.
func (s *Service) ListPayouts(ctx context.Context, notaryID string) ([]Payout, error) {
	query := s.db.WithContext(ctx).Order("date DESC")
	if notaryID != "" {
		query = query.Where("notary_id = ?", notaryID)
	}
	var payouts []Payout
	if err := query.Find(&payouts).Error; err != nil {
		s.logError(opListPayouts, "query_failed", err)
		return nil, newServiceError(opListPayouts, "query_failed", err)
	}
	return payouts, nil
}

// CreateWebserviceCost inserts a webservice cost row.
func (s *Service) CreateWebserviceCost(ctx context.Context, cost WebserviceCost) (WebserviceCost, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return WebserviceCost{}, newServiceError(opCosts, "id_generation_failed", err)
	}
	cost.ID = id
	if cost.Date.IsZero() {
		cost.Date = s.clock().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&cost).Error; err != nil {
		s.logError(opCosts, "insert_failed", err)
		return WebserviceCost{}, newServiceError(opCosts, "insert_failed", err)
	}
	return cost, nil
}

// UpdateWebserviceCost replaces the editable fields of a webservice cost row.
func (s *Service) UpdateWebserviceCost(ctx context.Context, cost WebserviceCost) (WebserviceCost, error) {
	var existing WebserviceCost
	err := s.db.WithContext(ctx).Where("id = ?", cost.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return WebserviceCost{}, newServiceError(opCosts, "not_found", errCostNotFound)
	}
	if err != nil {
		return WebserviceCost{}, newServiceError(opCosts, "query_failed", err)
	}
	updates := map[string]interface{}{
		"name":        cost.Name,
		"amount":      cost.Amount,
		"date":        cost.Date,
		"recurring":   cost.Recurring,
		"billing_day": cost.BillingDay,
		"active":      cost.Active,
	}
	if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		s.logError(opCosts, "update_failed", err, zap.String("cost_id", cost.ID))
		return WebserviceCost{}, newServiceError(opCosts, "update_failed", err)
	}
	cost.CreatedAt = existing.CreatedAt
	return cost, nil
}

// DeleteWebserviceCost removes a webservice cost row.
func (s *Service) DeleteWebserviceCost(ctx context.Context, id string) error {
	return s.deleteCost(ctx, id, &WebserviceCost{})
}

// CreateAdCost inserts an advertising cost row.
func (s *Service) CreateAdCost(ctx context.Context, cost AdCost) (AdCost, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return AdCost{}, newServiceError(opCosts, "id_generation_failed", err)
	}
	cost.ID = id
	if cost.Date.IsZero() {
		cost.Date = s.clock().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&cost).Error; err != nil {
		s.logError(opCosts, "insert_failed", err)
		return AdCost{}, newServiceError(opCosts, "insert_failed", err)
	}
	return cost, nil
}

// DeleteAdCost removes an advertising cost row.
func (s *Service) DeleteAdCost(ctx context.Context, id string) error {
	return s.deleteCost(ctx, id, &AdCost{})
}

// CreateOtherCost inserts a free-form cost row.
func (s *Service) CreateOtherCost(ctx context.Context, cost OtherCost) (OtherCost, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return OtherCost{}, newServiceError(opCosts, "id_generation_failed", err)
	}
	cost.ID = id
	if cost.Date.IsZero() {
		cost.Date = s.clock().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&cost).Error; err != nil {
		s.logError(opCosts, "insert_failed", err)
		return OtherCost{}, newServiceError(opCosts, "insert_failed", err)
	}
	return cost, nil
}

// DeleteOtherCost removes a free-form cost row.
func (s *Service) DeleteOtherCost(ctx context.Context, id string) error {
	return s.deleteCost(ctx, id, &OtherCost{})
}

// ListCosts returns all cost rows of every category.
func (s *Service) ListCosts(ctx context.Context) ([]WebserviceCost, []AdCost, []OtherCost, error) {
	var webservice []WebserviceCost
	var ads []AdCost
	var other []OtherCost
	if err := s.db.WithContext(ctx).Order("date DESC").Find(&webservice).Error; err != nil {
		return nil, nil, nil, newServiceError(opCosts, "query_failed", err)
	}
	if err := s.db.WithContext(ctx).Order("date DESC").Find(&ads).Error; err != nil {
		return nil, nil, nil, newServiceError(opCosts, "query_failed", err)
	}
	if err := s.db.WithContext(ctx).Order("date DESC").Find(&other).Error; err != nil {
		return nil, nil, nil, newServiceError(opCosts, "query_failed", err)
	}
	return webservice, ads, other, nil
}

// KPIs fetches every row category wholesale and recomputes the indicators for
// the period. Rows are not filtered server-side by date; the engine applies
// the window, mirroring a full client-side recomputation per filter change.
func (s *Service) KPIs(ctx context.Context, period Period) (KPIs, error) {
	rows := Rows{}

	if s.receipts != nil {
		receipts, err := s.receipts.PaymentReceipts(ctx)
		if err != nil {
			s.logError(opKPIs, "receipt_fetch_failed", err)
			return KPIs{}, newServiceError(opKPIs, "receipt_fetch_failed", err)
		}
		rows.Receipts = receipts
	}
	if err := s.db.WithContext(ctx).Find(&rows.WebserviceCosts).Error; err != nil {
		s.logError(opKPIs, "webservice_fetch_failed", err)
		return KPIs{}, newServiceError(opKPIs, "webservice_fetch_failed", err)
	}
	if err := s.db.WithContext(ctx).Find(&rows.AdCosts).Error; err != nil {
		s.logError(opKPIs, "ads_fetch_failed", err)
		return KPIs{}, newServiceError(opKPIs, "ads_fetch_failed", err)
	}
	if err := s.db.WithContext(ctx).Find(&rows.Payouts).Error; err != nil {
		s.logError(opKPIs, "payout_fetch_failed", err)
		return KPIs{}, newServiceError(opKPIs, "payout_fetch_failed", err)
	}
	if err := s.db.WithContext(ctx).Find(&rows.OtherCosts).Error; err != nil {
		s.logError(opKPIs, "other_fetch_failed", err)
		return KPIs{}, newServiceError(opKPIs, "other_fetch_failed", err)
	}

	return ComputeKPIs(period, rows), nil
}

func (s *Service) deleteCost(ctx context.Context, id string, model interface{}) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if result.Error != nil {
		s.logError(opCosts, "delete_failed", result.Error, zap.String("cost_id", id))
		return newServiceError(opCosts, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opCosts, "not_found", errCostNotFound)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("finance service error", attrs...)
}
