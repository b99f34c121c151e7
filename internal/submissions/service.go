package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingNotary      = errors.New("notary identifier is required")
	errInactiveNotary     = errors.New("notary is not active")
	errSubmissionNotFound = errors.New("submission not found")
	noOpLogger            = zap.NewNop()
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
	opServiceNew   = "submissions.service.new"
	opCreate       = "submissions.create"
	opGet          = "submissions.get"
	opList         = "submissions.list"
	opUpdateStatus = "submissions.update_status"
	opAssignNotary = "submissions.assign_notary"
	opSetPricing   = "submissions.set_pricing"
	opUpdateData   = "submissions.update_data"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// NotaryDirectory resolves notary activity for assignment guards.
type NotaryDirectory interface {
	IsActiveNotary(ctx context.Context, notaryID string) (bool, error)
}

// ServiceConfig describes the dependencies of the submission service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Notaries   NotaryDirectory
	Logger     *zap.Logger
}

// IDProvider issues unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// Service manages the submission lifecycle.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	ids      IDProvider
	notaries NotaryDirectory
	logger   *zap.Logger
}

// NewService constructs the submission service.
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
		db:       cfg.Database,
		clock:    clock,
		ids:      cfg.IDProvider,
		notaries: cfg.Notaries,
		logger:   logger,
	}, nil
}

// CreateRequest carries the fields needed to open a new submission.
type CreateRequest struct {
	Status          Status
	AppointmentAt   *time.Time
	Timezone        string
	ClientID        *string
	ClientFirstName string
	ClientLastName  string
	ClientEmail     string
	ClientPhone     string
	TotalPrice      float64
	Data            Data
}

// Create inserts a new submission row.
func (s *Service) Create(ctx context.Context, request CreateRequest) (Submission, error) {
	status := request.Status
	if status == "" {
		status = StatusPending
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return Submission{}, newServiceError(opCreate, "invalid_status", err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Submission{}, newServiceError(opCreate, "id_generation_failed", err)
	}
	encoded, err := EncodeData(request.Data)
	if err != nil {
		s.logError(opCreate, "data_encode_failed", err)
		return Submission{}, newServiceError(opCreate, "data_encode_failed", err)
	}

	submission := Submission{
		ID:              id,
		Status:          string(status),
		AppointmentAt:   request.AppointmentAt,
		Timezone:        request.Timezone,
		ClientID:        request.ClientID,
		ClientFirstName: request.ClientFirstName,
		ClientLastName:  request.ClientLastName,
		ClientEmail:     strings.TrimSpace(request.ClientEmail),
		ClientPhone:     request.ClientPhone,
		TotalPrice:      request.TotalPrice,
		DataJSON:        encoded,
	}
	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		s.logError(opCreate, "insert_failed", err)
		return Submission{}, newServiceError(opCreate, "insert_failed", err)
	}
	return submission, nil
}

// Get loads a submission by identifier.
func (s *Service) Get(ctx context.Context, submissionID string) (Submission, error) {
	if strings.TrimSpace(submissionID) == "" {
		return Submission{}, newServiceError(opGet, "invalid_submission_id", ErrInvalidSubmissionID)
	}
	var submission Submission
	err := s.db.WithContext(ctx).Where("id = ?", submissionID).First(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Submission{}, newServiceError(opGet, "not_found", errSubmissionNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newServiceError(opGet, "query_failed", err)
	}
	return submission, nil
}

// Filter narrows submission listings.
type Filter struct {
	Status   Status
	NotaryID string
}

// List returns submissions newest-first, optionally filtered by status or
// assigned notary.
func (s *Service) List(ctx context.Context, filter Filter) ([]Submission, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.NotaryID != "" {
		query = query.Where("assigned_notary_id = ?", filter.NotaryID)
	}
	var rows []Submission
	if err := query.Find(&rows).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return rows, nil
}

// ReceiptRecord is one payment receipt extracted from a submission data record.
type ReceiptRecord struct {
	SubmissionID string
	AmountPaid   int64
	Status       string
	Date         time.Time
}

// PaymentReceipts scans every submission and extracts embedded payment
// receipts. Rows with undecodable data records are skipped with a log rather
// than failing the whole scan.
func (s *Service) PaymentReceipts(ctx context.Context) ([]ReceiptRecord, error) {
	var rows []Submission
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}

	receipts := make([]ReceiptRecord, 0, len(rows))
	for _, row := range rows {
		data, err := DecodeData(row.DataJSON)
		if err != nil {
			s.loggerOrDefault().Warn("skipping submission with undecodable data record",
				zap.String("submission_id", row.ID), zap.Error(err))
			continue
		}
		if data.Payment == nil {
			continue
		}
		date := row.CreatedAt
		if data.Payment.PaidAt != nil {
			date = *data.Payment.PaidAt
		}
		receipts = append(receipts, ReceiptRecord{
			SubmissionID: row.ID,
			AmountPaid:   data.Payment.AmountPaid,
			Status:       data.Payment.Status,
			Date:         date,
		})
	}
	return receipts, nil
}

// AssignedNotary returns the notary currently assigned to a submission, empty
// when unassigned. Backs the payout consistency guard.
func (s *Service) AssignedNotary(ctx context.Context, submissionID string) (string, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return "", err
	}
	if submission.AssignedNotaryID == nil {
		return "", nil
	}
	return *submission.AssignedNotaryID, nil
}

// AssignedSubmissionIDs returns the identifiers of every submission assigned
// to the notary. Backs the notary-scoped unread badge.
func (s *Service) AssignedSubmissionIDs(ctx context.Context, notaryID string) ([]string, error) {
	if strings.TrimSpace(notaryID) == "" {
		return nil, newServiceError(opList, "missing_notary", errMissingNotary)
	}
	var ids []string
	if err := s.db.WithContext(ctx).Model(&Submission{}).
		Where("assigned_notary_id = ?", notaryID).
		Pluck("id", &ids).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("notary_id", notaryID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return ids, nil
}

// UpdateStatus moves a submission to the next status, validated against the
// transition table. Illegal transitions are rejected with a typed error.
func (s *Service) UpdateStatus(ctx context.Context, submissionID string, next Status) (Submission, error) {
	if _, err := ParseStatus(string(next)); err != nil {
		return Submission{}, newServiceError(opUpdateStatus, "invalid_status", err)
	}

	var updated Submission
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Submission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", submissionID).
			Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdateStatus, "not_found", errSubmissionNotFound)
		}
		if err != nil {
			s.logError(opUpdateStatus, "select_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opUpdateStatus, "select_failed", err)
		}

		from := Status(current.Status)
		if !from.CanTransitionTo(next) {
			return newServiceError(opUpdateStatus, "illegal_transition", &TransitionError{From: from, To: next})
		}

		if err := tx.Model(&current).Update("status", string(next)).Error; err != nil {
			s.logError(opUpdateStatus, "update_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opUpdateStatus, "update_failed", err)
		}
		current.Status = string(next)
		updated = current
		return nil
	})
	if txErr != nil {
		return Submission{}, txErr
	}
	return updated, nil
}

// AssignNotary sets the assigned notary, guarding that the target exists and
// is active.
func (s *Service) AssignNotary(ctx context.Context, submissionID, notaryID string) (Submission, error) {
	if strings.TrimSpace(notaryID) == "" {
		return Submission{}, newServiceError(opAssignNotary, "missing_notary", errMissingNotary)
	}
	if s.notaries != nil {
		active, err := s.notaries.IsActiveNotary(ctx, notaryID)
		if err != nil {
			s.logError(opAssignNotary, "notary_lookup_failed", err, zap.String("notary_id", notaryID))
			return Submission{}, newServiceError(opAssignNotary, "notary_lookup_failed", err)
		}
		if !active {
			return Submission{}, newServiceError(opAssignNotary, "inactive_notary", errInactiveNotary)
		}
	}

	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if err := s.db.WithContext(ctx).Model(&submission).
		Update("assigned_notary_id", notaryID).Error; err != nil {
		s.logError(opAssignNotary, "update_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newServiceError(opAssignNotary, "update_failed", err)
	}
	submission.AssignedNotaryID = &notaryID
	return submission, nil
}

// SetPricing updates the notary cost and total price on a submission.
func (s *Service) SetPricing(ctx context.Context, submissionID string, notaryCost, totalPrice float64) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	updates := map[string]interface{}{
		"notary_cost": notaryCost,
		"total_price": totalPrice,
	}
	if err := s.db.WithContext(ctx).Model(&submission).Updates(updates).Error; err != nil {
		s.logError(opSetPricing, "update_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newServiceError(opSetPricing, "update_failed", err)
	}
	submission.NotaryCost = notaryCost
	submission.TotalPrice = totalPrice
	return submission, nil
}

// UpdateData replaces the typed data record on a submission.
func (s *Service) UpdateData(ctx context.Context, submissionID string, data Data) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	encoded, err := EncodeData(data)
	if err != nil {
		s.logError(opUpdateData, "data_encode_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newServiceError(opUpdateData, "data_encode_failed", err)
	}
	if err := s.db.WithContext(ctx).Model(&submission).
		Update("data_json", encoded).Error; err != nil {
		s.logError(opUpdateData, "update_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newServiceError(opUpdateData, "update_failed", err)
	}
	submission.DataJSON = encoded
	return submission, nil
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
	s.loggerOrDefault().Error("submission service error", attrs...)
}
