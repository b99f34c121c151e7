package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingSubmission = errors.New("submission identifier is required")
	errMissingSender     = errors.New("sender identifier is required")
	errEmptyMessage      = errors.New("message requires text or at least one attachment")
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
	opServiceNew  = "messaging.service.new"
	opList        = "messaging.list"
	opSend        = "messaging.send"
	opMarkRead    = "messaging.mark_read"
	opUnreadCount = "messaging.unread_count"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Event is published after a message insert for realtime fan-out.
type Event struct {
	SubmissionID string  `json:"submission_id"`
	Message      Message `json:"message"`
}

// Publisher delivers message events to open conversation streams.
type Publisher interface {
	PublishMessage(event Event)
}

// AttachmentStore uploads raw files and resolves public URLs.
type AttachmentStore interface {
	SaveMessageAttachment(submissionID, filename string, content io.Reader) (string, error)
	PublicURL(objectPath string) string
}

// SubmissionDirectory resolves the submissions visible to a notary.
type SubmissionDirectory interface {
	AssignedSubmissionIDs(ctx context.Context, notaryID string) ([]string, error)
}

// ServiceConfig describes the dependencies of the messaging service.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Publisher   Publisher
	Attachments AttachmentStore
	Submissions SubmissionDirectory
	Logger      *zap.Logger
}

// IDProvider issues unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// Service manages per-submission conversations and read-state tracking.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	ids         IDProvider
	publisher   Publisher
	attachments AttachmentStore
	submissions SubmissionDirectory
	logger      *zap.Logger
}

// NewService constructs the messaging service.
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
		publisher:   cfg.Publisher,
		attachments: cfg.Attachments,
		submissions: cfg.Submissions,
		logger:      logger,
	}, nil
}

// List returns the conversation for a submission ordered by creation time.
func (s *Service) List(ctx context.Context, submissionID string) ([]Message, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, newServiceError(opList, "missing_submission", errMissingSubmission)
	}
	var messages []Message
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("submission_id", submissionID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return messages, nil
}

// Upload is one raw file submitted alongside a message.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// SendRequest carries the fields of an outgoing message.
type SendRequest struct {
	SubmissionID string
	SenderType   SenderType
	SenderID     string
	Content      string
	Uploads      []Upload
}

// Send validates, stores and fans out one message. Attachment uploads that
// fail are skipped per file without blocking the send.
func (s *Service) Send(ctx context.Context, request SendRequest) (Message, error) {
	if strings.TrimSpace(request.SubmissionID) == "" {
		return Message{}, newServiceError(opSend, "missing_submission", errMissingSubmission)
	}
	if strings.TrimSpace(request.SenderID) == "" {
		return Message{}, newServiceError(opSend, "missing_sender", errMissingSender)
	}
	if _, err := ParseSenderType(string(request.SenderType)); err != nil {
		return Message{}, newServiceError(opSend, "invalid_sender_type", err)
	}
	content := strings.TrimSpace(request.Content)
	if content == "" && len(request.Uploads) == 0 {
		return Message{}, newServiceError(opSend, "empty_message", errEmptyMessage)
	}

	attachments := s.uploadAttachments(request.SubmissionID, request.Uploads)
	if content == "" && len(request.Uploads) > 0 && len(attachments) == 0 {
		return Message{}, newServiceError(opSend, "all_uploads_failed", errEmptyMessage)
	}

	encoded, err := encodeAttachments(attachments)
	if err != nil {
		s.logError(opSend, "attachment_encode_failed", err, zap.String("submission_id", request.SubmissionID))
		return Message{}, newServiceError(opSend, "attachment_encode_failed", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.logError(opSend, "id_generation_failed", err)
		return Message{}, newServiceError(opSend, "id_generation_failed", err)
	}

	message := Message{
		ID:              id,
		SubmissionID:    request.SubmissionID,
		SenderType:      string(request.SenderType),
		SenderID:        request.SenderID,
		Content:         content,
		AttachmentsJSON: encoded,
		CreatedAt:       s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		s.logError(opSend, "insert_failed", err, zap.String("submission_id", request.SubmissionID))
		return Message{}, newServiceError(opSend, "insert_failed", err)
	}

	if s.publisher != nil {
		s.publisher.PublishMessage(Event{SubmissionID: message.SubmissionID, Message: message})
	}
	return message, nil
}

// uploadAttachments stores each file and resolves its public URL. A failed
// upload is logged and dropped; the remaining files still go through.
func (s *Service) uploadAttachments(submissionID string, uploads []Upload) []Attachment {
	if s.attachments == nil || len(uploads) == 0 {
		return nil
	}
	attachments := make([]Attachment, 0, len(uploads))
	for _, upload := range uploads {
		objectPath, err := s.attachments.SaveMessageAttachment(submissionID, upload.Name, upload.Content)
		if err != nil {
			s.loggerOrDefault().Warn("attachment upload failed",
				zap.String("submission_id", submissionID),
				zap.String("filename", upload.Name),
				zap.Error(err))
			continue
		}
		attachments = append(attachments, Attachment{
			Name:     upload.Name,
			URL:      s.attachments.PublicURL(objectPath),
			MimeType: upload.MimeType,
			Size:     upload.Size,
		})
	}
	return attachments
}

// MarkRead flips the read flag on every unread message in the conversation not
// authored by the viewer. The update is idempotent; concurrent viewers both
// succeed with last-write-wins on read_at.
func (s *Service) MarkRead(ctx context.Context, submissionID string, viewerType SenderType) (int64, error) {
	if strings.TrimSpace(submissionID) == "" {
		return 0, newServiceError(opMarkRead, "missing_submission", errMissingSubmission)
	}
	if _, err := ParseSenderType(string(viewerType)); err != nil {
		return 0, newServiceError(opMarkRead, "invalid_viewer_type", err)
	}

	now := s.clock().UTC()
	result := s.db.WithContext(ctx).Model(&Message{}).
		Where("submission_id = ? AND read = ? AND sender_type <> ?", submissionID, false, string(viewerType)).
		Updates(map[string]interface{}{"read": true, "read_at": now})
	if result.Error != nil {
		s.logError(opMarkRead, "update_failed", result.Error, zap.String("submission_id", submissionID))
		return 0, newServiceError(opMarkRead, "update_failed", result.Error)
	}
	return result.RowsAffected, nil
}

// Viewer identifies the actor requesting the dashboard-wide unread badge.
type Viewer struct {
	Type     SenderType
	NotaryID string
}

// UnreadCount computes the dashboard-wide unread badge. Admins see unread
// messages across all submissions; a notary only counts messages on
// submissions assigned to them, excluding their own.
func (s *Service) UnreadCount(ctx context.Context, viewer Viewer) (int64, error) {
	if _, err := ParseSenderType(string(viewer.Type)); err != nil {
		return 0, newServiceError(opUnreadCount, "invalid_viewer_type", err)
	}

	query := s.db.WithContext(ctx).Model(&Message{}).
		Where("read = ? AND sender_type <> ?", false, string(viewer.Type))

	if viewer.Type == SenderNotary {
		if s.submissions == nil || strings.TrimSpace(viewer.NotaryID) == "" {
			return 0, newServiceError(opUnreadCount, "missing_notary", errMissingSender)
		}
		submissionIDs, err := s.submissions.AssignedSubmissionIDs(ctx, viewer.NotaryID)
		if err != nil {
			s.logError(opUnreadCount, "submission_lookup_failed", err, zap.String("notary_id", viewer.NotaryID))
			return 0, newServiceError(opUnreadCount, "submission_lookup_failed", err)
		}
		if len(submissionIDs) == 0 {
			return 0, nil
		}
		query = query.Where("submission_id IN ?", submissionIDs)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		s.logError(opUnreadCount, "count_failed", err)
		return 0, newServiceError(opUnreadCount, "count_failed", err)
	}
	return count, nil
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
	s.loggerOrDefault().Error("messaging service error", attrs...)
}
