package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SenderType enumerates the parties in a submission conversation.
type SenderType string

const (
	// SenderClient is the end client who booked the appointment.
	SenderClient SenderType = "client"
	// SenderNotary is the notary assigned to the submission.
	SenderNotary SenderType = "notary"
	// SenderAdmin is back-office staff.
	SenderAdmin SenderType = "admin"
)

// ErrUnknownSenderType indicates a value outside the sender enum.
var ErrUnknownSenderType = errors.New("messaging: unknown sender type")

// ParseSenderType validates raw input against the sender enum.
func ParseSenderType(raw string) (SenderType, error) {
	switch SenderType(strings.ToLower(strings.TrimSpace(raw))) {
	case SenderClient:
		return SenderClient, nil
	case SenderNotary:
		return SenderNotary, nil
	case SenderAdmin:
		return SenderAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSenderType, raw)
	}
}

// Attachment is one uploaded file resolved to its public URL.
type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Message is one entry in a per-submission conversation. Content is immutable
// once sent; only the read flag flips afterwards.
type Message struct {
	ID              string     `gorm:"column:id;primaryKey;size:190;not null"`
	SubmissionID    string     `gorm:"column:submission_id;size:190;not null;index:idx_messages_submission_created,priority:1"`
	SenderType      string     `gorm:"column:sender_type;size:32;not null;index"`
	SenderID        string     `gorm:"column:sender_id;size:190;not null"`
	Content         string     `gorm:"column:content;type:text;not null;default:''"`
	AttachmentsJSON string     `gorm:"column:attachments_json;type:text;not null;default:''"`
	Read            bool       `gorm:"column:read;not null;default:false;index"`
	ReadAt          *time.Time `gorm:"column:read_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime;index:idx_messages_submission_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// Attachments decodes the serialized attachment list.
func (m Message) Attachments() ([]Attachment, error) {
	if m.AttachmentsJSON == "" {
		return nil, nil
	}
	var attachments []Attachment
	if err := json.Unmarshal([]byte(m.AttachmentsJSON), &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

func encodeAttachments(attachments []Attachment) (string, error) {
	if len(attachments) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
