package submissions

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CurrentDataVersion is the schema version written for new submission data records.
const CurrentDataVersion = 1

var (
	// ErrInvalidSubmissionID indicates that a submission identifier is empty.
	ErrInvalidSubmissionID = errors.New("submissions: invalid submission id")
	// ErrUnsupportedDataVersion indicates a data record newer than this binary understands.
	ErrUnsupportedDataVersion = errors.New("submissions: unsupported data schema version")
)

// Submission models a booking request moving through the appointment lifecycle.
type Submission struct {
	ID               string     `gorm:"column:id;primaryKey;size:190;not null"`
	Status           string     `gorm:"column:status;size:32;not null;index"`
	AppointmentAt    *time.Time `gorm:"column:appointment_at"`
	Timezone         string     `gorm:"column:timezone;size:64"`
	ClientID         *string    `gorm:"column:client_id;size:190;index"`
	ClientFirstName  string     `gorm:"column:client_first_name;size:190"`
	ClientLastName   string     `gorm:"column:client_last_name;size:190"`
	ClientEmail      string     `gorm:"column:client_email;size:320;index"`
	ClientPhone      string     `gorm:"column:client_phone;size:64"`
	AssignedNotaryID *string    `gorm:"column:assigned_notary_id;size:190;index"`
	NotaryCost       float64    `gorm:"column:notary_cost;not null;default:0"`
	TotalPrice       float64    `gorm:"column:total_price;not null;default:0"`
	DataJSON         string     `gorm:"column:data_json;type:text;not null;default:''"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Submission) TableName() string {
	return "submissions"
}

// Data is the versioned typed record stored in the submission data column:
// the selected services with their documents, plus the embedded payment
// receipt once checkout completes.
type Data struct {
	SchemaVersion int               `json:"schema_version"`
	Services      []SelectedService `json:"services"`
	Payment       *PaymentReceipt   `json:"payment,omitempty"`
}

// SelectedService is one service from the cart with its attached documents.
type SelectedService struct {
	ServiceID string             `json:"service_id"`
	Documents []SelectedDocument `json:"documents"`
}

// SelectedDocument is one uploaded document with the options applied to it.
type SelectedDocument struct {
	Name        string   `json:"name"`
	StoragePath string   `json:"storage_path,omitempty"`
	OptionIDs   []string `json:"option_ids,omitempty"`
}

// PaymentReceipt captures the payment-provider outcome embedded in the data record.
type PaymentReceipt struct {
	SessionID  string     `json:"session_id,omitempty"`
	AmountPaid int64      `json:"amount_paid"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
}

// EncodeData serializes the typed record, stamping the current schema version.
func EncodeData(data Data) (string, error) {
	data.SchemaVersion = CurrentDataVersion
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeData parses a stored data record. Version 0 records predate the
// explicit schema version and decode as version 1. Newer versions are refused.
func DecodeData(raw string) (Data, error) {
	if raw == "" {
		return Data{SchemaVersion: CurrentDataVersion}, nil
	}
	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Data{}, err
	}
	if data.SchemaVersion == 0 {
		data.SchemaVersion = CurrentDataVersion
	}
	if data.SchemaVersion > CurrentDataVersion {
		return Data{}, fmt.Errorf("%w: %d", ErrUnsupportedDataVersion, data.SchemaVersion)
	}
	return data, nil
}
