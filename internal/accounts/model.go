package accounts

import (
	"strings"
	"time"
)

// Account captures an authenticable identity (admin, notary, or end client).
type Account struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;size:190;not null"`
	Role         string    `gorm:"column:role;size:32;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

// Client is the profile row for an end client, optionally linked to an account.
type Client struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	AccountID *string   `gorm:"column:account_id;size:190;index"`
	Email     string    `gorm:"column:email;size:320;not null;index"`
	FirstName string    `gorm:"column:first_name;size:190"`
	LastName  string    `gorm:"column:last_name;size:190"`
	Phone     string    `gorm:"column:phone;size:64"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing client profiles.
func (Client) TableName() string {
	return "clients"
}

// Notary is the profile row for a notary, with banking details for payouts.
type Notary struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	AccountID *string   `gorm:"column:account_id;size:190;index"`
	Email     string    `gorm:"column:email;size:320;not null;index"`
	FirstName string    `gorm:"column:first_name;size:190"`
	LastName  string    `gorm:"column:last_name;size:190"`
	Phone     string    `gorm:"column:phone;size:64"`
	Active    bool      `gorm:"column:active;not null;index"`
	IBAN      string    `gorm:"column:iban;size:64"`
	BIC       string    `gorm:"column:bic;size:32"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing notary profiles.
func (Notary) TableName() string {
	return "notaries"
}

// NotaryCompetence links a notary to a catalog service they are competent for.
type NotaryCompetence struct {
	NotaryID  string `gorm:"column:notary_id;primaryKey;size:190;not null"`
	ServiceID string `gorm:"column:service_id;primaryKey;size:190;not null"`
}

// TableName exposes the table backing the notary/service relation.
func (NotaryCompetence) TableName() string {
	return "notary_competences"
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
