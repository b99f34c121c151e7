package catalog

import "time"

// Service is a bookable notary service priced per attached document.
type Service struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	ExternalID string    `gorm:"column:external_id;size:190;not null;uniqueIndex"`
	Name       string    `gorm:"column:name;size:320;not null"`
	BasePrice  int64     `gorm:"column:base_price_cents;not null"`
	Active     bool      `gorm:"column:active;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing catalog services.
func (Service) TableName() string {
	return "catalog_services"
}

// Option is a per-document add-on priced per document it is applied to.
type Option struct {
	ID              string    `gorm:"column:id;primaryKey;size:190;not null"`
	ExternalID      string    `gorm:"column:external_id;size:190;not null;uniqueIndex"`
	Name            string    `gorm:"column:name;size:320;not null"`
	AdditionalPrice int64     `gorm:"column:additional_price_cents;not null"`
	Active          bool      `gorm:"column:active;not null;index"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing catalog options.
func (Option) TableName() string {
	return "catalog_options"
}
