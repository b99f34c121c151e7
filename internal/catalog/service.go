package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound indicates the referenced catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// StoreConfig describes the dependencies required by the catalog store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// IDProvider issues unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// Store provides CRUD access to the service and option catalogs.
type Store struct {
	db  *gorm.DB
	now func() time.Time
	ids IDProvider
}

// NewStore constructs the catalog store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("catalog: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("catalog: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{db: cfg.Database, now: clock, ids: cfg.IDProvider}, nil
}

// ActiveServices returns all active services keyed by their external identifier.
func (s *Store) ActiveServices(ctx context.Context) (map[string]Service, error) {
	var rows []Service
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	byExternal := make(map[string]Service, len(rows))
	for _, row := range rows {
		byExternal[row.ExternalID] = row
	}
	return byExternal, nil
}

// ActiveOptions returns all active options keyed by their external identifier.
func (s *Store) ActiveOptions(ctx context.Context) (map[string]Option, error) {
	var rows []Option
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	byExternal := make(map[string]Option, len(rows))
	for _, row := range rows {
		byExternal[row.ExternalID] = row
	}
	return byExternal, nil
}

// ListServices returns every service row, active or not.
func (s *Store) ListServices(ctx context.Context) ([]Service, error) {
	var rows []Service
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOptions returns every option row, active or not.
func (s *Store) ListOptions(ctx context.Context) ([]Option, error) {
	var rows []Option
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateService inserts a new service row.
func (s *Store) CreateService(ctx context.Context, externalID, name string, basePrice int64, active bool) (Service, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || strings.TrimSpace(name) == "" {
		return Service{}, fmt.Errorf("catalog: external id and name are required")
	}
	id, err := s.ids.NewID()
	if err != nil {
		return Service{}, err
	}
	row := Service{ID: id, ExternalID: externalID, Name: name, BasePrice: basePrice, Active: active}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Service{}, err
	}
	return row, nil
}

// UpdateService applies field updates to an existing service row.
func (s *Store) UpdateService(ctx context.Context, id string, name string, basePrice int64, active bool) (Service, error) {
	var row Service
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Service{}, ErrNotFound
	}
	if err != nil {
		return Service{}, err
	}
	updates := map[string]interface{}{
		"name":             name,
		"base_price_cents": basePrice,
		"active":           active,
	}
	if err := s.db.WithContext(ctx).Model(&row).Updates(updates).Error; err != nil {
		return Service{}, err
	}
	return row, nil
}

// DeleteService removes a service row.
func (s *Store) DeleteService(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Service{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateOption inserts a new option row.
func (s *Store) CreateOption(ctx context.Context, externalID, name string, additionalPrice int64, active bool) (Option, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || strings.TrimSpace(name) == "" {
		return Option{}, fmt.Errorf("catalog: external id and name are required")
	}
	id, err := s.ids.NewID()
	if err != nil {
		return Option{}, err
	}
	row := Option{ID: id, ExternalID: externalID, Name: name, AdditionalPrice: additionalPrice, Active: active}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Option{}, err
	}
	return row, nil
}

// UpdateOption applies field updates to an existing option row.
func (s *Store) UpdateOption(ctx context.Context, id string, name string, additionalPrice int64, active bool) (Option, error) {
	var row Option
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Option{}, ErrNotFound
	}
	if err != nil {
		return Option{}, err
	}
	updates := map[string]interface{}{
		"name":                   name,
		"additional_price_cents": additionalPrice,
		"active":                 active,
	}
	if err := s.db.WithContext(ctx).Model(&row).Updates(updates).Error; err != nil {
		return Option{}, err
	}
	return row, nil
}

// DeleteOption removes an option row.
func (s *Store) DeleteOption(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Option{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
