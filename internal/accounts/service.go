package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials indicates the email/password pair did not match an account.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	// ErrMissingEmail indicates an operation was invoked without an email address.
	ErrMissingEmail = errors.New("accounts: email required")
	// ErrNotaryNotFound indicates the referenced notary profile does not exist.
	ErrNotaryNotFound = errors.New("accounts: notary not found")
)

// ServiceConfig describes the dependencies required for account resolution.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues unique identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// Service manages accounts and the client/notary profile rows linked to them.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	ids    IDProvider
	logger *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("accounts: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("accounts: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, ids: cfg.IDProvider, logger: logger}, nil
}

// Authenticate verifies the email/password pair and returns the matching account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}

	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// FindOrCreateResult reports how an account was resolved.
type FindOrCreateResult struct {
	Account Account
	Created bool
}

// FindOrCreateAccount resolves an account by email, creating one when absent.
// A generated password is used when none is supplied. On a duplicate-email
// conflict the existing account is resolved by lookup rather than failing.
// The fetch-then-insert sequence is not transactional; concurrent signups with
// the same email can race.
func (s *Service) FindOrCreateAccount(ctx context.Context, email, password, role string) (FindOrCreateResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return FindOrCreateResult{}, ErrMissingEmail
	}

	var existing Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return FindOrCreateResult{Account: existing}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return FindOrCreateResult{}, err
	}

	if password == "" {
		password = generatePassword()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return FindOrCreateResult{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return FindOrCreateResult{}, err
	}

	account := Account{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if createErr := s.db.WithContext(ctx).Create(&account).Error; createErr != nil {
		// Likely lost the race to a concurrent signup: fall back to lookup.
		var fallback Account
		lookupErr := s.db.WithContext(ctx).Where("email = ?", email).First(&fallback).Error
		if lookupErr == nil {
			s.logger.Warn("account insert conflicted, resolved existing account",
				zap.String("email", email))
			return FindOrCreateResult{Account: fallback}, nil
		}
		return FindOrCreateResult{}, createErr
	}
	return FindOrCreateResult{Account: account, Created: true}, nil
}

// FindOrCreateClient resolves the client profile for an account/email pair,
// creating one when absent.
func (s *Service) FindOrCreateClient(ctx context.Context, accountID, email, firstName, lastName, phone string) (Client, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Client{}, ErrMissingEmail
	}

	query := s.db.WithContext(ctx)
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	} else {
		query = query.Where("email = ?", email)
	}

	var existing Client
	err := query.First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Client{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Client{}, err
	}
	client := Client{
		ID:        id,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Phone:     phone,
	}
	if accountID != "" {
		client.AccountID = &accountID
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return Client{}, err
	}
	return client, nil
}

// GetNotary loads a notary profile by identifier.
func (s *Service) GetNotary(ctx context.Context, notaryID string) (Notary, error) {
	var notary Notary
	err := s.db.WithContext(ctx).Where("id = ?", notaryID).First(&notary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Notary{}, ErrNotaryNotFound
	}
	if err != nil {
		return Notary{}, err
	}
	return notary, nil
}

// NotaryByAccount resolves the notary profile linked to an account.
func (s *Service) NotaryByAccount(ctx context.Context, accountID string) (Notary, error) {
	var notary Notary
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&notary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Notary{}, ErrNotaryNotFound
	}
	if err != nil {
		return Notary{}, err
	}
	return notary, nil
}

// IsActiveNotary reports whether the notary exists and is active. A missing
// notary reports false without error so callers can reject assignment cleanly.
func (s *Service) IsActiveNotary(ctx context.Context, notaryID string) (bool, error) {
	notary, err := s.GetNotary(ctx, notaryID)
	if errors.Is(err, ErrNotaryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return notary.Active, nil
}

// ListActiveNotaries returns all notaries currently available for assignment.
func (s *Service) ListActiveNotaries(ctx context.Context) ([]Notary, error) {
	var notaries []Notary
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("last_name ASC, first_name ASC").
		Find(&notaries).Error; err != nil {
		return nil, err
	}
	return notaries, nil
}

// SetCompetences replaces the set of catalog services a notary is competent for.
func (s *Service) SetCompetences(ctx context.Context, notaryID string, serviceIDs []string) error {
	if _, err := s.GetNotary(ctx, notaryID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notary_id = ?", notaryID).Delete(&NotaryCompetence{}).Error; err != nil {
			return err
		}
		for _, serviceID := range serviceIDs {
			link := NotaryCompetence{NotaryID: notaryID, ServiceID: serviceID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func generatePassword() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(buf)
}
