// Package checkout converts a client-submitted cart into a priced
// payment-provider checkout session, creating the backing account, client and
// submission records as needed.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sigillo-app/backend/internal/accounts"
	"github.com/sigillo-app/backend/internal/auth"
	"github.com/sigillo-app/backend/internal/catalog"
	"github.com/sigillo-app/backend/internal/submissions"
	"go.uber.org/zap"
)

const guestClientID = "guest"

var (
	// ErrEmptyForm indicates a checkout request without a form payload.
	ErrEmptyForm = errors.New("checkout: form payload required")
	// ErrNoValidServices indicates the cart priced down to zero line items.
	ErrNoValidServices = errors.New("checkout: no valid services selected")
	// ErrMissingEmail indicates a new-submission checkout without a client email.
	ErrMissingEmail = errors.New("checkout: client email required")
)

// CartDocument is one uploaded document with the option identifiers applied to it.
type CartDocument struct {
	Name      string   `json:"name"`
	OptionIDs []string `json:"option_ids,omitempty"`
}

// CartService is one selected service with its attached documents.
type CartService struct {
	ServiceID string         `json:"service_id"`
	Documents []CartDocument `json:"documents"`
}

// FormData is the client-submitted checkout payload.
type FormData struct {
	Email         string         `json:"email"`
	Password      string         `json:"password,omitempty"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Phone         string         `json:"phone"`
	AppointmentAt *time.Time     `json:"appointment_at,omitempty"`
	Timezone      string         `json:"timezone,omitempty"`
	Services      []CartService  `json:"services"`
}

// Request is one checkout invocation. A present SubmissionID signals a
// retry-payment flow that reuses the existing submission verbatim.
type Request struct {
	FormData     *FormData
	SubmissionID string
	Origin       string
}

// Result carries the session URL and the backing submission identifier.
type Result struct {
	URL          string
	SubmissionID string
}

// LineItem is one priced entry of the checkout session.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// Total returns the line item's aggregate price in cents.
func (li LineItem) Total() int64 {
	return li.UnitAmount * li.Quantity
}

// SessionRequest is the provider-agnostic checkout session description.
type SessionRequest struct {
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// SessionResult is the created provider session.
type SessionResult struct {
	ID  string
	URL string
}

// SessionCreator creates a checkout session with a payment provider.
type SessionCreator interface {
	CreateSession(ctx context.Context, request SessionRequest) (SessionResult, error)
}

// Catalog loads the active service and option catalogs keyed by external id.
type Catalog interface {
	ActiveServices(ctx context.Context) (map[string]catalog.Service, error)
	ActiveOptions(ctx context.Context) (map[string]catalog.Option, error)
}

// AccountResolver finds or creates the account and client profile backing a
// checkout.
type AccountResolver interface {
	FindOrCreateAccount(ctx context.Context, email, password, role string) (accounts.FindOrCreateResult, error)
	FindOrCreateClient(ctx context.Context, accountID, email, firstName, lastName, phone string) (accounts.Client, error)
}

// SubmissionService creates and reloads submission rows.
type SubmissionService interface {
	Create(ctx context.Context, request submissions.CreateRequest) (submissions.Submission, error)
	Get(ctx context.Context, submissionID string) (submissions.Submission, error)
}

// BridgeConfig describes the dependencies of the checkout bridge.
type BridgeConfig struct {
	Catalog     Catalog
	Accounts    AccountResolver
	Submissions SubmissionService
	Sessions    SessionCreator
	SuccessPath string
	CancelPath  string
	Logger      *zap.Logger
}

// Bridge reshapes form data into a payment-provider checkout session.
type Bridge struct {
	catalog     Catalog
	accounts    AccountResolver
	submissions SubmissionService
	sessions    SessionCreator
	successPath string
	cancelPath  string
	logger      *zap.Logger
}

// NewBridge constructs the checkout bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("checkout: catalog dependency required")
	}
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("checkout: submission service required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("checkout: session creator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		catalog:     cfg.Catalog,
		accounts:    cfg.Accounts,
		submissions: cfg.Submissions,
		sessions:    cfg.Sessions,
		successPath: cfg.SuccessPath,
		cancelPath:  cfg.CancelPath,
		logger:      logger,
	}, nil
}

// CreateCheckoutSession runs the full checkout flow. There is no
// partial-state rollback: a submission or client row created before a later
// failure is left in place.
func (b *Bridge) CreateCheckoutSession(ctx context.Context, request Request) (Result, error) {
	if request.SubmissionID == "" && request.FormData == nil {
		return Result{}, ErrEmptyForm
	}

	var submission submissions.Submission
	var data submissions.Data
	clientID := guestClientID
	accountCreated := false

	if request.SubmissionID != "" {
		// Retry-payment flow: reuse the existing submission verbatim.
		existing, err := b.submissions.Get(ctx, request.SubmissionID)
		if err != nil {
			return Result{}, err
		}
		decoded, err := submissions.DecodeData(existing.DataJSON)
		if err != nil {
			return Result{}, err
		}
		submission = existing
		data = decoded
		if existing.ClientID != nil {
			clientID = *existing.ClientID
		}
	} else {
		form := request.FormData
		if strings.TrimSpace(form.Email) == "" {
			return Result{}, ErrMissingEmail
		}

		var clientRef *string
		if b.accounts != nil {
			resolved, err := b.accounts.FindOrCreateAccount(ctx, form.Email, form.Password, auth.RoleClient)
			if err != nil {
				return Result{}, err
			}
			accountCreated = resolved.Created

			client, err := b.accounts.FindOrCreateClient(ctx, resolved.Account.ID, form.Email, form.FirstName, form.LastName, form.Phone)
			if err != nil {
				// The submission still goes through with a null client link.
				b.logger.Warn("client profile creation failed, continuing without link",
					zap.String("email", form.Email), zap.Error(err))
			} else {
				clientRef = &client.ID
				clientID = client.ID
			}
		}

		data = cartData(form)
		created, err := b.submissions.Create(ctx, submissions.CreateRequest{
			Status:          submissions.StatusPendingPayment,
			AppointmentAt:   form.AppointmentAt,
			Timezone:        form.Timezone,
			ClientID:        clientRef,
			ClientFirstName: form.FirstName,
			ClientLastName:  form.LastName,
			ClientEmail:     form.Email,
			ClientPhone:     form.Phone,
			Data:            data,
		})
		if err != nil {
			return Result{}, err
		}
		submission = created
	}

	lineItems, err := b.buildLineItems(ctx, data)
	if err != nil {
		return Result{}, err
	}

	origin := strings.TrimRight(request.Origin, "/")
	session, err := b.sessions.CreateSession(ctx, SessionRequest{
		LineItems:  lineItems,
		SuccessURL: origin + b.successPath,
		CancelURL:  origin + b.cancelPath,
		Metadata: map[string]string{
			"submission_id":   submission.ID,
			"client_id":       clientID,
			"account_created": fmt.Sprintf("%t", accountCreated),
		},
	})
	if err != nil {
		return Result{}, err
	}

	return Result{URL: session.URL, SubmissionID: submission.ID}, nil
}

// buildLineItems prices the cart: one line item per selected service with at
// least one document at base price x document count, plus one line item per
// referenced option at additional price x total document count across the
// whole cart.
func (b *Bridge) buildLineItems(ctx context.Context, data submissions.Data) ([]LineItem, error) {
	services, err := b.catalog.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}
	options, err := b.catalog.ActiveOptions(ctx)
	if err != nil {
		return nil, err
	}

	var items []LineItem
	optionCounts := make(map[string]int64)
	var optionOrder []string

	for _, selected := range data.Services {
		service, ok := services[selected.ServiceID]
		if !ok {
			b.logger.Warn("skipping unknown service in cart", zap.String("service_id", selected.ServiceID))
			continue
		}
		if len(selected.Documents) == 0 {
			b.logger.Warn("skipping service with no documents", zap.String("service_id", selected.ServiceID))
			continue
		}
		items = append(items, LineItem{
			Name:       service.Name,
			UnitAmount: service.BasePrice,
			Quantity:   int64(len(selected.Documents)),
		})
		for _, document := range selected.Documents {
			for _, optionID := range document.OptionIDs {
				if _, seen := optionCounts[optionID]; !seen {
					optionOrder = append(optionOrder, optionID)
				}
				optionCounts[optionID]++
			}
		}
	}

	for _, optionID := range optionOrder {
		option, ok := options[optionID]
		if !ok {
			b.logger.Warn("skipping unknown option in cart", zap.String("option_id", optionID))
			continue
		}
		items = append(items, LineItem{
			Name:       option.Name,
			UnitAmount: option.AdditionalPrice,
			Quantity:   optionCounts[optionID],
		})
	}

	if len(items) == 0 {
		return nil, ErrNoValidServices
	}
	return items, nil
}

func cartData(form *FormData) submissions.Data {
	data := submissions.Data{}
	for _, service := range form.Services {
		selected := submissions.SelectedService{ServiceID: service.ServiceID}
		for _, document := range service.Documents {
			selected.Documents = append(selected.Documents, submissions.SelectedDocument{
				Name:      document.Name,
				OptionIDs: document.OptionIDs,
			})
		}
		data.Services = append(data.Services, selected)
	}
	return data
}
