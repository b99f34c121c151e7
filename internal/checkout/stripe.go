package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	stripeclient "github.com/stripe/stripe-go/v76/client"
)

// StripeSessionCreator creates Stripe Checkout sessions.
type StripeSessionCreator struct {
	api      *stripeclient.API
	currency string
}

// NewStripeSessionCreator constructs a session creator bound to one API key.
func NewStripeSessionCreator(secretKey, currency string) (*StripeSessionCreator, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("checkout: stripe secret key required")
	}
	if currency == "" {
		currency = "eur"
	}
	api := &stripeclient.API{}
	api.Init(secretKey, nil)
	return &StripeSessionCreator{api: api, currency: currency}, nil
}

// CreateSession translates the provider-agnostic request into one Stripe
// Checkout session with card payments and dynamic price data.
func (c *StripeSessionCreator) CreateSession(_ context.Context, request SessionRequest) (SessionResult, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(request.LineItems))
	for _, item := range request.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(request.SuccessURL),
		CancelURL:          stripe.String(request.CancelURL),
	}
	for key, value := range request.Metadata {
		params.AddMetadata(key, value)
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return SessionResult{}, err
	}
	return SessionResult{ID: session.ID, URL: session.URL}, nil
}
