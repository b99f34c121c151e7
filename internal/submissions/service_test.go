package submissions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type staticNotaryDirectory struct {
	active map[string]bool
}

func (d *staticNotaryDirectory) IsActiveNotary(ctx context.Context, notaryID string) (bool, error) {
	return d.active[notaryID], nil
}

func newTestService(t *testing.T, ids []string, notaries NotaryDirectory) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:sigillo_submissions_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Submission{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC) },
		IDProvider: &staticIDGenerator{ids: ids},
		Notaries:   notaries,
	})
	if err != nil {
		t.Fatalf("failed to construct submission service: %v", err)
	}
	return service, db
}

func serviceErrorCode(t *testing.T, err error) string {
	t.Helper()
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	return serviceErr.Code()
}

func TestCreateDefaultsToPending(t *testing.T) {
	service, db := newTestService(t, []string{"sub-1"}, nil)

	created, err := service.Create(context.Background(), CreateRequest{
		ClientFirstName: "Ada",
		ClientLastName:  "Moreau",
		ClientEmail:     " ada@example.com ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != string(StatusPending) {
		t.Fatalf("expected pending status, got %q", created.Status)
	}
	if created.ClientEmail != "ada@example.com" {
		t.Fatalf("expected trimmed email, got %q", created.ClientEmail)
	}

	var stored Submission
	if err := db.First(&stored, "id = ?", "sub-1").Error; err != nil {
		t.Fatalf("failed to load stored submission: %v", err)
	}
	data, err := DecodeData(stored.DataJSON)
	if err != nil {
		t.Fatalf("failed to decode stored data: %v", err)
	}
	if data.SchemaVersion != CurrentDataVersion {
		t.Fatalf("expected versioned data record, got %d", data.SchemaVersion)
	}
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	service, _ := newTestService(t, []string{"sub-1"}, nil)

	_, err := service.Create(context.Background(), CreateRequest{Status: "shipped"})
	if code := serviceErrorCode(t, err); code != "submissions.create.invalid_status" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	service, _ := newTestService(t, []string{"sub-1"}, nil)

	if _, err := service.Create(context.Background(), CreateRequest{Status: StatusPendingPayment}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	updated, err := service.UpdateStatus(context.Background(), "sub-1", StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != string(StatusConfirmed) {
		t.Fatalf("expected confirmed, got %q", updated.Status)
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	service, _ := newTestService(t, []string{"sub-1"}, nil)

	if _, err := service.Create(context.Background(), CreateRequest{Status: StatusPending}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	_, err := service.UpdateStatus(context.Background(), "sub-1", StatusCompleted)
	if code := serviceErrorCode(t, err); code != "submissions.update_status.illegal_transition" {
		t.Fatalf("unexpected error code %q", code)
	}
	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if transitionErr.From != StatusPending || transitionErr.To != StatusCompleted {
		t.Fatalf("unexpected transition error: %#v", transitionErr)
	}

	// the row must be untouched after the rejected write
	reloaded, err := service.Get(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if reloaded.Status != string(StatusPending) {
		t.Fatalf("expected status to remain pending, got %q", reloaded.Status)
	}
}

func TestUpdateStatusRejectsTerminalStates(t *testing.T) {
	service, _ := newTestService(t, []string{"sub-1"}, nil)

	if _, err := service.Create(context.Background(), CreateRequest{Status: StatusCancelled}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	_, err := service.UpdateStatus(context.Background(), "sub-1", StatusPending)
	if code := serviceErrorCode(t, err); code != "submissions.update_status.illegal_transition" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestAssignNotaryRequiresActiveNotary(t *testing.T) {
	directory := &staticNotaryDirectory{active: map[string]bool{"notary-1": true}}
	service, _ := newTestService(t, []string{"sub-1"}, directory)

	if _, err := service.Create(context.Background(), CreateRequest{}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	assigned, err := service.AssignNotary(context.Background(), "sub-1", "notary-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assigned.AssignedNotaryID == nil || *assigned.AssignedNotaryID != "notary-1" {
		t.Fatalf("unexpected assignment: %#v", assigned.AssignedNotaryID)
	}

	_, err = service.AssignNotary(context.Background(), "sub-1", "notary-2")
	if code := serviceErrorCode(t, err); code != "submissions.assign_notary.inactive_notary" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestListFiltersByStatusAndNotary(t *testing.T) {
	directory := &staticNotaryDirectory{active: map[string]bool{"notary-1": true}}
	service, _ := newTestService(t, []string{"sub-1", "sub-2", "sub-3"}, directory)

	for _, status := range []Status{StatusPending, StatusConfirmed, StatusConfirmed} {
		if _, err := service.Create(context.Background(), CreateRequest{Status: status}); err != nil {
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	if _, err := service.AssignNotary(context.Background(), "sub-2", "notary-1"); err != nil {
		t.Fatalf("unexpected assign error: %v", err)
	}

	confirmed, err := service.List(context.Background(), Filter{Status: StatusConfirmed})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(confirmed) != 2 {
		t.Fatalf("expected 2 confirmed submissions, got %d", len(confirmed))
	}

	mine, err := service.List(context.Background(), Filter{NotaryID: "notary-1"})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "sub-2" {
		t.Fatalf("unexpected notary listing: %#v", mine)
	}

	ids, err := service.AssignedSubmissionIDs(context.Background(), "notary-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "sub-2" {
		t.Fatalf("unexpected assigned ids: %#v", ids)
	}
}

func TestPaymentReceiptsSkipsUndecodableRows(t *testing.T) {
	service, db := newTestService(t, []string{"sub-1", "sub-2"}, nil)

	paidAt := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	data := Data{Payment: &PaymentReceipt{SessionID: "cs_1", AmountPaid: 14900, Status: "paid", PaidAt: &paidAt}}
	if _, err := service.Create(context.Background(), CreateRequest{Data: data}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if _, err := service.Create(context.Background(), CreateRequest{}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if err := db.Model(&Submission{}).Where("id = ?", "sub-2").
		Update("data_json", "{broken").Error; err != nil {
		t.Fatalf("failed to corrupt row: %v", err)
	}

	receipts, err := service.PaymentReceipts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(receipts))
	}
	receipt := receipts[0]
	if receipt.SubmissionID != "sub-1" || receipt.AmountPaid != 14900 || receipt.Status != "paid" {
		t.Fatalf("unexpected receipt: %#v", receipt)
	}
	if !receipt.Date.Equal(paidAt) {
		t.Fatalf("expected receipt dated at payment time, got %v", receipt.Date)
	}
}

func TestSetPricingUpdatesBothAmounts(t *testing.T) {
	service, _ := newTestService(t, []string{"sub-1"}, nil)

	if _, err := service.Create(context.Background(), CreateRequest{TotalPrice: 100}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	updated, err := service.SetPricing(context.Background(), "sub-1", 45.50, 149)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.NotaryCost != 45.50 || updated.TotalPrice != 149 {
		t.Fatalf("unexpected pricing: %#v", updated)
	}
}

func TestGetUnknownSubmission(t *testing.T) {
	service, _ := newTestService(t, nil, nil)

	_, err := service.Get(context.Background(), "missing")
	if code := serviceErrorCode(t, err); code != "submissions.get.not_found" {
		t.Fatalf("unexpected error code %q", code)
	}
}
