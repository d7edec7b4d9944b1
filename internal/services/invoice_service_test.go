package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoiceService(store *memStore, pub *fakePublisher) *InvoiceService {
	if pub == nil {
		return NewInvoiceService(store, nil, quietLogger())
	}
	return NewInvoiceService(store, pub, quietLogger())
}

func sampleCreate() *models.CreateInvoiceRequest {
	return &models.CreateInvoiceRequest{
		InvoiceNumber:   "INV-001",
		CompanyName:     "Your Company LLC",
		CustomerName:    "Customer Name",
		CustomerAddress: "123 Customer Street, City, State, 12345",
		Date:            "2026-10-19",
		Items:           []models.LineItem{{ID: "1", Name: "Sample Item", Quantity: 2, Price: 50}},
		TaxRate:         10,
	}
}

func strPtr(s string) *string { return &s }

func TestCreateInvoiceComputesTotalsAndLink(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	svc := newInvoiceService(store, pub)
	owner := uuid.New()

	inv, err := svc.CreateInvoice(context.Background(), owner, sampleCreate())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, inv.ID)
	assert.Equal(t, owner, inv.OwnerID)
	assert.Equal(t, 110.0, inv.Amount)
	assert.Equal(t, 10.0, inv.TaxAmount)
	require.NotNil(t, inv.FileLink)
	assert.Equal(t, "http://files.test/uploads/invoice-"+inv.ID.String()+".pdf", *inv.FileLink)

	stored, err := store.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FileLink)
	assert.Equal(t, *inv.FileLink, *stored.FileLink)
}

func TestCreateInvoiceRenderFailureStillSaves(t *testing.T) {
	tests := []struct {
		name string
		pub  *fakePublisher
	}{
		{name: "render error", pub: &fakePublisher{err: errBrowser}},
		{name: "render panic", pub: &fakePublisher{panics: true}},
		{name: "no publisher", pub: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newInvoiceService(store, tt.pub)

			inv, err := svc.CreateInvoice(context.Background(), uuid.New(), sampleCreate())
			require.NoError(t, err)
			assert.Nil(t, inv.FileLink)
			assert.Equal(t, 1, store.count())

			stored, err := store.GetByID(context.Background(), inv.ID)
			require.NoError(t, err)
			assert.Nil(t, stored.FileLink)
		})
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc := newInvoiceService(newMemStore(), &fakePublisher{})

	req := sampleCreate()
	req.InvoiceNumber = ""
	req.Date = "19/10/2026"

	_, err := svc.CreateInvoice(context.Background(), uuid.New(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Details, 2)
}

func TestUpdateInvoiceMergesAndRecomputes(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	svc := newInvoiceService(store, pub)
	owner := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateInvoice(ctx, owner, sampleCreate())
	require.NoError(t, err)

	items := []models.LineItem{{Name: "Consulting", Quantity: 4, Price: 25}}
	rate := 5.0
	updated, err := svc.UpdateInvoice(ctx, owner, created.ID, &models.UpdateInvoiceRequest{
		CustomerName: strPtr("ACME"),
		Items:        &items,
		TaxRate:      &rate,
	})
	require.NoError(t, err)

	assert.Equal(t, "ACME", updated.CustomerName)
	assert.Equal(t, "INV-001", updated.InvoiceNumber)
	assert.Equal(t, "123 Customer Street, City, State, 12345", updated.CustomerAddress)
	assert.Equal(t, 105.0, updated.Amount)
	assert.Equal(t, 5.0, updated.TaxAmount)
	assert.Equal(t, 1, store.count())

	require.Len(t, pub.seen, 2)
	assert.Equal(t, "ACME", pub.seen[1].CustomerName)
}

func TestUpdateInvoiceKeepsPreviousLinkOnRenderFailure(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	svc := newInvoiceService(store, pub)
	owner := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateInvoice(ctx, owner, sampleCreate())
	require.NoError(t, err)
	require.NotNil(t, created.FileLink)

	pub.err = errBrowser
	updated, err := svc.UpdateInvoice(ctx, owner, created.ID, &models.UpdateInvoiceRequest{
		CompanyName: strPtr("Other Co"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.FileLink)
	assert.Equal(t, *created.FileLink, *updated.FileLink)
	assert.Equal(t, "Other Co", updated.CompanyName)
}

func TestUpdateInvoiceStoreFailureLeavesDocumentAlone(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	svc := newInvoiceService(store, pub)
	owner := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateInvoice(ctx, owner, sampleCreate())
	require.NoError(t, err)
	require.Equal(t, 1, pub.calls)

	store.updateErr = errors.New("connection reset")
	_, err = svc.UpdateInvoice(ctx, owner, created.ID, &models.UpdateInvoiceRequest{
		CustomerName: strPtr("ACME"),
	})
	require.Error(t, err)
	assert.Equal(t, 1, pub.calls)

	stored, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Customer Name", stored.CustomerName)
}

func TestNonFiniteTotalsAreRejected(t *testing.T) {
	huge := []models.LineItem{{Name: "Overflow", Quantity: 1e300, Price: 1e300}}

	t.Run("create", func(t *testing.T) {
		store := newMemStore()
		pub := &fakePublisher{}
		svc := newInvoiceService(store, pub)

		req := sampleCreate()
		req.Items = huge
		_, err := svc.CreateInvoice(context.Background(), uuid.New(), req)
		require.ErrorIs(t, err, models.ErrValidation)

		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "amount", verr.Details[0].Field)
		assert.Equal(t, 0, store.count())
		assert.Equal(t, 0, pub.calls)
	})

	t.Run("update", func(t *testing.T) {
		store := newMemStore()
		svc := newInvoiceService(store, nil)
		owner := uuid.New()
		ctx := context.Background()

		created, err := svc.CreateInvoice(ctx, owner, sampleCreate())
		require.NoError(t, err)

		items := huge
		_, err = svc.UpdateInvoice(ctx, owner, created.ID, &models.UpdateInvoiceRequest{Items: &items})
		require.ErrorIs(t, err, models.ErrValidation)
		assert.Equal(t, 0, store.updates)

		stored, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 110.0, stored.Amount)
	})
}

func TestOwnerIsolation(t *testing.T) {
	store := newMemStore()
	svc := newInvoiceService(store, &fakePublisher{})
	owner, intruder := uuid.New(), uuid.New()
	ctx := context.Background()

	created, err := svc.CreateInvoice(ctx, owner, sampleCreate())
	require.NoError(t, err)

	_, err = svc.GetInvoice(ctx, intruder, created.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.UpdateInvoice(ctx, intruder, created.ID, &models.UpdateInvoiceRequest{Date: strPtr("not a date")})
	assert.ErrorIs(t, err, models.ErrForbidden)

	err = svc.DeleteInvoice(ctx, intruder, created.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = svc.RegenerateDocument(ctx, intruder, created.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	assert.Equal(t, 1, store.count())

	list, err := svc.ListInvoices(ctx, intruder)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUnknownIdentityIsNotFound(t *testing.T) {
	svc := newInvoiceService(newMemStore(), &fakePublisher{})
	ctx := context.Background()

	_, err := svc.GetInvoice(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = svc.DeleteInvoice(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListInvoicesNewestFirst(t *testing.T) {
	store := newMemStore()
	svc := newInvoiceService(store, nil)
	owner := uuid.New()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, number := range []string{"INV-001", "INV-002", "INV-003"} {
		req := sampleCreate()
		req.InvoiceNumber = number
		_, err := svc.CreateInvoice(ctx, owner, req)
		require.NoError(t, err)
	}

	list, err := svc.ListInvoices(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "INV-003", list[0].InvoiceNumber)
	assert.Equal(t, "INV-001", list[2].InvoiceNumber)
}

func TestDeleteInvoice(t *testing.T) {
	store := newMemStore()
	svc := newInvoiceService(store, &fakePublisher{})
	owner := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateInvoice(ctx, owner, sampleCreate())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvoice(ctx, owner, created.ID))
	assert.Equal(t, 0, store.count())

	_, err = svc.GetInvoice(ctx, owner, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegenerateDocumentSurfacesFailure(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	svc := newInvoiceService(store, pub)
	owner := uuid.New()
	ctx := context.Background()

	created, err := svc.CreateInvoice(ctx, owner, sampleCreate())
	require.NoError(t, err)

	pub.err = errBrowser
	_, err = svc.RegenerateDocument(ctx, owner, created.ID)
	assert.ErrorIs(t, err, models.ErrRenderFailure)

	pub.err = nil
	inv, err := svc.RegenerateDocument(ctx, owner, created.ID)
	require.NoError(t, err)
	require.NotNil(t, inv.FileLink)
	assert.Equal(t, 3, pub.calls)
}
