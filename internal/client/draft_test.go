package client

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDraftDefaults(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	d := NewDraft(now, 2, Branding{CompanyLogo: "data:image/png;base64,AAAA"})

	assert.Equal(t, "INV-003", d.InvoiceNumber)
	assert.Equal(t, DefaultCompanyName, d.CompanyName)
	assert.Equal(t, "data:image/png;base64,AAAA", d.CompanyLogo)
	assert.Equal(t, "2026-10-19", d.Date)
	assert.Equal(t, DefaultTaxRate, d.TaxRate)
	require.Len(t, d.Items, 1)
	assert.Equal(t, DefaultItemName, d.Items[0].Name)

	_, err := uuid.Parse(d.ID)
	assert.Error(t, err, "draft ids live outside the server identity space")
}

func TestNextInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-001", NextInvoiceNumber(0))
	assert.Equal(t, "INV-010", NextInvoiceNumber(9))
	assert.Equal(t, "INV-1000", NextInvoiceNumber(999))
}

func TestDraftTotals(t *testing.T) {
	d := Draft{Items: []models.LineItem{{Quantity: 2, Price: 50}}, TaxRate: 10}
	totals := d.Totals()
	assert.Equal(t, 100.0, totals.Subtotal)
	assert.Equal(t, 10.0, totals.TaxAmount)
	assert.Equal(t, 110.0, totals.Total)
}

func TestDraftItemEditing(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	d := NewDraft(now, 0, Branding{})
	d.AddItem(now.Add(time.Second))
	require.Len(t, d.Items, 2)
	assert.Equal(t, 1.0, d.Items[1].Quantity)

	keep := d.Items[1].ID
	require.NoError(t, d.ReplaceItem(1, models.LineItem{ID: "ignored", Name: "Widget", Quantity: 3, Price: 4}))
	assert.Equal(t, keep, d.Items[1].ID)
	assert.Equal(t, "Widget", d.Items[1].Name)

	require.NoError(t, d.RemoveItem(0))
	require.Len(t, d.Items, 1)
	assert.Equal(t, "Widget", d.Items[0].Name)

	assert.ErrorIs(t, d.RemoveItem(5), models.ErrValidation)
	assert.ErrorIs(t, d.ReplaceItem(-1, models.LineItem{}), models.ErrValidation)

	require.NoError(t, d.RemoveItem(0))
	assert.Empty(t, d.Items)
	assert.Equal(t, 0.0, d.Totals().Total)
	assert.NotNil(t, d.ToCreateRequest().Items)
}

func TestFromInvoiceUsesServerIdentity(t *testing.T) {
	logo := "data:image/png;base64,AAAA"
	inv := &models.Invoice{ID: uuid.New(), InvoiceNumber: "INV-004", CompanyLogo: &logo, TaxRate: 7}
	d := FromInvoice(inv)

	assert.Equal(t, inv.ID.String(), d.ID)
	assert.Equal(t, logo, d.CompanyLogo)
	assert.Equal(t, ActionUpdateByIdentity, Decide(d, []models.Invoice{*inv}).Action)
}

func TestToUpdateRequestCarriesEveryField(t *testing.T) {
	d := draftWith("x", "INV-009")
	req := d.ToUpdateRequest()
	require.NotNil(t, req.InvoiceNumber)
	require.NotNil(t, req.Items)
	require.NotNil(t, req.TaxRate)
	assert.Equal(t, "INV-009", *req.InvoiceNumber)
	require.NotNil(t, req.CompanyLogo)
	require.NotNil(t, req.Signature)
	assert.Empty(t, req.Validate())
}

func TestOverwriteClearsLogoAndSignature(t *testing.T) {
	logo, signature := "data:image/png;base64,AAAA", "https://cdn.example.com/sig.png"
	stored := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-004",
		CompanyLogo:   &logo,
		Signature:     &signature,
	}

	d := FromInvoice(stored)
	d.CompanyLogo = ""
	d.Signature = ""
	d.ToUpdateRequest().ApplyTo(stored)

	assert.Nil(t, stored.CompanyLogo)
	assert.Nil(t, stored.Signature)

	d.CompanyLogo = logo
	d.ToUpdateRequest().ApplyTo(stored)
	require.NotNil(t, stored.CompanyLogo)
	assert.Equal(t, logo, *stored.CompanyLogo)
	assert.Nil(t, stored.Signature)
}
