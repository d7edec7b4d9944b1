package services

import (
	"math"
	"testing"

	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInvoiceHTML(t *testing.T) {
	logo := "data:image/png;base64,AAAA"
	inv := &models.Invoice{
		InvoiceNumber: "INV-001",
		CompanyName:   "Your Company LLC",
		CompanyLogo:   &logo,
		CustomerName:  "Jane <Doe>",
		Date:          "2026-10-19",
		Items: []models.LineItem{
			{Name: "Sample Item", Quantity: 2, Price: 50},
			{Name: "Support", Quantity: 1.5, Price: 10},
		},
		TaxRate: 10,
	}

	html, err := BuildInvoiceHTML(inv)
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Invoice INV-001</title>")
	assert.Contains(t, html, "<h1>Invoice INV-001</h1>")
	assert.Contains(t, html, "<strong>Customer:</strong> Jane &lt;Doe&gt;")
	assert.Contains(t, html, "<td>Sample Item</td><td>2</td><td class=\"right\">50.00</td><td class=\"right\">100.00</td>")
	assert.Contains(t, html, "<td>1.5</td>")
	assert.Contains(t, html, "Subtotal:</td><td class=\"right\">115.00</td>")
	assert.Contains(t, html, "Tax (10%):</td><td class=\"right\">11.50</td>")
	assert.Contains(t, html, "<strong>126.50</strong>")
	assert.NotContains(t, html, logo)
}

func TestBuildInvoiceHTMLEmptyItems(t *testing.T) {
	html, err := BuildInvoiceHTML(&models.Invoice{InvoiceNumber: "INV-002"})
	require.NoError(t, err)
	assert.Contains(t, html, "Subtotal:</td><td class=\"right\">0.00</td>")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "110.00", Money(110))
	assert.Equal(t, "0.30", Money(0.1+0.2))
	assert.Equal(t, "-3.50", Money(-3.5))
	assert.Equal(t, "+Inf", Money(math.Inf(1)))
}
