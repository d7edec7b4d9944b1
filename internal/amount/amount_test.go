package amount

import (
	"math"
	"testing"

	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		items   []models.LineItem
		taxRate float64
		want    Totals
	}{
		{
			name:    "single line with tax",
			items:   []models.LineItem{{Quantity: 2, Price: 50}},
			taxRate: 10,
			want:    Totals{Subtotal: 100, TaxAmount: 10, Total: 110},
		},
		{
			name:    "no items",
			items:   nil,
			taxRate: 5,
			want:    Totals{},
		},
		{
			name: "several lines without tax",
			items: []models.LineItem{
				{Quantity: 1, Price: 100},
				{Quantity: 3, Price: 2.5},
			},
			taxRate: 0,
			want:    Totals{Subtotal: 107.5, TaxAmount: 0, Total: 107.5},
		},
		{
			name:    "negative values pass through",
			items:   []models.LineItem{{Quantity: -1, Price: 20}},
			taxRate: 50,
			want:    Totals{Subtotal: -20, TaxAmount: -10, Total: -30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.items, tt.taxRate))
		})
	}
}

func TestComputeIsUnrounded(t *testing.T) {
	qty, price := 3.0, 0.1
	got := Compute([]models.LineItem{{Quantity: qty, Price: price}}, 7)
	subtotal := qty * price
	assert.Equal(t, subtotal, got.Subtotal)
	assert.Equal(t, subtotal*7/100, got.TaxAmount)
	assert.Equal(t, subtotal+subtotal*7/100, got.Total)
}

func TestComputeNonFinite(t *testing.T) {
	got := Compute([]models.LineItem{{Quantity: 1, Price: math.Inf(1)}}, 10)
	assert.True(t, math.IsInf(got.Total, 1))
}

func TestApplyOverwritesClientTotals(t *testing.T) {
	inv := &models.Invoice{
		Items:     []models.LineItem{{Quantity: 2, Price: 50}},
		TaxRate:   10,
		Amount:    9999,
		TaxAmount: 9999,
	}
	totals := Apply(inv)

	assert.Equal(t, 110.0, inv.Amount)
	assert.Equal(t, 10.0, inv.TaxAmount)
	assert.Equal(t, 100.0, totals.Subtotal)
}
