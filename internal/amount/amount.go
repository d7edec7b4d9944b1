// Package amount calcula los totales de una factura a partir de sus líneas.
// Cliente y servidor usan el mismo código, así los montos coinciden exactamente.
package amount

import "github.com/hypernova-labs/invoice-service/internal/models"

// Totals contiene los montos derivados, sin redondear
type Totals struct {
	Subtotal  float64 `json:"subtotal"`
	TaxAmount float64 `json:"taxAmount"`
	Total     float64 `json:"total"`
}

// Compute suma cantidad*precio de cada línea y aplica taxRate como porcentaje.
// Los valores negativos o no finitos se propagan tal cual.
func Compute(items []models.LineItem, taxRate float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Quantity * item.Price
	}
	taxAmount := subtotal * taxRate / 100
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal + taxAmount,
	}
}

// Apply recalcula Amount y TaxAmount de la factura desde sus líneas
func Apply(inv *models.Invoice) Totals {
	t := Compute(inv.Items, inv.TaxRate)
	inv.Amount = t.Total
	inv.TaxAmount = t.TaxAmount
	return t
}
