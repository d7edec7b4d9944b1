package services

import (
	"bytes"
	"fmt"
	"html/template"
	"math"

	"github.com/hypernova-labs/invoice-service/internal/amount"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/shopspring/decimal"
)

// printTemplate es la versión impresa de la factura: sin logo, firma ni temas
var printTemplate = template.Must(template.New("invoice").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Number}}</title>
  <style>
    body { font-family: Arial, sans-serif; padding: 24px; color: #222 }
    h1 { color: #0b5fff }
    .meta { margin-bottom: 12px }
    table { width: 100%; border-collapse: collapse; margin-top: 12px }
    th, td { border: 1px solid #ddd; padding: 8px; }
    th { background: #f4f4f4; text-align: left }
    .right { text-align: right }
    .totals { margin-top: 12px; width: 100%; }
    .totals td { border: none; padding: 4px }
  </style>
</head>
<body>
  <h1>Invoice {{.Number}}</h1>
  <div class="meta">
    <strong>Company:</strong> {{.Company}}<br/>
    <strong>Customer:</strong> {{.Customer}}<br/>
    <strong>Date:</strong> {{.Date}}
  </div>
  <table>
    <thead>
      <tr><th>Item</th><th>Qty</th><th class="right">Price</th><th class="right">Total</th></tr>
    </thead>
    <tbody>
      {{- range .Rows}}
      <tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td class="right">{{.Price}}</td><td class="right">{{.Total}}</td></tr>
      {{- end}}
    </tbody>
  </table>
  <table class="totals">
    <tr><td style="width:80%"></td><td>Subtotal:</td><td class="right">{{.Subtotal}}</td></tr>
    <tr><td></td><td>Tax ({{.TaxRate}}%):</td><td class="right">{{.Tax}}</td></tr>
    <tr><td></td><td><strong>Total:</strong></td><td class="right"><strong>{{.Total}}</strong></td></tr>
  </table>
</body>
</html>
`))

type printRow struct {
	Name     string
	Quantity string
	Price    string
	Total    string
}

type printView struct {
	Number   string
	Company  string
	Customer string
	Date     string
	Rows     []printRow
	TaxRate  string
	Subtotal string
	Tax      string
	Total    string
}

// BuildInvoiceHTML arma el documento HTML autocontenido que se imprime a PDF
func BuildInvoiceHTML(inv *models.Invoice) (string, error) {
	totals := amount.Compute(inv.Items, inv.TaxRate)

	view := printView{
		Number:   inv.InvoiceNumber,
		Company:  inv.CompanyName,
		Customer: inv.CustomerName,
		Date:     inv.Date,
		TaxRate:  plain(inv.TaxRate),
		Subtotal: Money(totals.Subtotal),
		Tax:      Money(totals.TaxAmount),
		Total:    Money(totals.Total),
	}
	for _, item := range inv.Items {
		view.Rows = append(view.Rows, printRow{
			Name:     item.Name,
			Quantity: plain(item.Quantity),
			Price:    Money(item.Price),
			Total:    Money(item.Quantity * item.Price),
		})
	}

	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("error executing invoice template: %w", err)
	}
	return buf.String(), nil
}

// Money formatea un importe con dos decimales
func Money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func plain(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).String()
}
