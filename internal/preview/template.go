// Package preview arma la vista previa con tema de la factura y la convierte en
// PDF del lado cliente, capturándola y poniéndola en una página.
package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/hypernova-labs/invoice-service/internal/client"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/shopspring/decimal"
)

// Template es el nombre de un tema de vista previa
type Template string

const (
	TemplateModern       Template = "modern"
	TemplateClean        Template = "clean"
	TemplateProfessional Template = "professional"
	TemplateCreative     Template = "creative"
	TemplateMinimalist   Template = "minimalist"
)

// Templates lista los temas en el orden del menú
var Templates = []Template{TemplateModern, TemplateClean, TemplateProfessional, TemplateCreative, TemplateMinimalist}

type palette struct {
	HeaderBg      string
	HeaderText    string
	TableHeaderBg string
	TableHeadRule string
	Border        string
	Accent        string
}

var palettes = map[Template]palette{
	TemplateModern:       {HeaderBg: "#2563eb", HeaderText: "#ffffff", TableHeaderBg: "#dbeafe", Border: "#dbeafe", Accent: "#2563eb"},
	TemplateClean:        {HeaderBg: "#f3f4f6", HeaderText: "#1f2937", TableHeaderBg: "#e5e7eb", Border: "#e5e7eb", Accent: "#f97316"},
	TemplateProfessional: {HeaderBg: "#1f2937", HeaderText: "#ffffff", TableHeaderBg: "#e5e7eb", Border: "#d1d5db", Accent: "#1f2937"},
	TemplateCreative:     {HeaderBg: "#14b8a6", HeaderText: "#ffffff", TableHeaderBg: "#ccfbf1", Border: "#99f6e4", Accent: "#0d9488"},
	TemplateMinimalist:   {HeaderBg: "#ffffff", HeaderText: "#1f2937", TableHeaderBg: "#ffffff", TableHeadRule: "2px solid #1f2937", Border: "#e5e7eb", Accent: "#1f2937"},
}

// ParseTemplate acepta un nombre de tema; vacío significa modern
func ParseTemplate(name string) (Template, error) {
	if name == "" {
		return TemplateModern, nil
	}
	t := Template(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := palettes[t]; !ok {
		return "", fmt.Errorf("%w: unknown template %q", models.ErrValidation, name)
	}
	return t, nil
}

// RootID es el elemento que captura el pipeline
const RootID = "invoice"

var previewTemplate = template.Must(template.New("preview").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Number}}</title>
  <style>
    html, body { margin: 0; background: transparent }
    #invoice { width: 800px; box-sizing: border-box; padding: 32px; background: #ffffff; color: #111827; font-family: Arial, Helvetica, sans-serif }
    header { background: {{.P.HeaderBg}}; color: {{.P.HeaderText}}; padding: 32px; border-radius: 8px 8px 0 0; display: flex; justify-content: space-between; align-items: flex-start }
    header .brand { display: flex; align-items: center; gap: 16px }
    header .logo { height: 64px; width: 64px; object-fit: contain; border-radius: 6px; background: #ffffff; padding: 4px }
    header h1 { margin: 0; font-size: 30px }
    header .meta { text-align: right }
    header .number { font-weight: 600; font-size: 18px; margin: 0 }
    .bill { padding: 32px }
    .bill h2 { color: {{.P.Accent}}; font-size: 16px; margin: 0 0 8px }
    .bill .address { color: #4b5563; white-space: pre-line }
    .items { padding: 0 32px }
    table { width: 100%; border-collapse: collapse; font-size: 14px; text-align: left }
    thead { background: {{.P.TableHeaderBg}}{{if .P.TableHeadRule}}; border-bottom: {{.P.TableHeadRule}}{{end}} }
    th, td { padding: 12px; color: #1f2937 }
    tbody tr { border-bottom: 1px solid {{.P.Border}} }
    .center { text-align: center }
    .right { text-align: right }
    .totals { padding: 32px; display: flex; justify-content: flex-end }
    .totals .box { width: 40% }
    .totals .row { display: flex; justify-content: space-between; margin-bottom: 8px }
    .totals .label { color: #4b5563 }
    .totals .grand { font-weight: 700; font-size: 18px; border-top: 1px solid {{.P.Border}}; padding-top: 8px; color: {{.P.Accent}} }
    .sign { padding: 0 32px; margin-top: 48px; display: flex; justify-content: flex-end }
    .sign .box { width: 33%; text-align: center }
    .sign img { height: 64px; object-fit: contain; margin-bottom: 16px }
    .sign .rule { border-top: 2px solid {{.P.Border}}; padding-top: 8px }
    .sign .note { font-size: 14px; color: #4b5563 }
    footer { padding: 16px 32px; margin-top: 32px; border-top: 1px solid #e5e7eb; text-align: center; color: #6b7280; font-size: 14px }
  </style>
</head>
<body>
<div id="invoice">
  <header>
    <div class="brand">
      {{- if .Logo}}
      <img class="logo" src="{{.Logo}}" alt="Company Logo" />
      {{- end}}
      <div>
        <h1>{{.Company}}</h1>
        <p>Invoice</p>
      </div>
    </div>
    <div class="meta">
      <p class="number">#{{.Number}}</p>
      <p>Date: {{.Date}}</p>
    </div>
  </header>
  <section class="bill">
    <h2>Bill To:</h2>
    <p><strong>{{.Customer}}</strong></p>
    <p class="address">{{.Address}}</p>
  </section>
  <section class="items">
    <table>
      <thead>
        <tr><th>Item</th><th class="center">Qty</th><th class="right">Price</th><th class="right">Total</th></tr>
      </thead>
      <tbody>
        {{- range .Rows}}
        <tr><td>{{.Name}}</td><td class="center">{{.Quantity}}</td><td class="right">{{.Price}}</td><td class="right">{{.Total}}</td></tr>
        {{- end}}
      </tbody>
    </table>
  </section>
  <section class="totals">
    <div class="box">
      <div class="row"><span class="label">Subtotal:</span><span>{{.Subtotal}}</span></div>
      <div class="row"><span class="label">Tax ({{.TaxRate}}%):</span><span>{{.Tax}}</span></div>
      <div class="row grand"><span>Total:</span><span>{{.Total}}</span></div>
    </div>
  </section>
  <section class="sign">
    <div class="box">
      {{- if .Signature}}
      <img src="{{.Signature}}" alt="E-Signature" />
      {{- end}}
      <div class="rule">
        <p><strong>{{.Company}}</strong></p>
        <p class="note">(Authorized Signature)</p>
      </div>
    </div>
  </section>
  <footer><p>Thank you for your business!</p></footer>
</div>
</body>
</html>
`))

type previewRow struct {
	Name     string
	Quantity string
	Price    string
	Total    string
}

type previewData struct {
	P         palette
	Number    string
	Company   string
	Customer  string
	Address   string
	Date      string
	Logo      template.URL
	Signature template.URL
	Rows      []previewRow
	Subtotal  string
	TaxRate   string
	Tax       string
	Total     string
}

// BuildHTML renderiza el borrador con el tema t. Logo y firma son data URIs o
// URLs y se usan como src de img.
func BuildHTML(d client.Draft, t Template) (string, error) {
	p, ok := palettes[t]
	if !ok {
		return "", fmt.Errorf("%w: unknown template %q", models.ErrValidation, t)
	}

	totals := d.Totals()
	data := previewData{
		P:         p,
		Number:    d.InvoiceNumber,
		Company:   d.CompanyName,
		Customer:  d.CustomerName,
		Address:   d.CustomerAddress,
		Date:      d.Date,
		Logo:      imageSource(d.CompanyLogo),
		Signature: imageSource(d.Signature),
		Subtotal:  currency(totals.Subtotal),
		TaxRate:   number(d.TaxRate),
		Tax:       currency(totals.TaxAmount),
		Total:     currency(totals.Total),
	}
	for _, item := range d.Items {
		name := item.Name
		if name == "" {
			name = "Untitled Item"
		}
		data.Rows = append(data.Rows, previewRow{
			Name:     name,
			Quantity: number(item.Quantity),
			Price:    currency(item.Price),
			Total:    currency(item.Quantity * item.Price),
		})
	}

	var buf bytes.Buffer
	if err := previewTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error rendering preview: %w", err)
	}
	return buf.String(), nil
}

// imageSource solo deja pasar data:image, blob: y URLs http(s)
func imageSource(src string) template.URL {
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "data:image/"),
		strings.HasPrefix(lower, "blob:"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "http://"):
		return template.URL(src)
	}
	return ""
}

func currency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "₹" + fmt.Sprint(v)
	}
	return "₹" + decimal.NewFromFloat(v).StringFixed(2)
}

func number(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).String()
}
