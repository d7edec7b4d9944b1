package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout es el formato de calendario ISO que usan las facturas
const DateLayout = "2006-01-02"

// LineItem representa una línea de la factura. ID es opaco y lo genera el cliente.
type LineItem struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// Invoice es el registro persistido de una factura. ID lo asigna el servidor;
// Amount y TaxAmount siempre se recalculan al escribir.
type Invoice struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         uuid.UUID  `json:"owner"`
	InvoiceNumber   string     `json:"invoiceNumber"`
	CompanyName     string     `json:"companyName"`
	CompanyLogo     *string    `json:"companyLogo,omitempty"`
	Signature       *string    `json:"signature,omitempty"`
	CustomerName    string     `json:"customerName"`
	CustomerAddress string     `json:"customerAddress"`
	Date            string     `json:"date"`
	Items           []LineItem `json:"items"`
	TaxRate         float64    `json:"taxRate"`
	Amount          float64    `json:"amount"`
	TaxAmount       float64    `json:"taxAmount"`
	FileLink        *string    `json:"fileLink,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// DownloadName retorna el nombre del adjunto JSON: el número de factura o, si falta, el ID
func (i *Invoice) DownloadName() string {
	name := i.InvoiceNumber
	if name == "" {
		name = i.ID.String()
	}
	return "invoice-" + name + ".json"
}

// CreateInvoiceRequest representa el cuerpo de POST /invoice/create.
// Los campos de identidad y totales que mande el cliente se ignoran.
type CreateInvoiceRequest struct {
	InvoiceNumber   string     `json:"invoiceNumber" binding:"required"`
	CompanyName     string     `json:"companyName"`
	CompanyLogo     *string    `json:"companyLogo,omitempty"`
	Signature       *string    `json:"signature,omitempty"`
	CustomerName    string     `json:"customerName"`
	CustomerAddress string     `json:"customerAddress"`
	Date            string     `json:"date"`
	Items           []LineItem `json:"items"`
	TaxRate         float64    `json:"taxRate"`
}

// Validate retorna los problemas de validación del request
func (r *CreateInvoiceRequest) Validate() []ErrorDetail {
	var details []ErrorDetail
	if r.InvoiceNumber == "" {
		details = append(details, ErrorDetail{Field: "invoiceNumber", Issue: "is required"})
	}
	if !validDate(r.Date) {
		details = append(details, ErrorDetail{Field: "date", Issue: "must be YYYY-MM-DD"})
	}
	return details
}

// UpdateInvoiceRequest representa el cuerpo parcial de PUT /invoice/:id.
// Un campo nil conserva el valor almacenado.
type UpdateInvoiceRequest struct {
	InvoiceNumber   *string     `json:"invoiceNumber,omitempty"`
	CompanyName     *string     `json:"companyName,omitempty"`
	CompanyLogo     *string     `json:"companyLogo,omitempty"`
	Signature       *string     `json:"signature,omitempty"`
	CustomerName    *string     `json:"customerName,omitempty"`
	CustomerAddress *string     `json:"customerAddress,omitempty"`
	Date            *string     `json:"date,omitempty"`
	Items           *[]LineItem `json:"items,omitempty"`
	TaxRate         *float64    `json:"taxRate,omitempty"`
}

// Validate retorna los problemas de validación del request
func (r *UpdateInvoiceRequest) Validate() []ErrorDetail {
	var details []ErrorDetail
	if r.InvoiceNumber != nil && *r.InvoiceNumber == "" {
		details = append(details, ErrorDetail{Field: "invoiceNumber", Issue: "must not be empty"})
	}
	if r.Date != nil && !validDate(*r.Date) {
		details = append(details, ErrorDetail{Field: "date", Issue: "must be YYYY-MM-DD"})
	}
	return details
}

// ApplyTo mezcla los campos presentes sobre la factura almacenada.
// Un logo o firma vacío borra el valor guardado.
func (r *UpdateInvoiceRequest) ApplyTo(inv *Invoice) {
	if r.InvoiceNumber != nil {
		inv.InvoiceNumber = *r.InvoiceNumber
	}
	if r.CompanyName != nil {
		inv.CompanyName = *r.CompanyName
	}
	if r.CompanyLogo != nil {
		inv.CompanyLogo = clearable(*r.CompanyLogo)
	}
	if r.Signature != nil {
		inv.Signature = clearable(*r.Signature)
	}
	if r.CustomerName != nil {
		inv.CustomerName = *r.CustomerName
	}
	if r.CustomerAddress != nil {
		inv.CustomerAddress = *r.CustomerAddress
	}
	if r.Date != nil {
		inv.Date = *r.Date
	}
	if r.Items != nil {
		inv.Items = *r.Items
	}
	if r.TaxRate != nil {
		inv.TaxRate = *r.TaxRate
	}
}

func clearable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EmailInvoiceRequest representa el cuerpo de POST /invoice/:id/email
type EmailInvoiceRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// MessageResponse es la respuesta mínima {message}
type MessageResponse struct {
	Message string `json:"message"`
}

// StatusResponse se usa para operaciones encoladas
type StatusResponse struct {
	Status    string    `json:"status"`
	InvoiceID uuid.UUID `json:"invoiceId"`
}

func validDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
