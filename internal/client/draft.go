package client

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hypernova-labs/invoice-service/internal/amount"
	"github.com/hypernova-labs/invoice-service/internal/models"
)

// Valores por defecto de un borrador nuevo
const (
	DefaultCompanyName     = "Your Company LLC"
	DefaultCustomerName    = "Customer Name"
	DefaultCustomerAddress = "123 Customer Street, City, State, 12345"
	DefaultItemName        = "Sample Item"
	DefaultTaxRate         = 5.0
)

// Draft es la factura que se edita localmente. ID es un id de cliente basado
// en la hora o, después de load, el id del servidor como texto. Los dos tipos
// de id solo se comparan en Decide.
type Draft struct {
	ID              string            `json:"id"`
	InvoiceNumber   string            `json:"invoiceNumber"`
	CompanyName     string            `json:"companyName"`
	CompanyLogo     string            `json:"companyLogo,omitempty"`
	Signature       string            `json:"signature,omitempty"`
	CustomerName    string            `json:"customerName"`
	CustomerAddress string            `json:"customerAddress"`
	Date            string            `json:"date"`
	Items           []models.LineItem `json:"items"`
	TaxRate         float64           `json:"taxRate"`
}

// Branding lleva los datos de empresa guardados del usuario a los borradores nuevos
type Branding struct {
	CompanyName string
	CompanyLogo string
	Signature   string
}

// NewDraft crea un borrador con el número sugerido para setSize facturas guardadas
func NewDraft(now time.Time, setSize int, brand Branding) Draft {
	id := clientID(now)
	company := brand.CompanyName
	if company == "" {
		company = DefaultCompanyName
	}
	return Draft{
		ID:              id,
		InvoiceNumber:   NextInvoiceNumber(setSize),
		CompanyName:     company,
		CompanyLogo:     brand.CompanyLogo,
		Signature:       brand.Signature,
		CustomerName:    DefaultCustomerName,
		CustomerAddress: DefaultCustomerAddress,
		Date:            now.Format(models.DateLayout),
		Items:           []models.LineItem{{ID: id, Name: DefaultItemName, Quantity: 1, Price: 100}},
		TaxRate:         DefaultTaxRate,
	}
}

// NextInvoiceNumber sugiere INV-001, INV-002, ... según cuántas facturas hay
func NextInvoiceNumber(setSize int) string {
	return fmt.Sprintf("INV-%03d", setSize+1)
}

func clientID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// AddItem agrega una línea vacía
func (d *Draft) AddItem(now time.Time) {
	d.Items = append(d.Items, models.LineItem{ID: clientID(now), Name: "", Quantity: 1, Price: 0})
}

// RemoveItem quita la línea en index
func (d *Draft) RemoveItem(index int) error {
	if index < 0 || index >= len(d.Items) {
		return fmt.Errorf("%w: no item at index %d", models.ErrValidation, index)
	}
	d.Items = append(d.Items[:index:index], d.Items[index+1:]...)
	return nil
}

// ReplaceItem reemplaza la línea en index conservando su id
func (d *Draft) ReplaceItem(index int, item models.LineItem) error {
	if index < 0 || index >= len(d.Items) {
		return fmt.Errorf("%w: no item at index %d", models.ErrValidation, index)
	}
	item.ID = d.Items[index].ID
	d.Items[index] = item
	return nil
}

// Totals usa el mismo cálculo que el servidor
func (d *Draft) Totals() amount.Totals {
	return amount.Compute(d.Items, d.TaxRate)
}

// ToCreateRequest arma el cuerpo de creación; el id del borrador no se envía
func (d *Draft) ToCreateRequest() *models.CreateInvoiceRequest {
	return &models.CreateInvoiceRequest{
		InvoiceNumber:   d.InvoiceNumber,
		CompanyName:     d.CompanyName,
		CompanyLogo:     optional(d.CompanyLogo),
		Signature:       optional(d.Signature),
		CustomerName:    d.CustomerName,
		CustomerAddress: d.CustomerAddress,
		Date:            d.Date,
		Items:           d.items(),
		TaxRate:         d.TaxRate,
	}
}

// ToUpdateRequest envía todos los campos del borrador para que la factura
// destino quede igual. Logo o firma vacíos borran los guardados.
func (d *Draft) ToUpdateRequest() *models.UpdateInvoiceRequest {
	items := d.items()
	number, company := d.InvoiceNumber, d.CompanyName
	logo, signature := d.CompanyLogo, d.Signature
	customer, address, date := d.CustomerName, d.CustomerAddress, d.Date
	taxRate := d.TaxRate
	return &models.UpdateInvoiceRequest{
		InvoiceNumber:   &number,
		CompanyName:     &company,
		CompanyLogo:     &logo,
		Signature:       &signature,
		CustomerName:    &customer,
		CustomerAddress: &address,
		Date:            &date,
		Items:           &items,
		TaxRate:         &taxRate,
	}
}

// FromInvoice carga una factura guardada en el editor. El borrador toma el id
// del servidor, así el siguiente guardado coincide por id.
func FromInvoice(inv *models.Invoice) Draft {
	d := Draft{
		ID:              inv.ID.String(),
		InvoiceNumber:   inv.InvoiceNumber,
		CompanyName:     inv.CompanyName,
		CustomerName:    inv.CustomerName,
		CustomerAddress: inv.CustomerAddress,
		Date:            inv.Date,
		Items:           append([]models.LineItem(nil), inv.Items...),
		TaxRate:         inv.TaxRate,
	}
	if inv.CompanyLogo != nil {
		d.CompanyLogo = *inv.CompanyLogo
	}
	if inv.Signature != nil {
		d.Signature = *inv.Signature
	}
	return d
}

func (d *Draft) items() []models.LineItem {
	items := make([]models.LineItem, len(d.Items))
	copy(items, d.Items)
	return items
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
