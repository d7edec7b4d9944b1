package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/amount"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
)

// InvoiceStore es la persistencia que necesita InvoiceService
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	Update(ctx context.Context, inv *models.Invoice) error
	UpdateFileLink(ctx context.Context, id uuid.UUID, link string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Invoice, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DocumentPublisher genera el PDF de una factura y devuelve su enlace público
type DocumentPublisher interface {
	Publish(ctx context.Context, inv *models.Invoice) (string, error)
}

// InvoiceService implementa el CRUD por dueño de las facturas
type InvoiceService struct {
	store     InvoiceStore
	documents DocumentPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

// NewInvoiceService crea una nueva instancia del servicio
func NewInvoiceService(store InvoiceStore, documents DocumentPublisher, logger *logrus.Logger) *InvoiceService {
	return &InvoiceService{
		store:     store,
		documents: documents,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvoice persiste una factura nueva para el dueño. El PDF se genera
// después de guardar; si falla, la factura queda sin fileLink.
func (s *InvoiceService) CreateInvoice(ctx context.Context, ownerID uuid.UUID, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	if details := req.Validate(); len(details) > 0 {
		return nil, &models.ValidationError{Details: details}
	}

	now := s.now()
	inv := &models.Invoice{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		InvoiceNumber:   req.InvoiceNumber,
		CompanyName:     req.CompanyName,
		CompanyLogo:     req.CompanyLogo,
		Signature:       req.Signature,
		CustomerName:    req.CustomerName,
		CustomerAddress: req.CustomerAddress,
		Date:            req.Date,
		Items:           req.Items,
		TaxRate:         req.TaxRate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if inv.Items == nil {
		inv.Items = []models.LineItem{}
	}
	amount.Apply(inv)
	if details := checkTotals(inv); len(details) > 0 {
		return nil, &models.ValidationError{Details: details}
	}

	if err := s.store.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("error creating invoice: %w", err)
	}

	if link, ok := s.publish(ctx, inv); ok {
		if err := s.store.UpdateFileLink(ctx, inv.ID, link); err != nil {
			s.logger.WithError(err).WithField("invoice_id", inv.ID).Error("Failed to persist file link")
		} else {
			inv.FileLink = &link
		}
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id":     inv.ID,
		"owner_id":       ownerID,
		"invoice_number": inv.InvoiceNumber,
		"amount":         inv.Amount,
		"has_file":       inv.FileLink != nil,
	}).Info("Invoice created")

	return inv, nil
}

// UpdateInvoice mezcla los campos presentes, recalcula totales y regenera el PDF.
// Si el PDF falla se conserva el enlace anterior.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, ownerID, id uuid.UUID, req *models.UpdateInvoiceRequest) (*models.Invoice, error) {
	inv, err := s.authorize(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if details := req.Validate(); len(details) > 0 {
		return nil, &models.ValidationError{Details: details}
	}

	req.ApplyTo(inv)
	if inv.Items == nil {
		inv.Items = []models.LineItem{}
	}
	amount.Apply(inv)
	if details := checkTotals(inv); len(details) > 0 {
		return nil, &models.ValidationError{Details: details}
	}
	inv.UpdatedAt = s.now()

	if err := s.store.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("error updating invoice: %w", err)
	}

	// El PDF se regenera solo sobre datos ya guardados
	if link, ok := s.publish(ctx, inv); ok {
		if err := s.store.UpdateFileLink(ctx, inv.ID, link); err != nil {
			s.logger.WithError(err).WithField("invoice_id", inv.ID).Error("Failed to persist file link")
		} else {
			inv.FileLink = &link
		}
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": inv.ID,
		"owner_id":   ownerID,
		"amount":     inv.Amount,
	}).Info("Invoice updated")

	return inv, nil
}

// GetInvoice obtiene una factura del dueño
func (s *InvoiceService) GetInvoice(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	return s.authorize(ctx, ownerID, id)
}

// ListInvoices lista las facturas del dueño, las más recientes primero
func (s *InvoiceService) ListInvoices(ctx context.Context, ownerID uuid.UUID) ([]models.Invoice, error) {
	invoices, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing invoices: %w", err)
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	return invoices, nil
}

// DeleteInvoice elimina la factura. El PDF almacenado no se borra.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := s.authorize(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting invoice: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": id,
		"owner_id":   ownerID,
	}).Info("Invoice deleted")
	return nil
}

// RegenerateDocument vuelve a generar el PDF a petición del usuario. A diferencia
// de create/update, aquí el fallo de render sí se devuelve.
func (s *InvoiceService) RegenerateDocument(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.authorize(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.refreshDocument(ctx, inv)
}

// RefreshDocument regenera el PDF de una factura ya autorizada (lo usa el workflow)
func (s *InvoiceService) RefreshDocument(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refreshDocument(ctx, inv)
}

// Authorize comprueba que la factura existe y pertenece al dueño
func (s *InvoiceService) Authorize(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	return s.authorize(ctx, ownerID, id)
}

func (s *InvoiceService) refreshDocument(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	link, err := s.publishOnce(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("error regenerating document for %s: %w", inv.ID, err)
	}
	if err := s.store.UpdateFileLink(ctx, inv.ID, link); err != nil {
		return nil, fmt.Errorf("error saving file link: %w", err)
	}
	inv.FileLink = &link
	return inv, nil
}

func (s *InvoiceService) authorize(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error getting invoice: %w", err)
	}
	if inv.OwnerID != ownerID {
		return nil, fmt.Errorf("invoice %s: %w", id, models.ErrForbidden)
	}
	return inv, nil
}

// checkTotals rechaza totales que no caben en un float64 (no se pueden serializar a JSON)
func checkTotals(inv *models.Invoice) []models.ErrorDetail {
	var details []models.ErrorDetail
	if math.IsInf(inv.Amount, 0) || math.IsNaN(inv.Amount) {
		details = append(details, models.ErrorDetail{Field: "amount", Issue: "must be a finite number"})
	}
	if math.IsInf(inv.TaxAmount, 0) || math.IsNaN(inv.TaxAmount) {
		details = append(details, models.ErrorDetail{Field: "taxAmount", Issue: "must be a finite number"})
	}
	return details
}

// publish es best-effort: cualquier fallo se registra y devuelve ok=false
func (s *InvoiceService) publish(ctx context.Context, inv *models.Invoice) (string, bool) {
	if s.documents == nil {
		return "", false
	}
	link, err := s.publishOnce(ctx, inv)
	if err != nil {
		s.logger.WithError(err).WithField("invoice_id", inv.ID).Warn("PDF generation failed")
		return "", false
	}
	return link, true
}

func (s *InvoiceService) publishOnce(ctx context.Context, inv *models.Invoice) (link string, err error) {
	if s.documents == nil {
		return "", fmt.Errorf("no document publisher configured: %w", models.ErrRenderFailure)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while rendering: %v: %w", p, models.ErrRenderFailure)
		}
	}()

	link, err = s.documents.Publish(ctx, inv)
	if err != nil && !errors.Is(err, models.ErrRenderFailure) {
		err = fmt.Errorf("%w: %w", models.ErrRenderFailure, err)
	}
	return link, err
}
