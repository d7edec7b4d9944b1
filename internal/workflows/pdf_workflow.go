package workflows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/sirupsen/logrus"
)

// DocumentRefresher regenera y guarda el PDF de una factura
type DocumentRefresher interface {
	RefreshDocument(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

// PDFRegenerateEvent es el evento tal como lo entrega Inngest
type PDFRegenerateEvent struct {
	Name string             `json:"name"`
	Data PDFRegenerateInput `json:"data"`
}

// PDFRegenerateInput representa el input del workflow
type PDFRegenerateInput struct {
	InvoiceID string `json:"invoice_id"`
	OwnerID   string `json:"owner_id"`
}

// PDFRegenerateOutput representa el output del workflow
type PDFRegenerateOutput struct {
	InvoiceID string `json:"invoice_id"`
	FileLink  string `json:"file_link"`
}

// PDFWorkflow regenera el PDF fuera del ciclo de la petición HTTP
type PDFWorkflow struct {
	refresher DocumentRefresher
	logger    *logrus.Logger
}

// NewPDFWorkflow crea una nueva instancia del workflow
func NewPDFWorkflow(refresher DocumentRefresher, logger *logrus.Logger) *PDFWorkflow {
	return &PDFWorkflow{refresher: refresher, logger: logger}
}

// Handle es la función registrada en Inngest
func (w *PDFWorkflow) Handle(ctx context.Context, input inngestgo.Input[PDFRegenerateInput]) (any, error) {
	return step.Run(ctx, "render-and-store", func(ctx context.Context) (*PDFRegenerateOutput, error) {
		return w.Run(ctx, input.Event.Data)
	})
}

// Run ejecuta la regeneración. Un id inválido no se reintenta.
func (w *PDFWorkflow) Run(ctx context.Context, in PDFRegenerateInput) (*PDFRegenerateOutput, error) {
	id, err := uuid.Parse(in.InvoiceID)
	if err != nil {
		return nil, inngestgo.NoRetryError(fmt.Errorf("invalid invoice id %q: %w", in.InvoiceID, models.ErrValidation))
	}

	inv, err := w.refresher.RefreshDocument(ctx, id)
	if err != nil {
		w.logger.WithError(err).WithField("invoice_id", id).Error("PDF regeneration failed")
		return nil, err
	}

	out := &PDFRegenerateOutput{InvoiceID: inv.ID.String()}
	if inv.FileLink != nil {
		out.FileLink = *inv.FileLink
	}

	w.logger.WithFields(logrus.Fields{
		"invoice_id": inv.ID,
		"file_link":  out.FileLink,
	}).Info("PDF regenerated by workflow")
	return out, nil
}
