package workflows

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/config"
	"github.com/inngest/inngestgo"
	"github.com/sirupsen/logrus"
)

// EventPDFRegenerate se envía cuando el usuario pide regenerar un PDF
const EventPDFRegenerate = "invoice/pdf.regenerate"

// InngestClient maneja la configuración y registro de workflows
type InngestClient struct {
	client inngestgo.Client
	logger *logrus.Logger
}

// NewInngestClient crea una nueva instancia del cliente
func NewInngestClient(cfg *config.Config, logger *logrus.Logger) (*InngestClient, error) {
	if cfg.Inngest.EventKey == "" {
		return nil, fmt.Errorf("INNGEST_EVENT_KEY not configured")
	}
	if cfg.Inngest.SigningKey == "" {
		return nil, fmt.Errorf("INNGEST_SIGNING_KEY not configured")
	}

	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		EventKey:   &cfg.Inngest.EventKey,
		SigningKey: &cfg.Inngest.SigningKey,
		AppID:      cfg.Inngest.AppID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Inngest client: %w", err)
	}

	return &InngestClient{
		client: client,
		logger: logger,
	}, nil
}

// RegisterWorkflows registra las funciones de la aplicación con Inngest
func (c *InngestClient) RegisterWorkflows(refresher DocumentRefresher) error {
	workflow := NewPDFWorkflow(refresher, c.logger)

	_, err := inngestgo.CreateFunction(
		c.client,
		inngestgo.FunctionOpts{
			ID:      "regenerate-invoice-pdf",
			Name:    "Regenerate invoice PDF",
			Retries: inngestgo.IntPtr(0),
		},
		inngestgo.EventTrigger(EventPDFRegenerate, nil),
		workflow.Handle,
	)
	if err != nil {
		return fmt.Errorf("error registering pdf workflow: %w", err)
	}

	c.logger.WithField("event", EventPDFRegenerate).Info("Workflow registered with Inngest")
	return nil
}

// Handler expone el endpoint que Inngest invoca
func (c *InngestClient) Handler() http.Handler {
	return c.client.Serve()
}

// EnqueueRegenerate publica el evento de regeneración para una factura
func (c *InngestClient) EnqueueRegenerate(ctx context.Context, ownerID, invoiceID uuid.UUID) error {
	id, err := c.client.Send(ctx, inngestgo.Event{
		Name: EventPDFRegenerate,
		Data: map[string]any{
			"invoice_id": invoiceID.String(),
			"owner_id":   ownerID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("error sending %s: %w", EventPDFRegenerate, err)
	}

	c.logger.WithFields(logrus.Fields{
		"event_id":   id,
		"invoice_id": invoiceID,
	}).Info("PDF regeneration enqueued")
	return nil
}
