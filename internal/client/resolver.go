package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Mensajes que Save y Delete muestran al usuario
const (
	PromptOverwriteByID     = "This will overwrite the existing invoice. Do you want to save changes to the existing invoice?"
	PromptOverwriteByNumber = "An invoice with this number already exists. Do you want to overwrite that invoice?"
	MsgDeclinedByID         = "Save cancelled. To create a new invoice, change the invoice number and try again."
	MsgDeclinedByNumber     = "Please choose a different invoice number to avoid duplicates."
	MsgUpdated              = "Invoice updated successfully!"
	MsgSaved                = "Invoice saved successfully!"
	MsgUpdateFailed         = "Failed to update invoice"
	MsgSaveFailed           = "Failed to save invoice"
	PromptDelete            = "Are you sure you want to delete this invoice?"
	MsgDeleteFailed         = "Failed to delete"
)

// Gateway es la parte de la API del servidor que usa el Resolver
type Gateway interface {
	List(ctx context.Context) ([]models.Invoice, error)
	Create(ctx context.Context, req *models.CreateInvoiceRequest) (*models.Invoice, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateInvoiceRequest) (*models.Invoice, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Confirmer hace una pregunta de sí/no. false cubre tanto el "no" como una
// pregunta cerrada sin respuesta.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Action es el camino de guardado elegido para un borrador
type Action int

const (
	ActionCreate Action = iota
	ActionUpdateByIdentity
	ActionUpdateByNumber
)

func (a Action) String() string {
	switch a {
	case ActionUpdateByIdentity:
		return "update-by-identity"
	case ActionUpdateByNumber:
		return "update-by-number"
	default:
		return "create"
	}
}

// Decision es el resultado de comparar un borrador con la lista guardada
type Decision struct {
	Action Action
	Target *models.Invoice
}

// Decide elige la acción de guardado. Coincidir por id gana sobre coincidir
// por número; si el id coincide, el número no se revisa.
func Decide(draft Draft, set []models.Invoice) Decision {
	for i := range set {
		if draft.ID != "" && set[i].ID.String() == draft.ID {
			return Decision{Action: ActionUpdateByIdentity, Target: &set[i]}
		}
	}
	for i := range set {
		if set[i].InvoiceNumber == draft.InvoiceNumber {
			return Decision{Action: ActionUpdateByNumber, Target: &set[i]}
		}
	}
	return Decision{Action: ActionCreate}
}

// Outcome describe lo que hizo Save
type Outcome struct {
	Action  Action
	Saved   bool
	Invoice *models.Invoice
	Message string
}

// Resolver guarda la lista de facturas del usuario y decide cómo guardar cada borrador
type Resolver struct {
	gateway   Gateway
	confirmer Confirmer
	set       []models.Invoice
	logger    *logrus.Logger
}

// NewResolver crea un Resolver con la lista vacía; Refresh la carga
func NewResolver(gateway Gateway, confirmer Confirmer, logger *logrus.Logger) *Resolver {
	return &Resolver{
		gateway:   gateway,
		confirmer: confirmer,
		logger:    logger,
	}
}

// Refresh reemplaza la lista local por la del servidor
func (r *Resolver) Refresh(ctx context.Context) error {
	list, err := r.gateway.List(ctx)
	if err != nil {
		return fmt.Errorf("listing invoices: %w", err)
	}
	r.set = list
	return nil
}

// Set devuelve una copia de la lista actual
func (r *Resolver) Set() []models.Invoice {
	return append([]models.Invoice(nil), r.set...)
}

// Save hace como máximo una escritura por borrador. Si el usuario rechaza o la
// escritura falla, la lista no cambia. Tras una escritura exitosa la lista se
// vuelve a pedir al servidor; si eso falla el resultado sigue siendo Saved y
// se devuelve también el error.
func (r *Resolver) Save(ctx context.Context, draft Draft) (Outcome, error) {
	decision := Decide(draft, r.set)
	out := Outcome{Action: decision.Action}
	log := r.logger.WithFields(logrus.Fields{
		"action":         decision.Action.String(),
		"invoice_number": draft.InvoiceNumber,
	})

	var (
		saved *models.Invoice
		err   error
	)
	switch decision.Action {
	case ActionUpdateByIdentity, ActionUpdateByNumber:
		prompt, declined := PromptOverwriteByID, MsgDeclinedByID
		if decision.Action == ActionUpdateByNumber {
			prompt, declined = PromptOverwriteByNumber, MsgDeclinedByNumber
		}
		if !r.confirmer.Confirm(ctx, prompt) {
			log.Debug("Overwrite declined")
			out.Message = declined
			return out, nil
		}
		saved, err = r.gateway.Update(ctx, decision.Target.ID, draft.ToUpdateRequest())
		if err != nil {
			log.WithError(err).Error("Update failed")
			out.Message = failureMessage(err, MsgUpdateFailed)
			return out, err
		}
		out.Message = MsgUpdated
	default:
		saved, err = r.gateway.Create(ctx, draft.ToCreateRequest())
		if err != nil {
			log.WithError(err).Error("Save failed")
			out.Message = failureMessage(err, MsgSaveFailed)
			return out, err
		}
		out.Message = MsgSaved
	}

	out.Saved = true
	out.Invoice = saved
	log.WithField("invoice_id", saved.ID).Info("Invoice saved")

	if err := r.Refresh(ctx); err != nil {
		log.WithError(err).Warn("Saved but could not refresh invoice list")
		return out, err
	}
	return out, nil
}

// Delete elimina una factura tras confirmar y recarga la lista. Devuelve si
// llegó a enviarse el borrado.
func (r *Resolver) Delete(ctx context.Context, id uuid.UUID) (bool, string, error) {
	if !r.confirmer.Confirm(ctx, PromptDelete) {
		return false, "", nil
	}
	if err := r.gateway.Delete(ctx, id); err != nil {
		r.logger.WithError(err).WithField("invoice_id", id).Error("Delete failed")
		return false, failureMessage(err, MsgDeleteFailed), err
	}
	if err := r.Refresh(ctx); err != nil {
		return true, "", err
	}
	return true, "", nil
}

// failureMessage usa el mensaje del servidor; los fallos de red usan el texto genérico
func failureMessage(err error, fallback string) string {
	if errors.Is(err, models.ErrTransport) {
		return fallback
	}
	return ServerMessage(err, fallback)
}
