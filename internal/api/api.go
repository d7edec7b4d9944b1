package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/email"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/hypernova-labs/invoice-service/internal/services"
	"github.com/sirupsen/logrus"
)

// InvoiceManager es la lógica de facturas que exponen los handlers
type InvoiceManager interface {
	CreateInvoice(ctx context.Context, ownerID uuid.UUID, req *models.CreateInvoiceRequest) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, ownerID, id uuid.UUID, req *models.UpdateInvoiceRequest) (*models.Invoice, error)
	GetInvoice(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, ownerID uuid.UUID) ([]models.Invoice, error)
	DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error
	RegenerateDocument(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error)
	Authorize(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error)
}

// Authenticator emite y valida tokens bearer
type Authenticator interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	ParseToken(raw string) (models.Principal, error)
}

// Mailer envía el enlace de una factura por correo
type Mailer interface {
	SendInvoice(ctx context.Context, inv *models.Invoice, msg email.Message) (string, error)
}

// RegenerateQueue encola regeneraciones de PDF
type RegenerateQueue interface {
	EnqueueRegenerate(ctx context.Context, ownerID, invoiceID uuid.UUID) error
}

// API maneja todos los endpoints de la API
type API struct {
	invoices InvoiceManager
	auth     Authenticator
	mailer   Mailer
	queue    RegenerateQueue
	limiter  *RateLimiter
	logger   *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(invoices InvoiceManager, auth Authenticator, logger *logrus.Logger) *API {
	return &API{
		invoices: invoices,
		auth:     auth,
		logger:   logger,
	}
}

// WithMailer habilita POST /invoice/:id/email
func (api *API) WithMailer(m Mailer) *API {
	api.mailer = m
	return api
}

// WithQueue hace que la regeneración de PDF sea asíncrona
func (api *API) WithQueue(q RegenerateQueue) *API {
	api.queue = q
	return api
}

// WithRateLimiter limita las peticiones de /invoice por dueño
func (api *API) WithRateLimiter(l *RateLimiter) *API {
	api.limiter = l
	return api
}

// RegisterRoutes monta /auth y /invoice sobre el router
func (api *API) RegisterRoutes(router gin.IRouter) {
	auth := router.Group("/auth")
	{
		auth.POST("/signup", api.Signup)
		auth.POST("/login", api.Login)
	}

	invoice := router.Group("/invoice")
	invoice.Use(api.AuthMiddleware())
	if api.limiter != nil {
		invoice.Use(api.limiter.Middleware())
	}
	{
		invoice.POST("/create", api.CreateInvoice)
		invoice.GET("/all", api.ListInvoices)
		invoice.GET("/:id", api.GetInvoice)
		invoice.PUT("/:id", api.UpdateInvoice)
		invoice.DELETE("/:id", api.DeleteInvoice)
		invoice.GET("/:id/download", api.DownloadInvoice)
		invoice.POST("/:id/pdf", api.RegeneratePDF)
		invoice.POST("/:id/email", api.EmailInvoice)
	}
}

// Signup registra un usuario nuevo
func (api *API) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, err)
		return
	}

	resp, err := api.auth.Signup(c.Request.Context(), &req)
	if err != nil {
		api.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Login intercambia credenciales por un token
func (api *API) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, err)
		return
	}

	resp, err := api.auth.Login(c.Request.Context(), &req)
	if err != nil {
		api.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateInvoice crea una factura para el dueño autenticado
func (api *API) CreateInvoice(c *gin.Context) {
	principal := principalFrom(c)

	var req models.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, err)
		return
	}

	inv, err := api.invoices.CreateInvoice(c.Request.Context(), principal.OwnerID, &req)
	if err != nil {
		api.respondError(c, err, "create invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// ListInvoices lista las facturas del dueño, las más recientes primero
func (api *API) ListInvoices(c *gin.Context) {
	principal := principalFrom(c)

	invoices, err := api.invoices.ListInvoices(c.Request.Context(), principal.OwnerID)
	if err != nil {
		api.respondError(c, err, "list invoices")
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// GetInvoice obtiene una factura por ID
func (api *API) GetInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	inv, err := api.invoices.GetInvoice(c.Request.Context(), principalFrom(c).OwnerID, id)
	if err != nil {
		api.respondError(c, err, "get invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// UpdateInvoice aplica una actualización parcial
func (api *API) UpdateInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	var req models.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, err)
		return
	}

	inv, err := api.invoices.UpdateInvoice(c.Request.Context(), principalFrom(c).OwnerID, id, &req)
	if err != nil {
		api.respondError(c, err, "update invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// DeleteInvoice elimina una factura
func (api *API) DeleteInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	if err := api.invoices.DeleteInvoice(c.Request.Context(), principalFrom(c).OwnerID, id); err != nil {
		api.respondError(c, err, "delete invoice")
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Deleted"})
}

// DownloadInvoice devuelve la factura como adjunto JSON
func (api *API) DownloadInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	inv, err := api.invoices.GetInvoice(c.Request.Context(), principalFrom(c).OwnerID, id)
	if err != nil {
		api.respondError(c, err, "download invoice")
		return
	}

	body, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		api.respondError(c, err, "encode invoice")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", inv.DownloadName()))
	c.Data(http.StatusOK, "application/json", body)
}

// RegeneratePDF vuelve a generar el PDF. Con cola configurada responde 202.
func (api *API) RegeneratePDF(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ownerID := principalFrom(c).OwnerID

	if api.queue != nil {
		if _, err := api.invoices.Authorize(ctx, ownerID, id); err != nil {
			api.respondError(c, err, "regenerate pdf")
			return
		}
		err := api.queue.EnqueueRegenerate(ctx, ownerID, id)
		if err == nil {
			c.JSON(http.StatusAccepted, models.StatusResponse{Status: "ENQUEUED", InvoiceID: id})
			return
		}
		api.logger.WithError(err).WithField("invoice_id", id).Warn("Enqueue failed, rendering inline")
	}

	inv, err := api.invoices.RegenerateDocument(ctx, ownerID, id)
	if err != nil {
		api.respondError(c, err, "regenerate pdf")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// EmailInvoice envía el enlace del PDF al destinatario
func (api *API) EmailInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	if api.mailer == nil {
		c.JSON(http.StatusServiceUnavailable, models.NewUnavailableError("Email service not configured"))
		return
	}

	var req models.EmailInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	inv, err := api.invoices.GetInvoice(ctx, principalFrom(c).OwnerID, id)
	if err != nil {
		api.respondError(c, err, "email invoice")
		return
	}

	emailID, err := api.mailer.SendInvoice(ctx, inv, email.Message{To: req.To, Subject: req.Subject, Body: req.Body})
	if err != nil {
		if errors.Is(err, email.ErrNoFileLink) {
			c.JSON(http.StatusConflict, models.NewConflictError("Invoice has no PDF yet"))
			return
		}
		api.respondError(c, err, "email invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email sent", "id": emailID})
}

func invoiceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("Not found"))
		return uuid.Nil, false
	}
	return id, true
}

func (api *API) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
		{Field: "body", Issue: err.Error()},
	}))
}

// respondError traduce los errores de dominio a HTTP
func (api *API) respondError(c *gin.Context, err error, op string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, models.NewValidationError("Validation failed", verr.Details))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.NewNotFoundError("Not found"))
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, models.NewForbiddenError("Forbidden"))
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Unauthorized"))
	case errors.Is(err, models.ErrRenderFailure):
		api.logger.WithError(err).Error("Error: " + op)
		c.JSON(http.StatusInternalServerError, models.NewInternalError("PDF generation failed"))
	default:
		api.logger.WithError(err).Error("Error: " + op)
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Server error"))
	}
}

func (api *API) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, models.NewValidationError("Email and password are required", nil))
	case errors.Is(err, services.ErrUserExists):
		c.JSON(http.StatusBadRequest, models.NewConflictError("User already exists"))
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, models.NewUnauthorizedError("Invalid credentials"))
	default:
		api.respondError(c, err, "auth")
	}
}
