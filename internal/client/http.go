// Package client habla con el servicio de facturas y contiene la lógica de
// guardado del lado cliente: borradores, detección de duplicados y preferencias por usuario.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/email"
	"github.com/hypernova-labs/invoice-service/internal/models"
)

// DefaultTimeout limita cada request del Client
const DefaultTimeout = 30 * time.Second

// APIError es una respuesta no-2xx del servicio. Message es el texto del
// servidor y se muestra al usuario sin cambios.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Is traduce el código HTTP a los errores de models
func (e *APIError) Is(target error) bool {
	switch target {
	case models.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case models.ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case models.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case models.ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case models.ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// Client es el cliente HTTP del servicio de facturas
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New crea un cliente para baseURL; token puede ir vacío hasta el login
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient reemplaza el http.Client interno
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SetToken cambia el bearer token de las llamadas a /invoice
func (c *Client) SetToken(token string) {
	c.token = token
}

// Signup crea la cuenta y devuelve el token
func (c *Client) Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login intercambia credenciales por un token
func (c *Client) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List devuelve las facturas del usuario, las más recientes primero
func (c *Client) List(ctx context.Context) ([]models.Invoice, error) {
	var out []models.Invoice
	if err := c.do(ctx, http.MethodGet, "/invoice/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get obtiene una factura por su id
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var out models.Invoice
	if err := c.do(ctx, http.MethodGet, "/invoice/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create guarda una factura nueva
func (c *Client) Create(ctx context.Context, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	var out models.Invoice
	if err := c.do(ctx, http.MethodPost, "/invoice/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sobrescribe los campos enviados de una factura existente
func (c *Client) Update(ctx context.Context, id uuid.UUID, req *models.UpdateInvoiceRequest) (*models.Invoice, error) {
	var out models.Invoice
	if err := c.do(ctx, http.MethodPut, "/invoice/"+id.String(), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete elimina una factura
func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	var out models.MessageResponse
	return c.do(ctx, http.MethodDelete, "/invoice/"+id.String(), nil, &out)
}

// Download devuelve el adjunto JSON y el nombre de archivo sugerido por el servidor
func (c *Client) Download(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/invoice/"+id.String()+"/download", nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading download: %w", models.ErrTransport, err)
	}
	name := "invoice-" + id.String() + ".json"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return data, name, nil
}

// RegeneratePDF pide al servidor que vuelva a generar el PDF. Si el trabajo
// quedó encolado la factura es nil.
func (c *Client) RegeneratePDF(ctx context.Context, id uuid.UUID) (*models.Invoice, bool, error) {
	resp, err := c.send(ctx, http.MethodPost, "/invoice/"+id.String()+"/pdf", nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil, true, nil
	}
	var out models.Invoice
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("%w: decoding invoice: %w", models.ErrTransport, err)
	}
	return &out, false, nil
}

// SendEmail envía el enlace de la factura; asunto y cuerpo vacíos usan los del servidor
func (c *Client) SendEmail(ctx context.Context, id uuid.UUID, msg email.Message) error {
	body := models.EmailInvoiceRequest{To: msg.To, Subject: msg.Subject, Body: msg.Body}
	return c.do(ctx, http.MethodPost, "/invoice/"+id.String()+"/email", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s %s: %w", models.ErrTransport, method, path, err)
	}
	return nil
}

// send ejecuta el request y convierte las respuestas no-2xx en *APIError
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", models.ErrTransport, method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope models.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}

// FileURL agrega ?token= para que el enlace abra en un navegador
func (c *Client) FileURL(link string) string {
	if c.token == "" || !strings.HasPrefix(link, c.baseURL) {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ServerMessage devuelve el mensaje del servidor si err es un APIError, o fallback
func ServerMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
