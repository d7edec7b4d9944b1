package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ErrNoFileLink indica que la factura todavía no tiene PDF que enviar
var ErrNoFileLink = errors.New("invoice has no generated file")

// Message es el contenido editable del correo
type Message struct {
	To      string
	Subject string
	Body    string
}

// ResendService maneja el envío de correos electrónicos usando Resend API
type ResendService struct {
	client    *resend.Client
	fromEmail string
	logger    *logrus.Logger
}

// NewResendService crea una nueva instancia de ResendService
func NewResendService(apiKey, fromEmail string, logger *logrus.Logger) *ResendService {
	return &ResendService{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		logger:    logger,
	}
}

// DefaultSubject es el asunto sugerido para una factura
func DefaultSubject(inv *models.Invoice) string {
	return fmt.Sprintf("Invoice %s from %s", inv.InvoiceNumber, inv.CompanyName)
}

// DefaultBody es el cuerpo sugerido para una factura
func DefaultBody(inv *models.Invoice) string {
	return fmt.Sprintf("Hello %s,\n\nPlease find attached your invoice (%s).\n\n"+
		"Let us know if you have any questions.\n\nThank you for your business!\n\nBest regards,\n%s",
		inv.CustomerName, inv.InvoiceNumber, inv.CompanyName)
}

// Compose completa asunto y cuerpo vacíos con los valores por defecto
func Compose(inv *models.Invoice, msg Message) Message {
	if strings.TrimSpace(msg.Subject) == "" {
		msg.Subject = DefaultSubject(inv)
	}
	if strings.TrimSpace(msg.Body) == "" {
		msg.Body = DefaultBody(inv)
	}
	return msg
}

// RenderHTML convierte el cuerpo de texto en HTML con el enlace al PDF
func RenderHTML(body, fileLink string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><body style=\"font-family: Arial, sans-serif; line-height: 1.6; color: #333\">")
	for _, para := range strings.Split(body, "\n\n") {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br/>"))
		b.WriteString("</p>")
	}
	fmt.Fprintf(&b, "<p><a href=\"%s\">Download invoice PDF</a></p>", html.EscapeString(fileLink))
	b.WriteString("</body></html>")
	return b.String()
}

// SendInvoice envía el enlace al PDF de la factura y retorna el id de Resend
func (s *ResendService) SendInvoice(_ context.Context, inv *models.Invoice, msg Message) (string, error) {
	if inv.FileLink == nil || *inv.FileLink == "" {
		return "", ErrNoFileLink
	}
	msg = Compose(inv, msg)

	request := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body + "\n\n" + *inv.FileLink,
		Html:    RenderHTML(msg.Body, *inv.FileLink),
	}

	result, err := s.client.Emails.Send(request)
	if err != nil {
		return "", fmt.Errorf("error sending email via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id":   result.Id,
		"invoice_id": inv.ID,
		"to":         msg.To,
		"subject":    msg.Subject,
	}).Info("Email sent successfully via Resend")

	return result.Id, nil
}
