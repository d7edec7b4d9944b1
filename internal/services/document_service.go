package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
)

// PDFRenderer convierte una factura en bytes PDF
type PDFRenderer interface {
	Render(ctx context.Context, inv *models.Invoice) ([]byte, error)
}

// FileStore guarda el PDF en una ruta determinista por factura y devuelve su URL
type FileStore interface {
	Save(ctx context.Context, id uuid.UUID, pdf []byte) (string, error)
}

// ObjectPutter es la parte de ObjectStorage que usa S3FileStore
type ObjectPutter interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// DocumentFileName es el nombre estable del PDF de una factura
func DocumentFileName(id uuid.UUID) string {
	return fmt.Sprintf("invoice-%s.pdf", id)
}

// DocumentService encadena render y almacenamiento del PDF
type DocumentService struct {
	renderer PDFRenderer
	files    FileStore
	logger   *logrus.Logger
}

// NewDocumentService crea una nueva instancia del servicio
func NewDocumentService(renderer PDFRenderer, files FileStore, logger *logrus.Logger) *DocumentService {
	return &DocumentService{
		renderer: renderer,
		files:    files,
		logger:   logger,
	}
}

// Publish renderiza la factura y la guarda, sobrescribiendo el archivo anterior
func (s *DocumentService) Publish(ctx context.Context, inv *models.Invoice) (string, error) {
	pdf, err := s.renderer.Render(ctx, inv)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrRenderFailure, err)
	}

	link, err := s.files.Save(ctx, inv.ID, pdf)
	if err != nil {
		return "", fmt.Errorf("%w: storing pdf: %w", models.ErrRenderFailure, err)
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": inv.ID,
		"file_link":  link,
		"size":       len(pdf),
	}).Info("Invoice PDF generated")

	return link, nil
}

// LocalFileStore escribe los PDF en disco; el router los sirve en /uploads
type LocalFileStore struct {
	dir     string
	baseURL string
}

// NewLocalFileStore crea el directorio si no existe
func NewLocalFileStore(dir, baseURL string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating storage dir %s: %w", dir, err)
	}
	return &LocalFileStore{dir: dir, baseURL: baseURL}, nil
}

// Dir retorna el directorio servido como /uploads
func (s *LocalFileStore) Dir() string {
	return s.dir
}

// Save escribe a un temporal y renombra para no dejar PDFs a medias
func (s *LocalFileStore) Save(_ context.Context, id uuid.UUID, pdf []byte) (string, error) {
	name := DocumentFileName(id)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return "", fmt.Errorf("error writing pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("error closing pdf: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("error moving pdf into place: %w", err)
	}

	return s.baseURL + "/uploads/" + name, nil
}

// S3FileStore sube los PDF a un bucket bajo invoices/
type S3FileStore struct {
	objects   ObjectPutter
	publicURL string
}

// NewS3FileStore crea una nueva instancia. publicURL es la base pública del bucket.
func NewS3FileStore(objects ObjectPutter, publicURL string) *S3FileStore {
	return &S3FileStore{objects: objects, publicURL: publicURL}
}

// Save sube el PDF con una clave determinista
func (s *S3FileStore) Save(ctx context.Context, id uuid.UUID, pdf []byte) (string, error) {
	key := "invoices/" + DocumentFileName(id)
	if err := s.objects.Put(ctx, key, "application/pdf", pdf); err != nil {
		return "", err
	}
	return s.publicURL + "/" + key, nil
}
