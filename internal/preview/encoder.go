package preview

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// A4WidthMM es el ancho de página; el alto depende de la captura
const A4WidthMM = 210.0

// PageHeight escala una captura de w x h píxeles a una página de ancho A4
func PageHeight(w, h int) float64 {
	return float64(h) * A4WidthMM / float64(w)
}

// EncodePDF coloca la captura PNG en una sola página de ancho A4 y con el alto
// que pide su proporción. Las facturas largas no se dividen en páginas.
func EncodePDF(raster []byte) ([]byte, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(raster))
	if err != nil {
		return nil, fmt.Errorf("decoding raster: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, ErrEmptyRaster
	}
	height := PageHeight(cfg.Width, cfg.Height)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: A4WidthMM, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("invoice", opts, bytes.NewReader(raster))
	pdf.ImageOptions("invoice", 0, 0, A4WidthMM, height, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName es el nombre del PDF generado en t
func FileName(t time.Time) string {
	return fmt.Sprintf("invoice-%d.pdf", t.UnixMilli())
}

// Save escribe pdf en dir y devuelve la ruta
func Save(dir string, t time.Time, pdf []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(t))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
