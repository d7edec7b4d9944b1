package services

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/hypernova-labs/invoice-service/internal/config"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Tamaño A4 en pulgadas, como lo espera Page.printToPDF
const (
	a4WidthIn  = 8.27
	a4HeightIn = 11.69
	cssPxPerIn = 96.0
)

// ChromeRenderer imprime el HTML de la factura con un Chrome headless
type ChromeRenderer struct {
	cfg    config.PDFConfig
	logger *logrus.Logger
}

// NewChromeRenderer crea una nueva instancia del renderer
func NewChromeRenderer(cfg config.PDFConfig, logger *logrus.Logger) *ChromeRenderer {
	return &ChromeRenderer{cfg: cfg, logger: logger}
}

// allocatorOptions lanza Chrome sin sandbox para poder correr en contenedores
func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if r.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ChromePath))
	}
	return opts
}

// Render lanza un navegador por llamada y lo cierra al terminar
func (r *ChromeRenderer) Render(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	html, err := BuildInvoiceHTML(inv)
	if err != nil {
		return nil, err
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	margin := r.cfg.MarginPx / cssPxPerIn
	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithPrintBackground(true).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("error printing invoice %s: %w", inv.ID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"invoice_id": inv.ID,
		"size":       len(pdf),
	}).Debug("Chrome rendered invoice")

	return pdf, nil
}
