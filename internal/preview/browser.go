package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ViewportWidth es el ancho CSS con el que se maqueta la vista previa
const ViewportWidth = 800

const pollInterval = 50 * time.Millisecond

// BrowserDocument es una vista previa cargada en una pestaña de Chrome headless
type BrowserDocument struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// OpenBrowserDocument inicia Chrome y carga html; Close lo libera
func OpenBrowserDocument(ctx context.Context, html, chromePath string) (*BrowserDocument, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	doc := &BrowserDocument{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(ViewportWidth, 600),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("#"+RootID, chromedp.ByQuery),
	)
	if err != nil {
		doc.Close()
		return nil, fmt.Errorf("loading preview: %w", err)
	}
	return doc, nil
}

// Close cierra la pestaña y el navegador
func (d *BrowserDocument) Close() { d.cancel() }

// run ejecuta las acciones en la pestaña respetando el ctx del llamador
func (d *BrowserDocument) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

const markCrossOrigin = `(() => {
  let n = 0;
  document.querySelectorAll('#invoice img').forEach((img) => {
    try {
      if (img.src && !(img.src.startsWith('data:') || img.src.startsWith('blob:'))) {
        img.crossOrigin = 'anonymous';
        n++;
      }
    } catch (e) {}
  });
  return n;
})()`

// PrepareCrossOrigin marca como crossOrigin las imágenes que no son data: ni blob:
func (d *BrowserDocument) PrepareCrossOrigin(ctx context.Context) error {
	var marked int
	return d.run(ctx, chromedp.Evaluate(markCrossOrigin, &marked))
}

// Images devuelve una espera por cada imagen dentro de la factura
func (d *BrowserDocument) Images(ctx context.Context) ([]Image, error) {
	var count int
	if err := d.run(ctx, chromedp.Evaluate(`document.querySelectorAll('#invoice img').length`, &count)); err != nil {
		return nil, err
	}
	images := make([]Image, count)
	for i := range images {
		images[i] = &browserImage{doc: d, index: i}
	}
	return images, nil
}

// Capture toma la captura de la factura a escala scale sobre fondo transparente
func (d *BrowserDocument) Capture(ctx context.Context, scale float64) ([]byte, error) {
	var buf []byte
	err := d.run(ctx,
		chromedp.EmulateViewport(ViewportWidth, 600, chromedp.EmulateScale(scale)),
		emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{}),
		chromedp.Screenshot("#"+RootID, &buf, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, ErrEmptyRaster
	}
	return buf, nil
}

type browserImage struct {
	doc   *BrowserDocument
	index int
}

// Wait consulta img.complete, que es true cuando la imagen cargó o falló
func (i *browserImage) Wait(ctx context.Context) error {
	expr := fmt.Sprintf(`(() => { const img = document.querySelectorAll('#invoice img')[%d]; return !img || img.complete; })()`, i.index)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var done bool
		if err := i.doc.run(ctx, chromedp.Evaluate(expr, &done)); err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
