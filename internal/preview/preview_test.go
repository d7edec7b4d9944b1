package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hypernova-labs/invoice-service/internal/client"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func rasterPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 37, G: 99, B: 235, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeImage struct {
	hang bool
	err  error
}

func (f *fakeImage) Wait(ctx context.Context) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

type fakeDocument struct {
	images     []Image
	raster     []byte
	captureErr error
	imagesErr  error
	scale      float64
	prepared   atomic.Bool
}

func (d *fakeDocument) PrepareCrossOrigin(context.Context) error {
	d.prepared.Store(true)
	return errors.New("not writable")
}

func (d *fakeDocument) Images(context.Context) ([]Image, error) {
	return d.images, d.imagesErr
}

func (d *fakeDocument) Capture(_ context.Context, scale float64) ([]byte, error) {
	d.scale = scale
	return d.raster, d.captureErr
}

func fastPipeline(states *[]State) *Pipeline {
	p := NewPipeline(quietLogger()).WithObserver(func(s State) { *states = append(*states, s) })
	p.Settle = time.Millisecond
	p.ImageTimeout = 20 * time.Millisecond
	return p
}

func TestPipelineHappyPath(t *testing.T) {
	var states []State
	doc := &fakeDocument{
		images: []Image{&fakeImage{}, &fakeImage{hang: true}, &fakeImage{err: errors.New("404")}},
		raster: rasterPNG(t, 40, 60),
	}

	pdf, err := fastPipeline(&states).Render(context.Background(), doc)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.True(t, doc.prepared.Load())
	assert.Equal(t, DefaultScale, doc.scale)
	assert.Equal(t, []State{StateIdle, StateAwaitingImages, StateCapturing, StateEncoding, StateDone}, states)
}

func TestPipelineCaptureFailure(t *testing.T) {
	var states []State
	doc := &fakeDocument{captureErr: errors.New("tainted canvas")}

	pdf, err := fastPipeline(&states).Render(context.Background(), doc)
	assert.Nil(t, pdf)
	assert.ErrorIs(t, err, models.ErrRenderFailure)
	assert.Equal(t, StateFailed, states[len(states)-1])
	assert.NotContains(t, states, StateEncoding)
}

func TestPipelineEncodeFailure(t *testing.T) {
	var states []State
	doc := &fakeDocument{raster: []byte("not a png")}

	_, err := fastPipeline(&states).Render(context.Background(), doc)
	assert.ErrorIs(t, err, models.ErrRenderFailure)
	assert.Equal(t, []State{StateIdle, StateAwaitingImages, StateCapturing, StateEncoding, StateFailed}, states)
}

func TestPipelineCancelled(t *testing.T) {
	var states []State
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastPipeline(&states).Render(ctx, &fakeDocument{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, models.ErrRenderFailure)
}

func TestPipelineCustomEncoder(t *testing.T) {
	var states []State
	raster := []byte("raster")
	var got []byte
	p := fastPipeline(&states).WithEncoder(func(b []byte) ([]byte, error) {
		got = b
		return []byte("%PDF-stub"), nil
	})

	pdf, err := p.Render(context.Background(), &fakeDocument{raster: raster})
	require.NoError(t, err)
	assert.Equal(t, raster, got)
	assert.Equal(t, "%PDF-stub", string(pdf))
}

func TestPipelineStalledImagesAreBounded(t *testing.T) {
	var states []State
	images := make([]Image, 10)
	for i := range images {
		images[i] = &fakeImage{hang: true}
	}
	doc := &fakeDocument{images: images, raster: rasterPNG(t, 10, 10)}

	start := time.Now()
	_, err := fastPipeline(&states).Render(context.Background(), doc)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPageHeight(t *testing.T) {
	assert.Equal(t, 210.0, PageHeight(800, 800))
	assert.Equal(t, 420.0, PageHeight(800, 1600))
	assert.Equal(t, 105.0, PageHeight(1600, 800))
}

func TestEncodePDFRejectsEmpty(t *testing.T) {
	_, err := EncodePDF(nil)
	assert.Error(t, err)
}

func TestSaveUsesTimestampName(t *testing.T) {
	dir := t.TempDir()
	ts := time.UnixMilli(1760864400123)

	path, err := Save(dir, ts, []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "invoice-1760864400123.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))
}

func sampleDraft() client.Draft {
	return client.Draft{
		InvoiceNumber:   "INV-001",
		CompanyName:     "Your Company LLC",
		CustomerName:    "Customer Name",
		CustomerAddress: "123 Customer Street, City, State, 12345",
		Date:            "2026-10-19",
		Items: []models.LineItem{
			{Name: "Sample Item", Quantity: 2, Price: 50},
			{Name: "", Quantity: 1, Price: 0},
		},
		TaxRate: 10,
	}
}

func TestBuildHTML(t *testing.T) {
	d := sampleDraft()
	d.CompanyLogo = "data:image/png;base64,iVBORw0KGgo="
	d.Signature = "javascript:alert(1)"

	html, err := BuildHTML(d, TemplateCreative)
	require.NoError(t, err)

	assert.Contains(t, html, `id="invoice"`)
	assert.Contains(t, html, "#INV-001")
	assert.Contains(t, html, "Bill To:")
	assert.Contains(t, html, "Untitled Item")
	assert.Contains(t, html, "₹100.00")
	assert.Contains(t, html, "Tax (10%):")
	assert.Contains(t, html, "₹110.00")
	assert.Contains(t, html, "#14b8a6")
	assert.Contains(t, html, `src="data:image/png;base64,iVBORw0KGgo="`)
	assert.NotContains(t, html, "javascript:")
	assert.NotContains(t, html, "E-Signature")
	assert.Contains(t, html, "Thank you for your business!")
}

func TestBuildHTMLEscapes(t *testing.T) {
	d := sampleDraft()
	d.CustomerName = "<script>x</script>"
	html, err := BuildHTML(d, TemplateModern)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>x")
}

func TestParseTemplate(t *testing.T) {
	for _, tpl := range Templates {
		got, err := ParseTemplate(strings.ToUpper(string(tpl)))
		require.NoError(t, err)
		assert.Equal(t, tpl, got)

		_, err = BuildHTML(sampleDraft(), tpl)
		assert.NoError(t, err)
	}

	got, err := ParseTemplate("")
	require.NoError(t, err)
	assert.Equal(t, TemplateModern, got)

	_, err = ParseTemplate("gothic")
	assert.ErrorIs(t, err, models.ErrValidation)
}
