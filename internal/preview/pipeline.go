package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Valores por defecto del pipeline
const (
	DefaultSettle       = 200 * time.Millisecond
	DefaultImageTimeout = 5 * time.Second
	DefaultScale        = 2.0
)

// State es una etapa del pipeline
type State int

const (
	StateIdle State = iota
	StateAwaitingImages
	StateCapturing
	StateEncoding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingImages:
		return "awaiting-images"
	case StateCapturing:
		return "capturing"
	case StateEncoding:
		return "encoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Document es una vista previa ya renderizada que el pipeline puede capturar
type Document interface {
	// PrepareCrossOrigin permite leer los píxeles de imágenes externas
	PrepareCrossOrigin(ctx context.Context) error
	Images(ctx context.Context) ([]Image, error)
	// Capture devuelve un PNG de la factura a escala scale, con fondo transparente
	Capture(ctx context.Context, scale float64) ([]byte, error)
}

// Image bloquea hasta que la imagen cargó o falló
type Image interface {
	Wait(ctx context.Context) error
}

// Encoder convierte una captura PNG en un PDF
type Encoder func(raster []byte) ([]byte, error)

// Pipeline recorre Idle -> AwaitingImages -> Capturing -> Encoding -> Done,
// o pasa a Failed desde cualquier etapa.
type Pipeline struct {
	Settle       time.Duration
	ImageTimeout time.Duration
	Scale        float64

	encode   Encoder
	observer func(State)
	logger   *logrus.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPipeline crea un pipeline con los tiempos por defecto y el encoder gofpdf
func NewPipeline(logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		Settle:       DefaultSettle,
		ImageTimeout: DefaultImageTimeout,
		Scale:        DefaultScale,
		encode:       EncodePDF,
		logger:       logger,
		sleep:        sleepCtx,
	}
}

// WithObserver avisa a fn de cada cambio de estado
func (p *Pipeline) WithObserver(fn func(State)) *Pipeline {
	p.observer = fn
	return p
}

// WithEncoder reemplaza el encoder de PDF
func (p *Pipeline) WithEncoder(enc Encoder) *Pipeline {
	p.encode = enc
	return p
}

func (p *Pipeline) enter(s State) {
	p.logger.WithField("state", s.String()).Debug("PDF pipeline")
	if p.observer != nil {
		p.observer(s)
	}
}

// Render genera el PDF de doc. Cualquier fallo termina en StateFailed con un
// error que envuelve models.ErrRenderFailure; no hay reintento automático.
func (p *Pipeline) Render(ctx context.Context, doc Document) (pdf []byte, err error) {
	p.enter(StateIdle)
	defer func() {
		if err != nil {
			p.logger.WithError(err).Error("PDF generation error")
			p.enter(StateFailed)
			err = fmt.Errorf("%w: %w", models.ErrRenderFailure, err)
			return
		}
		p.enter(StateDone)
	}()

	p.enter(StateAwaitingImages)
	if err := p.sleep(ctx, p.Settle); err != nil {
		return nil, err
	}
	if err := doc.PrepareCrossOrigin(ctx); err != nil {
		p.logger.WithError(err).Debug("Could not mark images cross-origin")
	}
	if err := p.awaitImages(ctx, doc); err != nil {
		return nil, err
	}

	p.enter(StateCapturing)
	raster, err := doc.Capture(ctx, p.Scale)
	if err != nil {
		return nil, fmt.Errorf("capturing preview: %w", err)
	}

	p.enter(StateEncoding)
	pdf, err = p.encode(raster)
	if err != nil {
		return nil, fmt.Errorf("encoding pdf: %w", err)
	}
	return pdf, nil
}

// awaitImages da a cada imagen como máximo ImageTimeout. Una imagen que falla
// o se pasa del tiempo cuenta como resuelta.
func (p *Pipeline) awaitImages(ctx context.Context, doc Document) error {
	images, err := doc.Images(ctx)
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(gctx, p.ImageTimeout)
			defer cancel()
			if err := img.Wait(wctx); err != nil && ctx.Err() == nil {
				p.logger.WithError(err).WithField("image", i).Debug("Image not loaded, continuing")
			}
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrEmptyRaster indica que la captura salió vacía
var ErrEmptyRaster = errors.New("empty raster")
