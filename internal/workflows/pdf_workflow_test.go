package workflows

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	err   error
	calls []uuid.UUID
}

func (f *fakeRefresher) RefreshDocument(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	link := "http://localhost:10000/uploads/invoice-" + id.String() + ".pdf"
	return &models.Invoice{ID: id, FileLink: &link}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPDFWorkflowRun(t *testing.T) {
	refresher := &fakeRefresher{}
	wf := NewPDFWorkflow(refresher, quietLogger())
	id := uuid.New()

	out, err := wf.Run(context.Background(), PDFRegenerateInput{InvoiceID: id.String()})
	require.NoError(t, err)
	assert.Equal(t, id.String(), out.InvoiceID)
	assert.Contains(t, out.FileLink, id.String())
	assert.Equal(t, []uuid.UUID{id}, refresher.calls)
}

func TestPDFWorkflowRejectsBadID(t *testing.T) {
	refresher := &fakeRefresher{}
	wf := NewPDFWorkflow(refresher, quietLogger())

	_, err := wf.Run(context.Background(), PDFRegenerateInput{InvoiceID: "nope"})
	require.Error(t, err)
	assert.Empty(t, refresher.calls)
}

func TestPDFWorkflowPropagatesRenderFailure(t *testing.T) {
	refresher := &fakeRefresher{err: models.ErrRenderFailure}
	wf := NewPDFWorkflow(refresher, quietLogger())

	_, err := wf.Run(context.Background(), PDFRegenerateInput{InvoiceID: uuid.NewString()})
	assert.True(t, errors.Is(err, models.ErrRenderFailure))
}
