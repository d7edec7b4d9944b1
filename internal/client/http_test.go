package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/email"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsBearerAndDecodes(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/invoice/all", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]models.Invoice{{ID: id, InvoiceNumber: "INV-001"}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestClientCreateOmitsDraftID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/invoice/create", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "id")
		assert.Equal(t, "INV-003", body["invoiceNumber"])
		_ = json.NewEncoder(w).Encode(models.Invoice{ID: uuid.New(), InvoiceNumber: "INV-003"})
	}))
	defer srv.Close()

	d := draftWith("1760864400000", "INV-003")
	inv, err := New(srv.URL, "tok").Create(context.Background(), d.ToCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "INV-003", inv.InvoiceNumber)
}

func TestClientMapsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(models.NewForbiddenError("Forbidden"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").Get(context.Background(), uuid.New())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, "Forbidden", ServerMessage(err, "fallback"))
}

func TestClientNonJSONErrorUsesStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, "").Delete(context.Background(), uuid.New())
	assert.Equal(t, "Bad Gateway", ServerMessage(err, "fallback"))
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, "tok").List(context.Background())
	assert.ErrorIs(t, err, models.ErrTransport)
	assert.Equal(t, "fallback", ServerMessage(err, "fallback"))
}

func TestClientDownloadFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="invoice-INV-001.json"`)
		_, _ = w.Write([]byte(`{"invoiceNumber":"INV-001"}`))
	}))
	defer srv.Close()

	data, name, err := New(srv.URL, "tok").Download(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-001.json", name)
	assert.JSONEq(t, `{"invoiceNumber":"INV-001"}`, string(data))
}

func TestClientRegenerateQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(models.StatusResponse{Status: "ENQUEUED"})
	}))
	defer srv.Close()

	inv, queued, err := New(srv.URL, "tok").RegeneratePDF(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Nil(t, inv)
}

func TestClientSendEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body models.EmailInvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "billing@example.com", body.To)
		_, _ = w.Write([]byte(`{"message":"Email sent","id":"em_1"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "tok").SendEmail(context.Background(), uuid.New(), email.Message{To: "billing@example.com"})
	assert.NoError(t, err)
}

func TestFileURLAddsToken(t *testing.T) {
	c := New("http://localhost:10000", "tok")
	assert.Equal(t, "http://localhost:10000/uploads/invoice-x.pdf?token=tok", c.FileURL("http://localhost:10000/uploads/invoice-x.pdf"))
	assert.Equal(t, "https://cdn.example.com/x.pdf", c.FileURL("https://cdn.example.com/x.pdf"))
}
