package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type memStore struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]models.Invoice
	order     []uuid.UUID
	updates   int
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{invoices: map[uuid.UUID]models.Invoice{}}
}

func clone(inv models.Invoice) models.Invoice {
	inv.Items = append([]models.LineItem{}, inv.Items...)
	return inv
}

func (m *memStore) Create(_ context.Context, inv *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = clone(*inv)
	m.order = append(m.order, inv.ID)
	return nil
}

func (m *memStore) Update(_ context.Context, inv *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.invoices[inv.ID]; !ok {
		return models.ErrNotFound
	}
	m.invoices[inv.ID] = clone(*inv)
	m.updates++
	return nil
}

func (m *memStore) UpdateFileLink(_ context.Context, id uuid.UUID, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return models.ErrNotFound
	}
	inv.FileLink = &link
	m.invoices[id] = inv
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", id, models.ErrNotFound)
	}
	out := clone(inv)
	return &out, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Invoice{}
	for _, id := range m.order {
		if inv, ok := m.invoices[id]; ok && inv.OwnerID == ownerID {
			out = append(out, clone(inv))
		}
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invoices)
}

type fakePublisher struct {
	err    error
	panics bool
	calls  int
	seen   []models.Invoice
}

func (p *fakePublisher) Publish(_ context.Context, inv *models.Invoice) (string, error) {
	p.calls++
	p.seen = append(p.seen, clone(*inv))
	if p.panics {
		panic("browser crashed")
	}
	if p.err != nil {
		return "", p.err
	}
	return "http://files.test/uploads/" + DocumentFileName(inv.ID), nil
}

type fakeRenderer struct {
	err error
}

func (r *fakeRenderer) Render(_ context.Context, inv *models.Invoice) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4 " + inv.InvoiceNumber), nil
}

type fakeObjects struct {
	key         string
	contentType string
	data        []byte
	err         error
}

func (o *fakeObjects) Put(_ context.Context, key, contentType string, data []byte) error {
	if o.err != nil {
		return o.err
	}
	o.key, o.contentType, o.data = key, contentType, data
	return nil
}

type memUsers struct {
	byEmail map[string]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]models.User{}}
}

func (u *memUsers) Create(_ context.Context, user *models.User) error {
	if _, ok := u.byEmail[user.Email]; ok {
		return fmt.Errorf("user %s: %w", user.Email, models.ErrConflict)
	}
	u.byEmail[user.Email] = *user
	return nil
}

func (u *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := u.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	return &user, nil
}

var errBrowser = errors.New("chrome failed to start")
