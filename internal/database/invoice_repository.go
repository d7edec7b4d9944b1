package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const invoiceColumns = `
	id, owner_id, invoice_number, company_name, company_logo, signature,
	customer_name, customer_address, invoice_date, tax_rate, amount, tax_amount,
	file_link, created_at, updated_at`

// InvoiceRepository maneja las operaciones de base de datos para Invoice
type InvoiceRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewInvoiceRepository crea una nueva instancia del repositorio
func NewInvoiceRepository(db *DB, logger *logrus.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserta la factura con sus items en una sola transacción
func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO invoices (
				id, owner_id, invoice_number, company_name, company_logo, signature,
				customer_name, customer_address, invoice_date, tax_rate, amount, tax_amount,
				file_link, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		_, err := tx.ExecContext(ctx, query,
			inv.ID, inv.OwnerID, inv.InvoiceNumber, inv.CompanyName, inv.CompanyLogo, inv.Signature,
			inv.CustomerName, inv.CustomerAddress, inv.Date, inv.TaxRate, inv.Amount, inv.TaxAmount,
			inv.FileLink, inv.CreatedAt, inv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("error inserting invoice: %w", err)
		}

		return insertItems(ctx, tx, inv.ID, inv.Items)
	})
}

// Update reemplaza los campos de la factura y todas sus líneas
func (r *InvoiceRepository) Update(ctx context.Context, inv *models.Invoice) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE invoices SET
				invoice_number = $2, company_name = $3, company_logo = $4, signature = $5,
				customer_name = $6, customer_address = $7, invoice_date = $8, tax_rate = $9,
				amount = $10, tax_amount = $11, file_link = $12, updated_at = $13
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query,
			inv.ID, inv.InvoiceNumber, inv.CompanyName, inv.CompanyLogo, inv.Signature,
			inv.CustomerName, inv.CustomerAddress, inv.Date, inv.TaxRate,
			inv.Amount, inv.TaxAmount, inv.FileLink, inv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("error updating invoice: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("invoice %s: %w", inv.ID, models.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return fmt.Errorf("error clearing invoice items: %w", err)
		}
		return insertItems(ctx, tx, inv.ID, inv.Items)
	})
}

// UpdateFileLink guarda el enlace al PDF generado
func (r *InvoiceRepository) UpdateFileLink(ctx context.Context, id uuid.UUID, link string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET file_link = $2, updated_at = NOW() WHERE id = $1`, id, link)
	if err != nil {
		return fmt.Errorf("error updating file link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetByID obtiene una factura con sus items
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("error getting invoice: %w", err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{inv.ID})
	if err != nil {
		return nil, err
	}
	inv.Items = itemsOrEmpty(items[inv.ID])
	return inv, nil
}

// ListByOwner lista las facturas del dueño, las más recientes primero
func (r *InvoiceRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing invoices: %w", err)
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	ids := []uuid.UUID{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning invoice: %w", err)
		}
		invoices = append(invoices, *inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	if len(ids) == 0 {
		return invoices, nil
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = itemsOrEmpty(items[invoices[i].ID])
	}
	return invoices, nil
}

// Delete elimina la factura; los items se borran en cascada
func (r *InvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %s: %w", id, models.ErrNotFound)
	}

	r.logger.WithField("invoice_id", id).Debug("Invoice row deleted")
	return nil
}

func (r *InvoiceRepository) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.LineItem, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT invoice_id, item_key, name, quantity, price
		FROM invoice_items
		WHERE invoice_id = ANY($1::uuid[])
		ORDER BY invoice_id, position
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("error loading invoice items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.LineItem, len(ids))
	for rows.Next() {
		var invoiceID uuid.UUID
		var item models.LineItem
		if err := rows.Scan(&invoiceID, &item.ID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("error scanning invoice item: %w", err)
		}
		out[invoiceID] = append(out[invoiceID], item)
	}
	return out, rows.Err()
}

func insertItems(ctx context.Context, tx *sql.Tx, invoiceID uuid.UUID, items []models.LineItem) error {
	for pos, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, position, item_key, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, invoiceID, pos, item.ID, item.Name, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("error inserting invoice item %d: %w", pos, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	var logo, signature, fileLink sql.NullString
	err := row.Scan(
		&inv.ID, &inv.OwnerID, &inv.InvoiceNumber, &inv.CompanyName, &logo, &signature,
		&inv.CustomerName, &inv.CustomerAddress, &inv.Date, &inv.TaxRate, &inv.Amount, &inv.TaxAmount,
		&fileLink, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.CompanyLogo = nullString(logo)
	inv.Signature = nullString(signature)
	inv.FileLink = nullString(fileLink)
	return &inv, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func itemsOrEmpty(items []models.LineItem) []models.LineItem {
	if items == nil {
		return []models.LineItem{}
	}
	return items
}
