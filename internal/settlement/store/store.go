package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cleargate/payline/internal/settlement"
)

const (
	itemColumns = `items.id, items.amount, items.state, items.has_errored,
		items.active_transaction_id, items.created_at, items.updated_at`

	transactionColumns = `transactions.id, transactions.item_id, transactions.status,
		transactions.location, transactions.is_active, transactions.created_at, transactions.updated_at`
)

const (
	insertItemQuery = `INSERT INTO items (amount, state, has_errored)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	getItemQuery = `SELECT ` + itemColumns + `, ` + transactionColumns + `
		FROM items
		LEFT JOIN transactions ON transactions.id = items.active_transaction_id
		WHERE items.id = $1`

	listItemsQuery = `SELECT ` + itemColumns + `, ` + transactionColumns + `
		FROM items
		LEFT JOIN transactions ON transactions.id = items.active_transaction_id
		ORDER BY items.created_at DESC`

	lockItemQuery = `SELECT ` + itemColumns + `
		FROM items
		WHERE items.id = $1
		FOR UPDATE`

	updateItemQuery = `UPDATE items
		SET state = $2, has_errored = $3, active_transaction_id = $4, updated_at = now()
		WHERE id = $1`

	getTransactionQuery = `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transactions.id = $1`

	activeTransactionQuery = `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transactions.item_id = $1 AND transactions.is_active
		ORDER BY transactions.created_at DESC
		LIMIT 1`

	insertTransactionQuery = `INSERT INTO transactions (item_id, status, location, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	updateTransactionQuery = `UPDATE transactions
		SET status = $2, location = $3, is_active = $4, updated_at = now()
		WHERE id = $1`

	deactivateTransactionsQuery = `UPDATE transactions
		SET is_active = false, updated_at = now()
		WHERE item_id = $1 AND is_active`
)

type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateItem(ctx context.Context, it *settlement.Item) error {
	err := s.db.QueryRowContext(ctx, insertItemQuery, it.Amount, it.State, it.HasErrored).
		Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}

	return nil
}

func (s *Store) CreateItems(ctx context.Context, items []*settlement.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		err := tx.QueryRowContext(ctx, insertItemQuery, it.Amount, it.State, it.HasErrored).
			Scan(&it.ID, &it.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing items: %w", err)
	}

	return nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*settlement.Item, error) {
	it, err := scanItemWithTransaction(s.db.QueryRowContext(ctx, getItemQuery, id))
	if err == sql.ErrNoRows {
		return nil, settlement.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting item: %w", err)
	}

	return it, nil
}

func (s *Store) ListItems(ctx context.Context) ([]*settlement.Item, error) {
	rows, err := s.db.QueryContext(ctx, listItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("selecting items: %w", err)
	}
	defer rows.Close()

	var items []*settlement.Item
	for rows.Next() {
		it, err := scanItemWithTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}

	return items, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*settlement.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, getTransactionQuery, id))
	if err == sql.ErrNoRows {
		return nil, settlement.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting transaction: %w", err)
	}

	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter settlement.ListFilter) ([]*settlement.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`

	var (
		conditions []string
		args       []any
	)
	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("transactions.item_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("transactions.status = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("transactions.is_active = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY transactions.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting transactions: %w", err)
	}
	defer rows.Close()

	var txs []*settlement.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

// BeginItemUpdate opens a database transaction and locks the item row, so
// concurrent lifecycle updates on the same item queue up behind each other.
func (s *Store) BeginItemUpdate(ctx context.Context, itemID uuid.UUID) (settlement.ItemTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	it, err := scanItem(tx.QueryRowContext(ctx, lockItemQuery, itemID))
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, settlement.ErrItemNotFound
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("locking item: %w", err)
	}

	return &itemTx{tx: tx, item: it}, nil
}

type itemTx struct {
	tx   *sql.Tx
	item *settlement.Item
}

func (t *itemTx) Item() *settlement.Item { return t.item }

func (t *itemTx) ActiveTransaction(ctx context.Context) (*settlement.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRowContext(ctx, activeTransactionQuery, t.item.ID))
	if err == sql.ErrNoRows {
		return nil, settlement.ErrNoActiveTransaction
	}
	if err != nil {
		return nil, fmt.Errorf("selecting active transaction: %w", err)
	}

	return tr, nil
}

func (t *itemTx) InsertTransaction(ctx context.Context, tr *settlement.Transaction) error {
	err := t.tx.QueryRowContext(ctx, insertTransactionQuery, tr.ItemID, tr.Status, tr.Location, tr.IsActive).
		Scan(&tr.ID, &tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}

	return nil
}

func (t *itemTx) DeactivateActive(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, deactivateTransactionsQuery, t.item.ID); err != nil {
		return fmt.Errorf("deactivating transactions: %w", err)
	}

	return nil
}

func (t *itemTx) UpdateTransaction(ctx context.Context, tr *settlement.Transaction) error {
	_, err := t.tx.ExecContext(ctx, updateTransactionQuery, tr.ID, tr.Status, tr.Location, tr.IsActive)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	return nil
}

func (t *itemTx) UpdateItem(ctx context.Context, it *settlement.Item) error {
	_, err := t.tx.ExecContext(ctx, updateItemQuery, it.ID, it.State, it.HasErrored, it.ActiveTransactionID)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	return nil
}

func (t *itemTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing item update: %w", err)
	}

	return nil
}

func (t *itemTx) Rollback() error {
	return t.tx.Rollback()
}

func scanItem(sc scanner) (*settlement.Item, error) {
	var (
		it        settlement.Item
		activeID  uuid.NullUUID
		updatedAt sql.NullTime
	)

	err := sc.Scan(&it.ID, &it.Amount, &it.State, &it.HasErrored, &activeID, &it.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if activeID.Valid {
		it.ActiveTransactionID = &activeID.UUID
	}
	if updatedAt.Valid {
		it.UpdatedAt = &updatedAt.Time
	}

	return &it, nil
}

func scanItemWithTransaction(sc scanner) (*settlement.Item, error) {
	var (
		it          settlement.Item
		activeID    uuid.NullUUID
		itUpdatedAt sql.NullTime

		txID        uuid.NullUUID
		txItemID    uuid.NullUUID
		txStatus    sql.NullString
		txLocation  sql.NullString
		txActive    sql.NullBool
		txCreatedAt sql.NullTime
		txUpdatedAt sql.NullTime
	)

	err := sc.Scan(
		&it.ID, &it.Amount, &it.State, &it.HasErrored, &activeID, &it.CreatedAt, &itUpdatedAt,
		&txID, &txItemID, &txStatus, &txLocation, &txActive, &txCreatedAt, &txUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if activeID.Valid {
		it.ActiveTransactionID = &activeID.UUID
	}
	if itUpdatedAt.Valid {
		it.UpdatedAt = &itUpdatedAt.Time
	}
	if txID.Valid {
		tr := settlement.Transaction{
			ID:        txID.UUID,
			ItemID:    txItemID.UUID,
			Status:    settlement.Status(txStatus.String),
			Location:  settlement.Location(txLocation.String),
			IsActive:  txActive.Bool,
			CreatedAt: txCreatedAt.Time,
		}
		if txUpdatedAt.Valid {
			tr.UpdatedAt = &txUpdatedAt.Time
		}
		it.ActiveTransaction = &tr
	}

	return &it, nil
}

func scanTransaction(sc scanner) (*settlement.Transaction, error) {
	var (
		t         settlement.Transaction
		updatedAt sql.NullTime
	)

	err := sc.Scan(&t.ID, &t.ItemID, &t.Status, &t.Location, &t.IsActive, &t.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if updatedAt.Valid {
		t.UpdatedAt = &updatedAt.Time
	}

	return &t, nil
}
