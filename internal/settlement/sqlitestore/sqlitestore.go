// Package sqlitestore implements settlement.Repository on a single sqlite
// file. Records live in an in-memory store and every committed change is
// snapshotted to the database, so small deployments get durability without
// running postgres.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cleargate/payline/internal/settlement"
	"github.com/cleargate/payline/internal/settlement/memstore"
)

const bucketSettlement = "settlement"

type Store struct {
	db  *sql.DB
	mem *memstore.Store

	// mu serializes snapshot writes so a slow persist cannot be overtaken
	// by a newer one.
	mu sync.Mutex
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload BLOB NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	s := &Store{db: db, mem: memstore.New()}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, bucketSettlement).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	var snap memstore.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	s.mem.Restore(&snap)

	return nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(s.mem.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	const upsert = `INSERT INTO state (bucket, payload) VALUES (?, ?)
		ON CONFLICT (bucket) DO UPDATE SET payload = excluded.payload`
	if _, err := s.db.ExecContext(ctx, upsert, bucketSettlement, payload); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}

	return nil
}

func (s *Store) CreateItem(ctx context.Context, it *settlement.Item) error {
	if err := s.mem.CreateItem(ctx, it); err != nil {
		return err
	}

	return s.persist(ctx)
}

func (s *Store) CreateItems(ctx context.Context, items []*settlement.Item) error {
	if err := s.mem.CreateItems(ctx, items); err != nil {
		return err
	}

	return s.persist(ctx)
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*settlement.Item, error) {
	return s.mem.GetItem(ctx, id)
}

func (s *Store) ListItems(ctx context.Context) ([]*settlement.Item, error) {
	return s.mem.ListItems(ctx)
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*settlement.Transaction, error) {
	return s.mem.GetTransaction(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context, filter settlement.ListFilter) ([]*settlement.Transaction, error) {
	return s.mem.ListTransactions(ctx, filter)
}

func (s *Store) BeginItemUpdate(ctx context.Context, itemID uuid.UUID) (settlement.ItemTx, error) {
	itx, err := s.mem.BeginItemUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return &itemTx{ItemTx: itx, store: s, ctx: ctx}, nil
}

// itemTx snapshots the store after the in-memory commit lands.
type itemTx struct {
	settlement.ItemTx
	store *Store
	ctx   context.Context
}

func (tx *itemTx) Commit() error {
	if err := tx.ItemTx.Commit(); err != nil {
		return err
	}

	return tx.store.persist(tx.ctx)
}
