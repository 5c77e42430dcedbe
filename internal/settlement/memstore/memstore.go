// Package memstore implements settlement.Repository in process memory. It
// backs the memory database driver and the settlement flow tests, and
// provides the snapshot primitives the sqlite driver persists.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cleargate/payline/internal/settlement"
)

var errClosed = errors.New("item update already closed")

type itemRecord struct {
	seq  uint64
	item settlement.Item
}

type txRecord struct {
	seq uint64
	tx  settlement.Transaction
}

type Store struct {
	mu    sync.Mutex
	seq   uint64
	items map[uuid.UUID]*itemRecord
	txs   map[uuid.UUID]*txRecord
	locks map[uuid.UUID]*sync.Mutex
}

func New() *Store {
	return &Store{
		items: make(map[uuid.UUID]*itemRecord),
		txs:   make(map[uuid.UUID]*txRecord),
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) CreateItem(_ context.Context, it *settlement.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeItem(it)

	return nil
}

func (s *Store) CreateItems(_ context.Context, items []*settlement.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		s.storeItem(it)
	}

	return nil
}

// storeItem assigns identity fields and files a copy. Callers hold s.mu.
func (s *Store) storeItem(it *settlement.Item) {
	it.ID = uuid.New()
	it.CreatedAt = time.Now().UTC()
	s.seq++

	cp := *it
	cp.ActiveTransaction = nil
	s.items[it.ID] = &itemRecord{seq: s.seq, item: cp}
	s.locks[it.ID] = &sync.Mutex{}
}

func (s *Store) GetItem(_ context.Context, id uuid.UUID) (*settlement.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.items[id]
	if !ok {
		return nil, settlement.ErrItemNotFound
	}

	return s.hydrate(rec), nil
}

func (s *Store) ListItems(_ context.Context) ([]*settlement.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*itemRecord, 0, len(s.items))
	for _, rec := range s.items {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	items := make([]*settlement.Item, 0, len(recs))
	for _, rec := range recs {
		items = append(items, s.hydrate(rec))
	}

	return items, nil
}

// hydrate copies the record and attaches a copy of its active transaction.
// Callers hold s.mu.
func (s *Store) hydrate(rec *itemRecord) *settlement.Item {
	cp := rec.item
	if cp.ActiveTransactionID != nil {
		if txRec, ok := s.txs[*cp.ActiveTransactionID]; ok {
			txCp := txRec.tx
			cp.ActiveTransaction = &txCp
		}
	}

	return &cp
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*settlement.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.txs[id]
	if !ok {
		return nil, settlement.ErrTransactionNotFound
	}

	cp := rec.tx

	return &cp, nil
}

func (s *Store) ListTransactions(_ context.Context, filter settlement.ListFilter) ([]*settlement.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*txRecord, 0, len(s.txs))
	for _, rec := range s.txs {
		if filter.ItemID != nil && rec.tx.ItemID != *filter.ItemID {
			continue
		}
		if filter.Status != nil && rec.tx.Status != *filter.Status {
			continue
		}
		if filter.Active != nil && rec.tx.IsActive != *filter.Active {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	txs := make([]*settlement.Transaction, 0, len(recs))
	for _, rec := range recs {
		cp := rec.tx
		txs = append(txs, &cp)
	}

	return txs, nil
}

// BeginItemUpdate locks the item against concurrent updates until the
// returned unit is committed or rolled back.
func (s *Store) BeginItemUpdate(_ context.Context, itemID uuid.UUID) (settlement.ItemTx, error) {
	s.mu.Lock()
	lock, ok := s.locks[itemID]
	s.mu.Unlock()

	if !ok {
		return nil, settlement.ErrItemNotFound
	}

	lock.Lock()

	s.mu.Lock()
	cp := s.items[itemID].item
	s.mu.Unlock()

	return &itemTx{store: s, lock: lock, item: &cp}, nil
}

// itemTx stages changes to one item and applies them atomically on Commit.
type itemTx struct {
	store *Store
	lock  *sync.Mutex
	item  *settlement.Item

	done       bool
	deactivate bool
	inserted   *settlement.Transaction
	updated    *settlement.Transaction
	itemDirty  bool
}

func (tx *itemTx) Item() *settlement.Item { return tx.item }

func (tx *itemTx) ActiveTransaction(_ context.Context) (*settlement.Transaction, error) {
	if tx.inserted != nil {
		cp := *tx.inserted
		return &cp, nil
	}
	if tx.updated != nil && tx.updated.IsActive {
		cp := *tx.updated
		return &cp, nil
	}
	if tx.deactivate {
		return nil, settlement.ErrNoActiveTransaction
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	var found *txRecord
	for _, rec := range tx.store.txs {
		if rec.tx.ItemID != tx.item.ID || !rec.tx.IsActive {
			continue
		}
		if found == nil || rec.seq > found.seq {
			found = rec
		}
	}
	if found == nil {
		return nil, settlement.ErrNoActiveTransaction
	}

	cp := found.tx

	return &cp, nil
}

func (tx *itemTx) InsertTransaction(_ context.Context, t *settlement.Transaction) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()

	cp := *t
	tx.inserted = &cp

	return nil
}

func (tx *itemTx) DeactivateActive(_ context.Context) error {
	tx.deactivate = true
	return nil
}

func (tx *itemTx) UpdateTransaction(_ context.Context, t *settlement.Transaction) error {
	cp := *t
	tx.updated = &cp

	return nil
}

func (tx *itemTx) UpdateItem(_ context.Context, it *settlement.Item) error {
	tx.item = it
	tx.itemDirty = true

	return nil
}

func (tx *itemTx) Commit() error {
	if tx.done {
		return errClosed
	}
	tx.done = true
	defer tx.lock.Unlock()

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	if tx.deactivate {
		for _, rec := range s.txs {
			if rec.tx.ItemID == tx.item.ID && rec.tx.IsActive {
				rec.tx.IsActive = false
				rec.tx.UpdatedAt = &now
			}
		}
	}
	if tx.updated != nil {
		if rec, ok := s.txs[tx.updated.ID]; ok {
			cp := *tx.updated
			cp.UpdatedAt = &now
			rec.tx = cp
		}
	}
	if tx.inserted != nil {
		s.seq++
		cp := *tx.inserted
		s.txs[cp.ID] = &txRecord{seq: s.seq, tx: cp}
	}
	if tx.itemDirty {
		if rec, ok := s.items[tx.item.ID]; ok {
			cp := *tx.item
			cp.ActiveTransaction = nil
			cp.UpdatedAt = &now
			rec.item = cp
		}
	}

	return nil
}

func (tx *itemTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.lock.Unlock()

	return nil
}

// Snapshot captures every record ordered oldest first, so a restore keeps
// list ordering stable across restarts.
type Snapshot struct {
	Items        []*settlement.Item        `json:"items"`
	Transactions []*settlement.Transaction `json:"transactions"`
}

func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	itemRecs := make([]*itemRecord, 0, len(s.items))
	for _, rec := range s.items {
		itemRecs = append(itemRecs, rec)
	}
	sort.Slice(itemRecs, func(i, j int) bool { return itemRecs[i].seq < itemRecs[j].seq })

	txRecs := make([]*txRecord, 0, len(s.txs))
	for _, rec := range s.txs {
		txRecs = append(txRecs, rec)
	}
	sort.Slice(txRecs, func(i, j int) bool { return txRecs[i].seq < txRecs[j].seq })

	snap := &Snapshot{
		Items:        make([]*settlement.Item, 0, len(itemRecs)),
		Transactions: make([]*settlement.Transaction, 0, len(txRecs)),
	}
	for _, rec := range itemRecs {
		cp := rec.item
		snap.Items = append(snap.Items, &cp)
	}
	for _, rec := range txRecs {
		cp := rec.tx
		snap.Transactions = append(snap.Transactions, &cp)
	}

	return snap
}

// Restore replaces the store contents with the snapshot records, keeping
// their identity fields.
func (s *Store) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq = 0
	s.items = make(map[uuid.UUID]*itemRecord, len(snap.Items))
	s.txs = make(map[uuid.UUID]*txRecord, len(snap.Transactions))
	s.locks = make(map[uuid.UUID]*sync.Mutex, len(snap.Items))

	for _, it := range snap.Items {
		s.seq++
		cp := *it
		cp.ActiveTransaction = nil
		s.items[cp.ID] = &itemRecord{seq: s.seq, item: cp}
		s.locks[cp.ID] = &sync.Mutex{}
	}
	for _, t := range snap.Transactions {
		s.seq++
		cp := *t
		s.txs[cp.ID] = &txRecord{seq: s.seq, tx: cp}
	}
}
