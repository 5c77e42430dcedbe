package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=settlement
type Repository interface {
	CreateItem(ctx context.Context, it *Item) error
	CreateItems(ctx context.Context, items []*Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	BeginItemUpdate(ctx context.Context, itemID uuid.UUID) (ItemTx, error)
}

// ItemTx is a unit of work over a single item. The item row stays locked
// against concurrent lifecycle operations until Commit or Rollback.
type ItemTx interface {
	Item() *Item
	ActiveTransaction(ctx context.Context) (*Transaction, error)
	InsertTransaction(ctx context.Context, t *Transaction) error
	DeactivateActive(ctx context.Context) error
	UpdateTransaction(ctx context.Context, t *Transaction) error
	UpdateItem(ctx context.Context, it *Item) error
	Commit() error
	Rollback() error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateItemParams struct {
	Amount decimal.Decimal
}

type CreateTransactionParams struct {
	Status   Status
	Location Location
}

type ListFilter struct {
	ItemID *uuid.UUID
	Status *Status
	Active *bool
}

func (s *Service) CreateItem(ctx context.Context, params CreateItemParams) (*Item, error) {
	it := &Item{
		Amount: params.Amount,
		State:  ItemStateProcessing,
	}
	if err := s.repo.CreateItem(ctx, it); err != nil {
		return nil, err
	}

	return it, nil
}

func (s *Service) CreateItems(ctx context.Context, params []CreateItemParams) ([]*Item, error) {
	if len(params) == 0 {
		return nil, nil
	}

	items := make([]*Item, len(params))
	for i, p := range params {
		items[i] = &Item{
			Amount: p.Amount,
			State:  ItemStateProcessing,
		}
	}

	if err := s.repo.CreateItems(ctx, items); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context) ([]*Item, error) {
	return s.repo.ListItems(ctx)
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// CreateTransaction opens a new active transaction for the item, retiring
// whichever transaction is currently active. Zero params default to a fresh
// processing transaction at the originator bank.
func (s *Service) CreateTransaction(ctx context.Context, itemID uuid.UUID, params CreateTransactionParams) (*Transaction, error) {
	if params.Status == "" && params.Location == "" {
		params.Status = StatusProcessing
		params.Location = LocationOriginatorBank
	}

	start := State{Status: params.Status, Location: params.Location}
	if !start.ValidStart() {
		return nil, &InvalidStateError{Status: params.Status, Location: params.Location}
	}

	itx, err := s.repo.BeginItemUpdate(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("begin item update: %w", err)
	}
	defer itx.Rollback()

	t, err := openTransaction(ctx, itx, start)
	if err != nil {
		return nil, err
	}

	if err := itx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create transaction: %w", err)
	}

	return t, nil
}

// Move advances the item's active transaction one step along the settlement
// flow and reclassifies the item.
func (s *Service) Move(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	return s.transition(ctx, itemID, (*Transaction).Advance)
}

// MarkError flags the item's active transaction as failed during routing and
// reclassifies the item.
func (s *Service) MarkError(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	return s.transition(ctx, itemID, (*Transaction).MarkError)
}

// Fix opens a fixing transaction for an item whose active transaction has
// errored.
func (s *Service) Fix(ctx context.Context, itemID uuid.UUID) (*Transaction, error) {
	return s.reopen(ctx, itemID, opFix, State{Status: StatusFixing, Location: LocationRoutable})
}

// BeginRefund opens a refunding transaction for an item whose active
// transaction has errored.
func (s *Service) BeginRefund(ctx context.Context, itemID uuid.UUID) (*Transaction, error) {
	return s.reopen(ctx, itemID, opRefund, State{Status: StatusRefunding, Location: LocationRoutable})
}

func (s *Service) transition(ctx context.Context, itemID uuid.UUID, step func(*Transaction) error) (*Item, error) {
	itx, err := s.repo.BeginItemUpdate(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("begin item update: %w", err)
	}
	defer itx.Rollback()

	t, err := itx.ActiveTransaction(ctx)
	if err != nil {
		return nil, err
	}

	if err := step(t); err != nil {
		return nil, err
	}

	if err := itx.UpdateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	it := itx.Item()
	it.ActiveTransaction = t

	if it.Reclassify(t.Status, false) {
		if err := itx.UpdateItem(ctx, it); err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
	}

	if err := itx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	return it, nil
}

func (s *Service) reopen(ctx context.Context, itemID uuid.UUID, op string, start State) (*Transaction, error) {
	itx, err := s.repo.BeginItemUpdate(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("begin item update: %w", err)
	}
	defer itx.Rollback()

	cur, err := itx.ActiveTransaction(ctx)
	if err != nil {
		return nil, err
	}

	if cur.Status != StatusError {
		return nil, &InvalidTransitionError{Op: op, Status: cur.Status, Location: cur.Location}
	}

	t, err := openTransaction(ctx, itx, start)
	if err != nil {
		return nil, err
	}

	if err := itx.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", op, err)
	}

	return t, nil
}

// openTransaction retires the item's active transaction, inserts a new
// active one and repoints the item at it. The item's state is computed once,
// from the new transaction.
func openTransaction(ctx context.Context, itx ItemTx, start State) (*Transaction, error) {
	if err := itx.DeactivateActive(ctx); err != nil {
		return nil, fmt.Errorf("deactivate transactions: %w", err)
	}

	it := itx.Item()

	t := &Transaction{
		ItemID:   it.ID,
		Status:   start.Status,
		Location: start.Location,
		IsActive: true,
	}
	if err := itx.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	it.ActiveTransactionID = &t.ID
	it.ActiveTransaction = t
	it.Reclassify(t.Status, true)

	if err := itx.UpdateItem(ctx, it); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	return t, nil
}
