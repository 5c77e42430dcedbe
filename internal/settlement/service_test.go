package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cleargate/payline/internal/settlement"
)

func TestService_CreateItem(t *testing.T) {
	type args struct {
		params settlement.CreateItemParams
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(m *settlement.MockRepository)
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{
				params: settlement.CreateItemParams{
					Amount: decimal.RequireFromString("400.23"),
				},
			},
			setupMock: func(m *settlement.MockRepository) {
				m.EXPECT().
					CreateItem(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, it *settlement.Item) error {
						it.ID = uuid.New()
						it.CreatedAt = time.Now()
						return nil
					})
			},
			wantErr: false,
		},
		{
			name: "RepoError",
			args: args{
				params: settlement.CreateItemParams{
					Amount: decimal.RequireFromString("5.00"),
				},
			},
			setupMock: func(m *settlement.MockRepository) {
				m.EXPECT().
					CreateItem(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := settlement.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := settlement.NewService(repo)
			got, err := svc.CreateItem(context.Background(), tt.args.params)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, settlement.ItemStateProcessing, got.State)
			assert.False(t, got.HasErrored)
			assert.Nil(t, got.ActiveTransactionID)
			assert.True(t, got.Amount.Equal(tt.args.params.Amount))
		})
	}
}

func TestService_CreateItems(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	svc := settlement.NewService(repo)

	repo.EXPECT().
		CreateItems(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, items []*settlement.Item) error {
			for _, it := range items {
				it.ID = uuid.New()
			}
			return nil
		})

	items, err := svc.CreateItems(context.Background(), []settlement.CreateItemParams{
		{Amount: decimal.RequireFromString("12.34")},
		{Amount: decimal.RequireFromString("56.70")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, it := range items {
		assert.NotEmpty(t, it.ID)
		assert.Equal(t, settlement.ItemStateProcessing, it.State)
	}
}

func TestService_CreateItems_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	svc := settlement.NewService(repo)

	items, err := svc.CreateItems(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestService_CreateTransaction_Defaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	it := &settlement.Item{ID: itemID, State: settlement.ItemStateProcessing}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().DeactivateActive(gomock.Any()).Return(nil)
	itx.EXPECT().Item().Return(it)
	itx.EXPECT().
		InsertTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *settlement.Transaction) error {
			tx.ID = uuid.New()
			tx.CreatedAt = time.Now()
			return nil
		})
	itx.EXPECT().
		UpdateItem(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *settlement.Item) error {
			assert.Equal(t, settlement.ItemStateProcessing, got.State)
			require.NotNil(t, got.ActiveTransactionID)
			return nil
		})
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	tx, err := svc.CreateTransaction(context.Background(), itemID, settlement.CreateTransactionParams{})
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusProcessing, tx.Status)
	assert.Equal(t, settlement.LocationOriginatorBank, tx.Location)
	assert.True(t, tx.IsActive)
	assert.Equal(t, itemID, tx.ItemID)
	assert.Equal(t, tx, it.ActiveTransaction)
	assert.Equal(t, tx.ID, *it.ActiveTransactionID)
}

func TestService_CreateTransaction_CorrectsErroredItem(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	it := &settlement.Item{ID: itemID, State: settlement.ItemStateError, HasErrored: true}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().DeactivateActive(gomock.Any()).Return(nil)
	itx.EXPECT().Item().Return(it)
	itx.EXPECT().
		InsertTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *settlement.Transaction) error {
			tx.ID = uuid.New()
			return nil
		})
	itx.EXPECT().
		UpdateItem(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *settlement.Item) error {
			assert.Equal(t, settlement.ItemStateCorrecting, got.State)
			assert.True(t, got.HasErrored)
			return nil
		})
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	tx, err := svc.CreateTransaction(context.Background(), itemID, settlement.CreateTransactionParams{})
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusProcessing, tx.Status)
}

func TestService_CreateTransaction_InvalidStart(t *testing.T) {
	type testCase struct {
		name   string
		params settlement.CreateTransactionParams
	}

	tests := []testCase{
		{
			name: "CompletedAtDestination",
			params: settlement.CreateTransactionParams{
				Status:   settlement.StatusCompleted,
				Location: settlement.LocationDestinationBank,
			},
		},
		{
			name:   "StatusWithoutLocation",
			params: settlement.CreateTransactionParams{Status: settlement.StatusProcessing},
		},
		{
			name:   "LocationWithoutStatus",
			params: settlement.CreateTransactionParams{Location: settlement.LocationRoutable},
		},
		{
			name: "ValidStateButNotAStart",
			params: settlement.CreateTransactionParams{
				Status:   settlement.StatusProcessing,
				Location: settlement.LocationRoutable,
			},
		},
		{
			name: "UnknownPair",
			params: settlement.CreateTransactionParams{
				Status:   settlement.StatusRefunding,
				Location: settlement.LocationDestinationBank,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := settlement.NewMockRepository(ctrl)
			svc := settlement.NewService(repo)

			tx, err := svc.CreateTransaction(context.Background(), uuid.New(), tt.params)

			var stateErr *settlement.InvalidStateError
			require.ErrorAs(t, err, &stateErr)
			assert.Nil(t, tx)
		})
	}
}

func TestService_CreateTransaction_ItemNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(nil, settlement.ErrItemNotFound)

	_, err := svc.CreateTransaction(context.Background(), itemID, settlement.CreateTransactionParams{})
	assert.ErrorIs(t, err, settlement.ErrItemNotFound)
}

func TestService_Move_AdvancesActiveTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	it := &settlement.Item{ID: itemID, State: settlement.ItemStateProcessing}
	tx := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusProcessing,
		Location: settlement.LocationOriginatorBank,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(tx, nil)
	itx.EXPECT().
		UpdateTransaction(gomock.Any(), tx).
		DoAndReturn(func(_ context.Context, got *settlement.Transaction) error {
			assert.Equal(t, settlement.StatusProcessing, got.Status)
			assert.Equal(t, settlement.LocationRoutable, got.Location)
			return nil
		})
	itx.EXPECT().Item().Return(it)
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	got, err := svc.Move(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, settlement.ItemStateProcessing, got.State)
	assert.Equal(t, tx, got.ActiveTransaction)
}

func TestService_Move_CompletesAndResolves(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	it := &settlement.Item{ID: itemID, State: settlement.ItemStateProcessing}
	tx := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusProcessing,
		Location: settlement.LocationRoutable,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(tx, nil)
	itx.EXPECT().
		UpdateTransaction(gomock.Any(), tx).
		DoAndReturn(func(_ context.Context, got *settlement.Transaction) error {
			assert.Equal(t, settlement.StatusCompleted, got.Status)
			assert.Equal(t, settlement.LocationDestinationBank, got.Location)
			return nil
		})
	itx.EXPECT().Item().Return(it)
	itx.EXPECT().
		UpdateItem(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *settlement.Item) error {
			assert.Equal(t, settlement.ItemStateResolved, got.State)
			return nil
		})
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	got, err := svc.Move(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, settlement.ItemStateResolved, got.State)
}

func TestService_Move_NoActiveTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(nil, settlement.ErrNoActiveTransaction)
	itx.EXPECT().Rollback().Return(nil)

	got, err := svc.Move(context.Background(), itemID)
	require.ErrorIs(t, err, settlement.ErrNoActiveTransaction)
	assert.Nil(t, got)
}

func TestService_Move_TerminalTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	tx := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusCompleted,
		Location: settlement.LocationDestinationBank,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(tx, nil)
	itx.EXPECT().Rollback().Return(nil)

	got, err := svc.Move(context.Background(), itemID)

	var transitionErr *settlement.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, settlement.StatusCompleted, transitionErr.Status)
	assert.Nil(t, got)
}

func TestService_MarkError_FlagsItem(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	it := &settlement.Item{ID: itemID, State: settlement.ItemStateProcessing}
	tx := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusProcessing,
		Location: settlement.LocationRoutable,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(tx, nil)
	itx.EXPECT().
		UpdateTransaction(gomock.Any(), tx).
		DoAndReturn(func(_ context.Context, got *settlement.Transaction) error {
			assert.Equal(t, settlement.StatusError, got.Status)
			assert.Equal(t, settlement.LocationRoutable, got.Location)
			return nil
		})
	itx.EXPECT().Item().Return(it)
	itx.EXPECT().
		UpdateItem(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *settlement.Item) error {
			assert.Equal(t, settlement.ItemStateError, got.State)
			assert.True(t, got.HasErrored)
			return nil
		})
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	got, err := svc.MarkError(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, settlement.ItemStateError, got.State)
	assert.True(t, got.HasErrored)
}

func TestService_MarkError_RequiresRoutableProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	tx := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusProcessing,
		Location: settlement.LocationOriginatorBank,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(tx, nil)
	itx.EXPECT().Rollback().Return(nil)

	_, err := svc.MarkError(context.Background(), itemID)

	var transitionErr *settlement.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "error", transitionErr.Op)
}

func TestService_Fix_OpensFixingTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	it := &settlement.Item{ID: itemID, State: settlement.ItemStateError, HasErrored: true}
	cur := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusError,
		Location: settlement.LocationRoutable,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(cur, nil)
	itx.EXPECT().DeactivateActive(gomock.Any()).Return(nil)
	itx.EXPECT().Item().Return(it)
	itx.EXPECT().
		InsertTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *settlement.Transaction) error {
			tx.ID = uuid.New()
			return nil
		})
	itx.EXPECT().
		UpdateItem(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *settlement.Item) error {
			assert.Equal(t, settlement.ItemStateCorrecting, got.State)
			assert.True(t, got.HasErrored)
			return nil
		})
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	tx, err := svc.Fix(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusFixing, tx.Status)
	assert.Equal(t, settlement.LocationRoutable, tx.Location)
	assert.True(t, tx.IsActive)
}

func TestService_Fix_RequiresErroredTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	cur := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusProcessing,
		Location: settlement.LocationRoutable,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(cur, nil)
	itx.EXPECT().Rollback().Return(nil)

	_, err := svc.Fix(context.Background(), itemID)

	var transitionErr *settlement.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "fix", transitionErr.Op)
}

func TestService_Fix_NoActiveTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(nil, settlement.ErrNoActiveTransaction)
	itx.EXPECT().Rollback().Return(nil)

	_, err := svc.Fix(context.Background(), itemID)
	assert.ErrorIs(t, err, settlement.ErrNoActiveTransaction)
}

func TestService_BeginRefund_OpensRefundingTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	it := &settlement.Item{ID: itemID, State: settlement.ItemStateError, HasErrored: true}
	cur := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusError,
		Location: settlement.LocationRoutable,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(cur, nil)
	itx.EXPECT().DeactivateActive(gomock.Any()).Return(nil)
	itx.EXPECT().Item().Return(it)
	itx.EXPECT().
		InsertTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *settlement.Transaction) error {
			tx.ID = uuid.New()
			return nil
		})
	itx.EXPECT().
		UpdateItem(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *settlement.Item) error {
			assert.Equal(t, settlement.ItemStateCorrecting, got.State)
			return nil
		})
	itx.EXPECT().Commit().Return(nil)
	itx.EXPECT().Rollback().Return(nil)

	tx, err := svc.BeginRefund(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusRefunding, tx.Status)
	assert.Equal(t, settlement.LocationRoutable, tx.Location)
}

func TestService_BeginRefund_RequiresErroredTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	itx := settlement.NewMockItemTx(ctrl)
	svc := settlement.NewService(repo)

	itemID := uuid.New()
	cur := &settlement.Transaction{
		ID:       uuid.New(),
		ItemID:   itemID,
		Status:   settlement.StatusCompleted,
		Location: settlement.LocationDestinationBank,
		IsActive: true,
	}

	repo.EXPECT().BeginItemUpdate(gomock.Any(), itemID).Return(itx, nil)
	itx.EXPECT().ActiveTransaction(gomock.Any()).Return(cur, nil)
	itx.EXPECT().Rollback().Return(nil)

	_, err := svc.BeginRefund(context.Background(), itemID)

	var transitionErr *settlement.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "refund", transitionErr.Op)
}

func TestService_GetItem(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	svc := settlement.NewService(repo)

	id := uuid.New()
	repo.EXPECT().GetItem(gomock.Any(), id).Return(&settlement.Item{ID: id}, nil)

	it, err := svc.GetItem(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, it.ID)

	missing := uuid.New()
	repo.EXPECT().GetItem(gomock.Any(), missing).Return(nil, settlement.ErrItemNotFound)

	_, err = svc.GetItem(context.Background(), missing)
	assert.ErrorIs(t, err, settlement.ErrItemNotFound)
}

func TestService_ListTransactions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := settlement.NewMockRepository(ctrl)
	svc := settlement.NewService(repo)

	status := settlement.StatusError
	active := true
	filter := settlement.ListFilter{Status: &status, Active: &active}

	repo.EXPECT().
		ListTransactions(gomock.Any(), filter).
		Return([]*settlement.Transaction{{ID: uuid.New()}}, nil)

	txs, err := svc.ListTransactions(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
