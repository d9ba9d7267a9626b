package deposits

import (
	"context"
	"errors"
	"testing"

	"github.com/garnizeh/freelance/internal/tasks"
	"github.com/garnizeh/freelance/pkg/models"
	repomock "github.com/garnizeh/freelance/pkg/repository/mock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T, opts Options, outstanding string) (*Service, *repomock.TxRunner, *models.Profile) {
	t.Helper()
	txr := repomock.NewTxRunner()
	client := &models.Profile{ID: 1, FirstName: "Harry", Role: models.RoleClient, Balance: d("10")}
	txr.Tx.On("GetProfileByRole", mock.Anything, int64(1), models.RoleClient).Return(client, nil)
	txr.Tx.On("SumJobPrices", mock.Anything, int64(1), models.ContractInProgress).Return(d(outstanding), nil)
	return NewService(txr, opts, nil), txr, client
}

func TestDeposit_CapBoundary(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		outstanding string
		amount      string
		ok          bool
	}{
		{"below cap", "200", "49.99", true},
		{"at cap", "200", "50", true},
		{"above cap", "200", "60", false},
		{"one cent over", "200", "50.01", false},
		{"fractional cap rounds down", "0.10", "0.02", true},
		{"fractional cap not rounded up", "0.10", "0.03", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, txr, client := setup(t, Options{}, tc.outstanding)
			txr.Tx.On("Credit", ctx, int64(1), mock.Anything).Return(nil)
			txr.Tx.On("EnqueueTask", ctx, tasks.TypeDepositCompleted, mock.Anything).Return(nil)

			got, err := s.Deposit(ctx, 1, client, d(tc.amount))
			if tc.ok {
				require.NoError(t, err)
				assert.True(t, got.Balance.Equal(d("10").Add(d(tc.amount))), "balance %s", got.Balance)
				assert.True(t, txr.Committed)
				return
			}
			assert.ErrorIs(t, err, models.ErrUnprocessable)
			assert.Contains(t, err.Error(), "deposit exceeds 25% of outstanding jobs")
			assert.False(t, txr.Committed)
			txr.Tx.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDeposit_EnqueuesEvent(t *testing.T) {
	ctx := context.Background()
	s, txr, client := setup(t, Options{}, "200")
	txr.Tx.On("Credit", ctx, int64(1), mock.Anything).Return(nil)
	txr.Tx.On("EnqueueTask", ctx, tasks.TypeDepositCompleted, mock.MatchedBy(func(e tasks.DepositCompleted) bool {
		return e.ClientID == 1 && e.DepositedBy == 1 && e.Amount.Equal(d("25"))
	})).Return(nil)

	_, err := s.Deposit(ctx, 1, client, d("25"))
	require.NoError(t, err)
	txr.Tx.AssertExpectations(t)
}

func TestDeposit_NoOutstandingWork(t *testing.T) {
	s, txr, client := setup(t, Options{}, "0")

	_, err := s.Deposit(context.Background(), 1, client, d("0.01"))
	assert.ErrorIs(t, err, models.ErrUnprocessable)
	txr.Tx.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeposit_InvalidAmount(t *testing.T) {
	for _, amount := range []string{"0", "-5", "1.005"} {
		t.Run(amount, func(t *testing.T) {
			s, txr, client := setup(t, Options{}, "200")

			_, err := s.Deposit(context.Background(), 1, client, d(amount))
			assert.ErrorIs(t, err, models.ErrUnprocessable)
			assert.Zero(t, txr.Calls)
		})
	}
}

func TestDeposit_TargetNotClient(t *testing.T) {
	txr := repomock.NewTxRunner()
	txr.Tx.On("GetProfileByRole", mock.Anything, int64(5), models.RoleClient).Return(nil, nil)
	s := NewService(txr, Options{}, nil)

	_, err := s.Deposit(context.Background(), 5, &models.Profile{ID: 1}, d("1"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeposit_ThirdParty(t *testing.T) {
	ctx := context.Background()
	target := &models.Profile{ID: 2, Role: models.RoleClient, Balance: d("0")}
	caller := &models.Profile{ID: 1, Role: models.RoleClient}

	t.Run("forbidden by default", func(t *testing.T) {
		txr := repomock.NewTxRunner()
		txr.Tx.On("GetProfileByRole", ctx, int64(2), models.RoleClient).Return(target, nil)
		s := NewService(txr, Options{}, nil)

		_, err := s.Deposit(ctx, 2, caller, d("1"))
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("allowed and capped by the caller's work", func(t *testing.T) {
		txr := repomock.NewTxRunner()
		txr.Tx.On("GetProfileByRole", ctx, int64(2), models.RoleClient).Return(target, nil)
		txr.Tx.On("SumJobPrices", ctx, int64(1), models.ContractInProgress).Return(d("40"), nil)
		txr.Tx.On("Credit", ctx, int64(2), d("10")).Return(nil)
		txr.Tx.On("EnqueueTask", ctx, tasks.TypeDepositCompleted, mock.Anything).Return(nil)
		s := NewService(txr, Options{AllowThirdParty: true}, nil)

		got, err := s.Deposit(ctx, 2, caller, d("10"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.ID)
		assert.True(t, got.Balance.Equal(d("10")))
	})
}

func TestDeposit_CustomRatio(t *testing.T) {
	ctx := context.Background()
	s, txr, client := setup(t, Options{MaxRatio: d("0.5")}, "200")
	txr.Tx.On("Credit", ctx, int64(1), mock.Anything).Return(nil)
	txr.Tx.On("EnqueueTask", ctx, tasks.TypeDepositCompleted, mock.Anything).Return(nil)

	_, err := s.Deposit(ctx, 1, client, d("100"))
	require.NoError(t, err)

	_, err = s.Deposit(ctx, 1, client, d("100.01"))
	assert.ErrorContains(t, err, "50% of outstanding")
}

func TestDeposit_CreditFailure(t *testing.T) {
	ctx := context.Background()
	s, txr, client := setup(t, Options{}, "200")
	boom := errors.New("io")
	txr.Tx.On("Credit", ctx, int64(1), mock.Anything).Return(boom)

	_, err := s.Deposit(ctx, 1, client, d("5"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, txr.Committed)
}
