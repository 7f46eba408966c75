package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/settlement-reconciliation/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestOrderRepository_GetByOrderID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: logger}

	expectedInfo := &order.Info{
		OrderID:       "ORD-1001",
		OrganizerID:   "org-55",
		OrganizerName: "Club Atletico",
		EventID:       "ev-9",
	}

	query := `
		SELECT order_id, organizer_id, organizer_name, event_id
		FROM orders
		WHERE order_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"order_id", "organizer_id", "organizer_name", "event_id"}).
			AddRow(expectedInfo.OrderID, expectedInfo.OrganizerID, expectedInfo.OrganizerName, expectedInfo.EventID)
		mock.ExpectQuery(query).WithArgs(expectedInfo.OrderID).WillReturnRows(rows)

		info, err := repo.GetByOrderID(ctx, expectedInfo.OrderID)
		assert.NoError(t, err)
		assert.Equal(t, expectedInfo, info)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("ORD-missing").WillReturnRows(pgxmock.NewRows([]string{"order_id", "organizer_id", "organizer_name", "event_id"}))

		info, err := repo.GetByOrderID(ctx, "ORD-missing")
		assert.Nil(t, info)
		assert.ErrorIs(t, err, order.ErrOrderNotFound{OrderID: "ORD-missing"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectQuery(query).WithArgs("ORD-1001").WillReturnError(expectedErr)

		info, err := repo.GetByOrderID(ctx, "ORD-1001")
		assert.Nil(t, info)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get order")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: logger}

	info := &order.Info{
		OrderID:       "ORD-1001",
		OrganizerID:   "org-55",
		OrganizerName: "Club Atletico",
		EventID:       "ev-9",
	}

	query := `
		INSERT INTO orders \(order_id, organizer_id, organizer_name, event_id, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, NOW\(\)\)
		ON CONFLICT \(order_id\)
		DO UPDATE SET organizer_id = \$2, organizer_name = \$3, event_id = \$4, updated_at = NOW\(\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(info.OrderID, info.OrganizerID, info.OrganizerName, info.EventID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Upsert(ctx, info)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(info.OrderID, info.OrganizerID, info.OrganizerName, info.EventID).
			WillReturnError(expectedErr)

		err := repo.Upsert(ctx, info)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert order")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
