package db_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-parking/internal/models"
	"ms-parking/internal/parking"
	"ms-parking/internal/parking/db"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// every connection to :memory: is a separate database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })

	return db.New(bunDB), bunDB
}

func newSession(plate string) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:              uuid.New().String(),
		PlateNumber:     plate,
		VehicleType:     models.VehicleCar,
		CheckInTime:     now.Add(-2 * time.Hour),
		CheckInGate:     "GATE-A",
		CheckInOperator: "op-1",
		Status:          models.SessionActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newMember(plate string, balance int64) *models.Member {
	now := time.Now().UTC()
	return &models.Member{
		ID:                 uuid.New().String(),
		MemberCode:         "MBR" + plate[len(plate)-3:],
		Name:               "Budi",
		VehiclePlateNumber: plate,
		Balance:            decimal.NewFromInt(balance),
		Active:             true,
		RegisteredAt:       now,
		UpdatedAt:          now,
	}
}

func newVoucher(code string, limit *int) *models.Voucher {
	now := time.Now().UTC()
	return &models.Voucher{
		ID:            uuid.New().String(),
		Code:          code,
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(20),
		MinimumAmount: decimal.Zero,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
		UsageLimit:    limit,
		Active:        true,
		CreatedAt:     now,
	}
}

func TestCreateAndGetActiveSession(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	s := newSession("B1234XYZ")
	require.NoError(t, store.CreateSession(ctx, s))

	got, err := store.GetActiveSessionByPlate(ctx, " b1234xyz ")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, models.SessionActive, got.Status)
	assert.False(t, got.ParkingFee.Valid)

	_, err = store.GetActiveSessionByPlate(ctx, "D999ZZ")
	assert.True(t, errors.Is(err, models.ErrSessionNotFound))
}

func TestSecondActiveSessionIsConflict(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, newSession("B1234XYZ")))
	err := store.CreateSession(ctx, newSession("B1234XYZ"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrVehicleAlreadyParked))
	assert.Equal(t, models.KindConflict, models.KindOf(err))
}

func TestCompletedSessionFreesPlate(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	s := newSession("B1234XYZ")
	require.NoError(t, store.CreateSession(ctx, s))

	out := time.Now().UTC()
	s.Status = models.SessionCompleted
	s.CheckOutTime = &out
	s.CheckOutGate = "GATE-B"
	s.ParkingFee = decimal.NewNullDecimal(decimal.NewFromInt(10000))
	require.NoError(t, store.RunInTx(ctx, func(tx parking.SessionTx) error {
		return tx.CompleteSession(ctx, s)
	}))

	// completing again finds no ACTIVE row
	err := store.RunInTx(ctx, func(tx parking.SessionTx) error {
		return tx.CompleteSession(ctx, s)
	})
	assert.True(t, errors.Is(err, models.ErrSessionNotFound))

	require.NoError(t, store.CreateSession(ctx, newSession("B1234XYZ")))

	done, err := store.ListSessions(ctx, models.SessionFilter{Plate: "B1234XYZ", Status: models.SessionCompleted})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "GATE-B", done[0].CheckOutGate)
	assert.True(t, done[0].ParkingFee.Valid)
	assert.True(t, decimal.NewFromInt(10000).Equal(done[0].ParkingFee.Decimal))
}

func TestNextInvoiceSequenceIsPerDay(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	var seqs []int
	require.NoError(t, store.RunInTx(ctx, func(tx parking.SessionTx) error {
		for _, day := range []string{"20260301", "20260301", "20260302", "20260301"} {
			seq, err := tx.NextInvoiceSequence(ctx, day)
			if err != nil {
				return err
			}
			seqs = append(seqs, seq)
		}
		return nil
	}))

	assert.Equal(t, []int{1, 2, 1, 3}, seqs)
}

func TestRolledBackSequenceIsReissued(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(tx parking.SessionTx) error {
		if _, err := tx.NextInvoiceSequence(ctx, "20260301"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var seq int
	require.NoError(t, store.RunInTx(ctx, func(tx parking.SessionTx) error {
		var err error
		seq, err = tx.NextInvoiceSequence(ctx, "20260301")
		return err
	}))
	assert.Equal(t, 1, seq)
}

func TestIncrementVoucherUsageStopsAtLimit(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	limit := 2
	v := newVoucher("HEMAT20", &limit)
	_, err := bunDB.NewInsert().Model(v).Exec(ctx)
	require.NoError(t, err)

	inc := func() error {
		return store.RunInTx(ctx, func(tx parking.SessionTx) error {
			return tx.IncrementVoucherUsage(ctx, "HEMAT20")
		})
	}
	require.NoError(t, inc())
	require.NoError(t, inc())
	err = inc()
	assert.True(t, errors.Is(err, models.ErrInvalidVoucher))

	got, err := store.GetVoucherByCode(ctx, "hemat20")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
}

func TestDebitMemberBalanceIsGuarded(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	m := newMember("B1234XYZ", 5000)
	_, err := bunDB.NewInsert().Model(m).Exec(ctx)
	require.NoError(t, err)

	err = store.RunInTx(ctx, func(tx parking.SessionTx) error {
		return tx.DebitMemberBalance(ctx, m.ID, decimal.NewFromInt(6000))
	})
	assert.True(t, errors.Is(err, models.ErrInsufficientBalance))

	got, err := store.GetMemberByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(got.Balance))

	require.NoError(t, store.RunInTx(ctx, func(tx parking.SessionTx) error {
		return tx.DebitMemberBalance(ctx, m.ID, decimal.NewFromInt(5000))
	}))
	got, err = store.GetMemberByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.NotNil(t, got.LastActivity)
}

// redeemConcurrently runs n single-redemption transactions on code at once.
func redeemConcurrently(t *testing.T, store *db.DB, code string, n int) (accepted, rejected int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunInTx(context.Background(), func(tx parking.SessionTx) error {
				return tx.IncrementVoucherUsage(context.Background(), code)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, models.ErrInvalidVoucher):
				rejected++
			default:
				t.Errorf("redeem %s: %v", code, err)
			}
		}()
	}
	wg.Wait()
	return accepted, rejected
}

// debitConcurrently runs n debits of amount against one member at once.
func debitConcurrently(t *testing.T, store *db.DB, memberID string, amount decimal.Decimal, n int) (debited, refused int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunInTx(context.Background(), func(tx parking.SessionTx) error {
				return tx.DebitMemberBalance(context.Background(), memberID, amount)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				debited++
			case errors.Is(err, models.ErrInsufficientBalance):
				refused++
			default:
				t.Errorf("debit %s: %v", memberID, err)
			}
		}()
	}
	wg.Wait()
	return debited, refused
}

func TestConcurrentRedemptionsRespectLimit(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	limit := 4
	require.NoError(t, store.CreateVoucher(ctx, newVoucher("RAMAI", &limit)))

	accepted, rejected := redeemConcurrently(t, store, "RAMAI", 20)
	assert.Equal(t, 4, accepted)
	assert.Equal(t, 16, rejected)

	got, err := store.GetVoucherByCode(ctx, "RAMAI")
	require.NoError(t, err)
	assert.Equal(t, 4, got.UsageCount)
}

func TestConcurrentDebitsStopAtBalance(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	m := newMember("B1234XYZ", 10000)
	require.NoError(t, store.CreateMember(ctx, m))

	debited, refused := debitConcurrently(t, store, m.ID, decimal.NewFromInt(3000), 10)
	assert.Equal(t, 3, debited)
	assert.Equal(t, 7, refused)

	got, err := store.GetMemberByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.Balance), got.Balance.String())
}

func TestFailedTransactionLeavesNoPartialWrites(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	s := newSession("B1234XYZ")
	require.NoError(t, store.CreateSession(ctx, s))

	err := store.RunInTx(ctx, func(tx parking.SessionTx) error {
		if err := tx.SavePayment(ctx, &models.Payment{
			ID:              uuid.New().String(),
			SessionID:       s.ID,
			Amount:          decimal.NewFromInt(10000),
			PaymentMethod:   models.PaymentCash,
			ReferenceNumber: "CS-1",
			Status:          models.PaymentSuccess,
			PaidAt:          time.Now().UTC(),
		}); err != nil {
			return err
		}
		s.Status = models.SessionCompleted
		if err := tx.CompleteSession(ctx, s); err != nil {
			return err
		}
		return models.Infrastructure("invoice", errors.New("disk full"))
	})
	require.Error(t, err)
	assert.True(t, models.IsRetryable(err))

	n, err := bunDB.NewSelect().Model((*models.Payment)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	active, err := store.GetActiveSessionByPlate(ctx, "B1234XYZ")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, active.Status)
}

func TestDuplicateInvoiceNumberIsRetryable(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	inv := func() *models.Invoice {
		now := time.Now().UTC()
		return &models.Invoice{
			ID:            uuid.New().String(),
			InvoiceNumber: "INV-20260301-0001",
			SessionID:     uuid.New().String(),
			InvoiceDate:   now,
			PlateNumber:   "B1234XYZ",
			CheckInTime:   now.Add(-time.Hour),
			CheckOutTime:  now,
			BaseAmount:    decimal.NewFromInt(5000),
			TotalAmount:   decimal.NewFromInt(5000),
			PaymentMethod: models.PaymentCash,
			Status:        models.InvoicePaid,
			CreatedAt:     now,
		}
	}

	require.NoError(t, store.RunInTx(ctx, func(tx parking.SessionTx) error {
		return tx.SaveInvoice(ctx, inv())
	}))
	err := store.RunInTx(ctx, func(tx parking.SessionTx) error {
		return tx.SaveInvoice(ctx, inv())
	})
	require.Error(t, err)
	assert.True(t, models.IsRetryable(err))

	got, err := store.GetInvoiceByNumber(ctx, "INV-20260301-0001")
	require.NoError(t, err)
	assert.Equal(t, "B1234XYZ", got.PlateNumber)

	_, err = store.GetInvoiceByNumber(ctx, "INV-20260301-0002")
	assert.True(t, errors.Is(err, models.ErrInvoiceNotFound))
}

func TestListSessionsByDate(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, plate := range []string{"B1", "B2", "B3"} {
		s := newSession(plate)
		s.CheckInTime = day.Add(time.Duration(i*15) * time.Hour)
		require.NoError(t, store.CreateSession(ctx, s))
	}

	sessions, err := store.ListSessions(ctx, models.SessionFilter{Date: day})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "B2", sessions[0].PlateNumber)

	sessions, err = store.ListSessions(ctx, models.SessionFilter{Date: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	sessions, err = store.ListSessions(ctx, models.SessionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "B2", sessions[0].PlateNumber)
}

func TestCanceledStoreCallIsInfrastructure(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetActiveSessionByPlate(ctx, "B1234XYZ")
	require.Error(t, err)
	assert.Equal(t, models.KindInfrastructure, models.KindOf(err))
}
