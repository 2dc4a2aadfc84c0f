package ledger

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"mlm_wallet/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupLedgerMock(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	closer := func() { sqlDB.Close() }
	return NewService(gdb), mock, closer
}

func expectUserExists(mock sqlmock.Sqlmock, userID uint) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID))
}

func TestRecordDeposit_Success(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	expectUserExists(mock, 1)

	// Reference not seen before
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `transactions`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `transactions`")).
		WillReturnResult(sqlmock.NewResult(11, 1))

	// Balance must be applied as an atomic increment, never read-then-write
	mock.ExpectExec("UPDATE `users` SET `total_deposits`=total_deposits \\+ \\?,`updated_at`=\\?,`wallet_balance`=wallet_balance \\+ \\? WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `wallet_balance`,`total_deposits` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance", "total_deposits"}).AddRow(500.0, 500.0))

	mock.ExpectCommit()

	txn, balances, err := svc.RecordDeposit(context.Background(), 1, DepositInput{
		Amount:    500,
		Reference: "pay_1",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, uint(11), txn.ID)
	assert.Equal(t, domain.TxTypeDeposit, txn.Type)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)
	assert.Equal(t, domain.PaymentMethodRazorpay, txn.PaymentMethod)
	require.NotNil(t, txn.PaymentReference)
	assert.Equal(t, "pay_1", *txn.PaymentReference)
	assert.Equal(t, 500.0, balances.WalletBalance)
	assert.Equal(t, 500.0, balances.TotalDeposits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_DuplicateReference(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	expectUserExists(mock, 1)

	// Reference already recorded: reject before writing anything
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `transactions`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	mock.ExpectRollback()

	txn, _, err := svc.RecordDeposit(context.Background(), 1, DepositInput{
		Amount:    500,
		Reference: "pay_1",
	})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.Nil(t, txn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_InvalidAmount(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	for _, amount := range []float64{0, -10} {
		txn, _, err := svc.RecordDeposit(context.Background(), 1, DepositInput{Amount: amount})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Nil(t, txn)
	}
	// No database work may happen for an invalid amount
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_UserNotFound(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, _, err := svc.RecordDeposit(context.Background(), 99, DepositInput{Amount: 100})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_BalanceUpdateMissedRollsBack(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	expectUserExists(mock, 1)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `transactions`")).
		WillReturnResult(sqlmock.NewResult(12, 1))

	// Zero affected rows after the insert is the partial-failure window:
	// the whole transaction rolls back and the category is surfaced
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectRollback()

	_, _, err := svc.RecordDeposit(context.Background(), 1, DepositInput{Amount: 100})
	assert.ErrorIs(t, err, ErrInconsistentState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_WithoutReferenceSkipsDuplicateCheck(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	expectUserExists(mock, 1)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `transactions`")).
		WillReturnResult(sqlmock.NewResult(13, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `wallet_balance`,`total_deposits` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance", "total_deposits"}).AddRow(300.0, 300.0))
	mock.ExpectCommit()

	txn, balances, err := svc.RecordDeposit(context.Background(), 1, DepositInput{Amount: 200})
	require.NoError(t, err)
	assert.Nil(t, txn.PaymentReference)
	assert.Equal(t, 300.0, balances.WalletBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_ConcurrentDepositsBothApply(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	// The two submissions may reach the database in either order
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		expectUserExists(mock, 1)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `transactions`")).
			WillReturnResult(sqlmock.NewResult(int64(31+i), 1))
		// Each deposit lands as its own atomic increment
		mock.ExpectExec("UPDATE `users` SET `total_deposits`=total_deposits \\+ \\?,`updated_at`=\\?,`wallet_balance`=wallet_balance \\+ \\? WHERE id = \\?").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT `wallet_balance`,`total_deposits` FROM `users`")).
			WillReturnRows(sqlmock.NewRows([]string{"wallet_balance", "total_deposits"}).AddRow(300.0, 300.0))
		mock.ExpectCommit()
	}

	amounts := []float64{100, 200}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i := range amounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.RecordDeposit(context.Background(), 1, DepositInput{Amount: amounts[i]})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// Both transaction rows and both increments must have reached the
	// database: the final balance is the sum of the two amounts
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterReferral_WithBonus(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET `referral_count`=referral_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `transactions`")).
		WillReturnResult(sqlmock.NewResult(21, 1))
	// Bonus applies to balance and total earnings, again as increments
	mock.ExpectExec("UPDATE `users` SET `total_earnings`=total_earnings \\+ \\?,`updated_at`=\\?,`wallet_balance`=wallet_balance \\+ \\? WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `wallet_balance`,`total_deposits` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance", "total_deposits"}).AddRow(50.0, 0.0))
	mock.ExpectCommit()

	txn, err := svc.RegisterReferral(context.Background(), 5, 50, "newuser")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TxTypeReferralBonus, txn.Type)
	assert.Equal(t, domain.PaymentMethodWallet, txn.PaymentMethod)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterReferral_CounterOnlyWithoutBonus(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	// Counter still bumps when no bonus is configured, with no bonus row
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET `referral_count`=referral_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := svc.RegisterReferral(context.Background(), 5, 0, "newuser")
	require.NoError(t, err)
	assert.Nil(t, txn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterReferral_UnknownReferrer(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET `referral_count`=referral_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.RegisterReferral(context.Background(), 99, 50, "newuser")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterReferral_NegativeBonus(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	_, err := svc.RegisterReferral(context.Background(), 5, -10, "newuser")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	newer := time.Date(2026, 8, 20, 15, 30, 0, 0, time.Local)
	older := time.Date(2026, 8, 19, 9, 0, 0, 0, time.Local)

	txRows := sqlmock.NewRows([]string{
		"id", "user_id", "type", "amount", "status", "payment_method",
		"payment_reference", "description", "notes", "metadata", "created_at", "updated_at",
	}).
		AddRow(2, 1, "DEPOSIT", 200.0, "COMPLETED", "RAZORPAY", "pay_2", "Wallet Deposit", "second", []byte("{}"), newer, newer).
		AddRow(1, 1, "DEPOSIT", 100.0, "COMPLETED", "RAZORPAY", "pay_1", "Wallet Deposit", "", []byte("{}"), older, older)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `transactions` WHERE user_id = ?")).
		WithArgs(1).
		WillReturnRows(txRows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `wallet_balance`,`total_deposits` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance", "total_deposits"}).AddRow(300.0, 300.0))

	page, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)

	// Newest first, projected to the dashboard shape
	assert.Equal(t, uint(2), page.Transactions[0].ID)
	assert.Equal(t, "2026-08-20", page.Transactions[0].Date)
	assert.Equal(t, "second", page.Transactions[0].Notes)
	assert.Equal(t, uint(1), page.Transactions[1].ID)
	assert.Equal(t, "2026-08-19", page.Transactions[1].Date)

	assert.Equal(t, 300.0, page.WalletBalance)
	assert.Equal(t, 300.0, page.TotalDeposits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_UserNotFound(t *testing.T) {
	svc, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `transactions` WHERE user_id = ?")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `wallet_balance`,`total_deposits` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance", "total_deposits"}))

	_, err := svc.History(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
