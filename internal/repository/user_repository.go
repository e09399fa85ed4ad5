package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
	"github.com/upclick/task-exchange/internal/utils"
)

// ErrPhoneExists is returned by Create when the normalized phone
// number is already registered.
var ErrPhoneExists = errors.New("phone already registered")

// UserRepo provides access to the users table. Credit mutations go
// through guarded UPDATE statements so the credits >= 0 invariant
// is enforced by the database, not by read-then-write code.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizePhone strips spaces, dots and dashes so the same number
// always maps to the same row regardless of formatting.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case ' ', '-', '.', '(', ')':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Create inserts a user with the signup bonus as the opening
// balance and the trial clock started. Returns ErrPhoneExists on a
// duplicate phone.
func (r *UserRepo) Create(ctx context.Context, phone, password, role string, cost int, signupBonus int64) (uint64, error) {
	phone = NormalizePhone(phone)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (phone, password_hash, role, credits, trial_started_at) VALUES (?,?,?,?,UTC_TIMESTAMP())",
		phone, hash, role, signupBonus)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrPhoneExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userColumns = "id, phone, password_hash, role, credits, trial_started_at, last_payment_at, admin_override, admin_granted_at, created_at, updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		lastPay   sql.NullTime
		grantedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Phone, &u.PasswordHash, &u.Role, &u.Credits,
		&u.TrialStartedAt, &lastPay, &u.AdminOverride, &grantedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, exchange.ErrUnknownUser
		}
		return model.User{}, err
	}
	if lastPay.Valid {
		t := lastPay.Time
		u.LastPaymentAt = &t
	}
	if grantedAt.Valid {
		t := grantedAt.Time
		u.AdminGrantedAt = &t
	}
	return u, nil
}

// GetByID fetches a user by id, or exchange.ErrUnknownUser.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByPhone fetches a user by normalized phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone=? LIMIT 1", NormalizePhone(phone)))
}

// Balance returns the current credit balance.
func (r *UserRepo) Balance(ctx context.Context, id uint64) (int64, error) {
	var credits int64
	err := r.DB.QueryRowContext(ctx, "SELECT credits FROM users WHERE id=? LIMIT 1", id).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, exchange.ErrUnknownUser
	}
	return credits, err
}

// AdjustCreditsTx applies delta to the user's balance inside an
// existing transaction and returns the new balance. The UPDATE is
// guarded so a debit past zero affects no rows; the follow-up read
// then distinguishes a missing user from an insufficient balance.
// The row stays locked until the caller commits, which is what lets
// a completion credit and its ledger insert land atomically.
func (r *UserRepo) AdjustCreditsTx(ctx context.Context, tx *sql.Tx, userID uint64, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET credits = credits + ? WHERE id = ? AND credits + ? >= 0",
		delta, userID, delta)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := tx.QueryRowContext(ctx, "SELECT credits FROM users WHERE id=? LIMIT 1", userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, exchange.ErrUnknownUser
		}
		return 0, err
	}
	if n == 0 && delta != 0 {
		return 0, exchange.ErrInsufficientCredits
	}
	return balance, nil
}

// SetCredits overwrites the balance directly. Admin operation; it
// bypasses the adjust rules but still refuses negative values.
func (r *UserRepo) SetCredits(ctx context.Context, userID uint64, value int64) error {
	if value < 0 {
		return exchange.ErrInsufficientCredits
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET credits=? WHERE id=?", value, userID)
	if err != nil {
		return err
	}
	return r.mustExistOnZeroRows(ctx, res, userID)
}

// SetAdminOverride records the tri-state admin access decision. A
// grant stamps admin_granted_at with the current time; revoking or
// clearing wipes it.
func (r *UserRepo) SetAdminOverride(ctx context.Context, userID uint64, override model.AdminOverride) error {
	var (
		res sql.Result
		err error
	)
	if override == model.OverrideGranted {
		res, err = r.DB.ExecContext(ctx,
			"UPDATE users SET admin_override=?, admin_granted_at=UTC_TIMESTAMP() WHERE id=?",
			override, userID)
	} else {
		res, err = r.DB.ExecContext(ctx,
			"UPDATE users SET admin_override=?, admin_granted_at=NULL WHERE id=?",
			override, userID)
	}
	if err != nil {
		return err
	}
	return r.mustExistOnZeroRows(ctx, res, userID)
}

// SetLastPayment records a subscription payment timestamp.
func (r *UserRepo) SetLastPayment(ctx context.Context, userID uint64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_payment_at=? WHERE id=?", at.UTC(), userID)
	if err != nil {
		return err
	}
	return r.mustExistOnZeroRows(ctx, res, userID)
}

// mustExistOnZeroRows turns a zero-row UPDATE on users into
// ErrUnknownUser. MySQL also reports zero affected rows when the
// new values equal the old ones, so absence is confirmed with a
// SELECT before failing.
func (r *UserRepo) mustExistOnZeroRows(ctx context.Context, res sql.Result, userID uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return exchange.ErrUnknownUser
	}
	return err
}
