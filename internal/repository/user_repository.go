package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/iliyamo/jewelry-storefront/internal/auth"
	"github.com/iliyamo/jewelry-storefront/internal/database"
	"github.com/iliyamo/jewelry-storefront/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,password_hash,COALESCE(phone,''),role,is_email_verified,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create normalizes u, hashes password with cost and inserts the row.  The
// stored user (without addresses) is returned.
func (r *UserRepo) Create(ctx context.Context, u model.User, password string, cost int) (model.User, error) {
	u.ID = uuid.NewString()
	u.PrepareNew(time.Now().UTC().Truncate(time.Second))
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "hash password")
	}
	u.PasswordHash = hash

	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id,name,email,password_hash,phone,role,is_email_verified,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)",
		u.ID, u.Name, u.Email, u.PasswordHash, nullString(u.Phone), u.Role, u.IsEmailVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, errors.Wrap(err, "insert user")
	}
	return u, nil
}

// EmailExists reports whether a user with the normalized email exists.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "check email")
	}
	return true, nil
}

// GetByEmail fetches a user by normalized email, including the password
// hash.  Addresses are not loaded.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, errors.Wrap(err, "query user by email")
	}
	return u, nil
}

// GetByID fetches a user and its addresses.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, errors.Wrap(err, "query user by id")
	}
	u.Addresses, err = r.addresses(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepo) addresses(ctx context.Context, userID string) ([]model.Address, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,street,city,state,zip_code,country,is_default FROM user_addresses WHERE user_id=? ORDER BY created_at,id", userID)
	if err != nil {
		return nil, errors.Wrap(err, "query addresses")
	}
	defer rows.Close()
	out := []model.Address{}
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.Street, &a.City, &a.State, &a.ZipCode, &a.Country, &a.IsDefault); err != nil {
			return nil, errors.Wrap(err, "scan address")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "iterate addresses")
}

// UpdateProfile sets name and phone.  Empty values leave the column
// unchanged.  MySQL reports zero affected rows for a no-op update, so the
// row count is not checked here.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, phone string) error {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=COALESCE(NULLIF(?,''),name), phone=COALESCE(NULLIF(?,''),phone), updated_at=? WHERE id=?",
		name, phone, time.Now().UTC(), id)
	return errors.Wrap(err, "update profile")
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, password string, cost int) error {
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	return requireRow(res)
}

// AddAddress appends an address.  When a is the user's default, every
// other address loses its default flag in the same transaction.
func (r *UserRepo) AddAddress(ctx context.Context, userID string, a model.Address) (model.Address, error) {
	a.Normalize()
	a.ID = uuid.NewString()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Address{}, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if a.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE user_addresses SET is_default=0 WHERE user_id=? AND is_default=1", userID); err != nil {
			return model.Address{}, errors.Wrap(err, "clear default address")
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_addresses (id,user_id,street,city,state,zip_code,country,is_default) VALUES (?,?,?,?,?,?,?,?)",
		a.ID, userID, a.Street, a.City, a.State, a.ZipCode, a.Country, a.IsDefault); err != nil {
		return model.Address{}, errors.Wrap(err, "insert address")
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET updated_at=? WHERE id=?", time.Now().UTC(), userID); err != nil {
		return model.Address{}, errors.Wrap(err, "touch user")
	}
	if err := tx.Commit(); err != nil {
		return model.Address{}, errors.Wrap(err, "commit address")
	}
	return a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
