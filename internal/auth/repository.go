package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAddressTaken is returned when a write would leave an address verified
// on more than one row.
var ErrAddressTaken = errors.New("address already verified")

const (
	uniqueViolation      = "23505"
	verifiedAddressIndex = "address_verified_address_uidx"
)

func addressWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == verifiedAddressIndex {
		return ErrAddressTaken
	}
	return err
}

// Lookups return (nil, nil) when no row matches.

const userColumns = `id, username, email, email_verified, password, salt, web3signup, tfa_secret, tfa_enabled, created_at`

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Web3Signup   bool
}

func (r *UserRepository) Create(ctx context.Context, u NewUser) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (username, email, password, salt, web3signup)
		VALUES ($1, NULLIF($2, ''), $3, '', $4)
		RETURNING `+userColumns, u.Username, u.Email, u.PasswordHash, u.Web3Signup)
	return scanUser(row)
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (*User, error) {
	return r.findOne(ctx, `WHERE id=$1`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, `WHERE username=$1`, username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `WHERE LOWER(email)=LOWER($1)`, email)
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) UpdateUsername(ctx context.Context, id int, username string) error {
	_, err := r.DB.Exec(ctx, `UPDATE users SET username=$1 WHERE id=$2`, username, id)
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, hash string) error {
	_, err := r.DB.Exec(ctx, `UPDATE users SET password=$1, salt='' WHERE id=$2`, hash, id)
	return err
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id int, email string, verified bool) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET email=NULLIF($1, ''),
		    email_verified=$2
		WHERE id=$3
	`, email, verified, id)
	return err
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, id int) error {
	_, err := r.DB.Exec(ctx, `UPDATE users SET email_verified=TRUE WHERE id=$1`, id)
	return err
}

func (r *UserRepository) SetTwoFactor(ctx context.Context, id int, secret *string, enabled bool) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET tfa_secret=$1,
		    tfa_enabled=$2
		WHERE id=$3
	`, secret, enabled, id)
	return err
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u         User
		email     sql.NullString
		tfaSecret sql.NullString
	)

	if err := row.Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.EmailVerified,
		&u.PasswordHash,
		&u.Salt,
		&u.Web3Signup,
		&tfaSecret,
		&u.TFAEnabled,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}

	u.Email = email.String
	u.TFASecret = nullStringPtr(tfaSecret)
	return &u, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

const addressColumns = `id, user_id, network, address, public_key, sign_message, verified, "default", created_at`

type AddressRepository struct {
	DB *pgxpool.Pool
}

func NewAddressRepository(db *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{DB: db}
}

func (r *AddressRepository) Create(ctx context.Context, a Address) (*Address, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO address (user_id, network, address, public_key, sign_message, verified, "default")
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+addressColumns,
		a.UserID, string(a.Network), a.Address, a.PublicKey, a.SignMessage, a.Verified, a.Default)
	created, err := scanAddress(row)
	if err != nil {
		return nil, addressWriteErr(err)
	}
	return created, nil
}

func (r *AddressRepository) FindByID(ctx context.Context, id int) (*Address, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+addressColumns+` FROM address WHERE id=$1`, id)
	return noRowsNil(scanAddress(row))
}

func (r *AddressRepository) FindForUser(ctx context.Context, userID int, network Network, address string) (*Address, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+addressColumns+`
		FROM address
		WHERE user_id=$1 AND network=$2 AND address=$3
		ORDER BY id
		LIMIT 1
	`, userID, string(network), address)
	return noRowsNil(scanAddress(row))
}

// FindVerified returns the verified row for address on any account.
func (r *AddressRepository) FindVerified(ctx context.Context, address string) (*Address, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+addressColumns+`
		FROM address
		WHERE address=$1 AND verified
		ORDER BY id
		LIMIT 1
	`, address)
	return noRowsNil(scanAddress(row))
}

func (r *AddressRepository) ListByUser(ctx context.Context, userID int) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+addressColumns+` FROM address WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AddressRepository) SetSignMessage(ctx context.Context, id int, msg string) error {
	_, err := r.DB.Exec(ctx, `UPDATE address SET sign_message=$1 WHERE id=$2`, msg, id)
	return err
}

// MarkVerified consumes signMessage: the row is only updated while it still
// carries that exact challenge, so a challenge confirms at most once.
func (r *AddressRepository) MarkVerified(ctx context.Context, id int, signMessage string, makeDefault bool) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE address
		SET verified=TRUE,
		    sign_message=NULL,
		    "default"=("default" OR $3)
		WHERE id=$1 AND sign_message=$2
	`, id, signMessage, makeDefault)
	if err != nil {
		return false, addressWriteErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetDefault makes id the only default address of the user on its network.
func (r *AddressRepository) SetDefault(ctx context.Context, userID int, network Network, id int) error {
	return pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE address SET "default"=FALSE
			WHERE user_id=$1 AND network=$2
		`, userID, string(network)); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE address SET "default"=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("address %d not owned by user %d", id, userID)
		}
		return nil
	})
}

func (r *AddressRepository) Delete(ctx context.Context, id int) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM address WHERE id=$1`, id)
	return err
}

func scanAddress(row pgx.Row) (*Address, error) {
	var (
		a       Address
		network string
		signMsg sql.NullString
	)
	if err := row.Scan(&a.ID, &a.UserID, &network, &a.Address, &a.PublicKey, &signMsg, &a.Verified, &a.Default, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Network = Network(network)
	a.SignMessage = nullStringPtr(signMsg)
	return &a, nil
}

type UndoTokenRepository struct {
	DB *pgxpool.Pool
}

func NewUndoTokenRepository(db *pgxpool.Pool) *UndoTokenRepository {
	return &UndoTokenRepository{DB: db}
}

func (r *UndoTokenRepository) Create(ctx context.Context, userID int, email, token string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO undo_email_change_token (user_id, email, token, valid)
		VALUES ($1, $2, $3, TRUE)
	`, userID, email, token)
	return err
}

func (r *UndoTokenRepository) Find(ctx context.Context, token string) (*UndoEmailChangeToken, error) {
	var t UndoEmailChangeToken
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, email, token, valid, created_at
		FROM undo_email_change_token
		WHERE token=$1
	`, token).Scan(&t.ID, &t.UserID, &t.Email, &t.Token, &t.Valid, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Invalidate flips valid to false; false means someone else already did.
func (r *UndoTokenRepository) Invalidate(ctx context.Context, id int) (bool, error) {
	tag, err := r.DB.Exec(ctx, `UPDATE undo_email_change_token SET valid=FALSE WHERE id=$1 AND valid`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type ReportRepository struct {
	DB *pgxpool.Pool
}

func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{DB: db}
}

// Create stores a report; false when the user already reported the content.
func (r *ReportRepository) Create(ctx context.Context, rep ContentReport) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		INSERT INTO content_report (network, type, content_id, reason, comments, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (network, type, content_id, user_id) DO NOTHING
	`, string(rep.Network), rep.Type, rep.ContentID, rep.Reason, rep.Comments, rep.UserID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func noRowsNil(a *Address, err error) (*Address, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}
