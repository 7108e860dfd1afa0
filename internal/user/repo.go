package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// User is a reviewer/admin account, distinct from students.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Errors surfaced to handlers.
var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already exists")
)

// Repository persists users in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, password_hash, is_admin, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Insert writes a new user.
func (r *Repository) Insert(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, is_admin)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.IsAdmin)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrExists
		}
		return User{}, err
	}
	return u, nil
}

func (r *Repository) getBy(ctx context.Context, field, value string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+field+` = $1`, value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetByID returns a user by id.
func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getBy(ctx, "email", email)
}

// GetByName returns a user by display name. Names are how reviewers are
// referenced in approve/decline requests.
func (r *Repository) GetByName(ctx context.Context, name string) (User, error) {
	return r.getBy(ctx, "name", name)
}

// List returns all users.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// Update overwrites name, email and the admin flag. Moving to a taken
// email is ErrExists, same as on insert.
func (r *Repository) Update(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET name = $2, email = $3, is_admin = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, u.ID, u.Name, u.Email, u.IsAdmin)
	updated, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrExists
	}
	return updated, err
}

// SetPassword stores a new password hash.
func (r *Repository) SetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
