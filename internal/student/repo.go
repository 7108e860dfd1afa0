package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Student is a tracked student account. The password hash never leaves
// the server.
type Student struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	RegisterNo    string    `json:"registerNo"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	DOB           string    `json:"dob,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	Contact       string    `json:"contact,omitempty"`
	FatherContact string    `json:"fatherContact,omitempty"`
	ImageURL      string    `json:"image,omitempty"`
	Department    string    `json:"department"`
	Year          string    `json:"year"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Errors surfaced to handlers.
var (
	ErrNotFound = errors.New("student not found")
	ErrExists   = errors.New("student already exists")
)

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, name, register_no, email, password_hash, dob, address, city,
	contact, father_contact, image_url, department, year, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.RegisterNo, &s.Email, &s.PasswordHash, &s.DOB,
		&s.Address, &s.City, &s.Contact, &s.FatherContact, &s.ImageURL,
		&s.Department, &s.Year, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Insert writes a new student.
func (r *Repository) Insert(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students
			(id, name, register_no, email, password_hash, dob, address, city,
			 contact, father_contact, image_url, department, year, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at
	`, s.ID, s.Name, s.RegisterNo, s.Email, s.PasswordHash, s.DOB, s.Address, s.City,
		s.Contact, s.FatherContact, s.ImageURL, s.Department, s.Year, s.Status)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Student{}, ErrExists
		}
		return Student{}, err
	}
	return s, nil
}

func (r *Repository) getBy(ctx context.Context, field, value string) (Student, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE `+field+` = $1`, value)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	return s, err
}

// GetByID returns a student by id.
func (r *Repository) GetByID(ctx context.Context, id string) (Student, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail returns a student by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Student, error) {
	return r.getBy(ctx, "email", email)
}

// GetByRegisterNo returns a student by register number.
func (r *Repository) GetByRegisterNo(ctx context.Context, registerNo string) (Student, error) {
	return r.getBy(ctx, "register_no", registerNo)
}

// List returns a page of students, optionally filtered by a
// case-insensitive name keyword, together with the total match count.
func (r *Repository) List(ctx context.Context, keyword string, page, pageSize int) ([]Student, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 15
	}
	where := ""
	args := []any{}
	if keyword != "" {
		where = " WHERE name ILIKE $1"
		args = append(args, "%"+keyword+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + studentColumns + ` FROM students` + where + ` ORDER BY register_no`
	if keyword != "" {
		query += " LIMIT $2 OFFSET $3"
	} else {
		query += " LIMIT $1 OFFSET $2"
	}
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, s)
	}
	return res, total, rows.Err()
}

// ListByDepartment returns all students of a department.
func (r *Repository) ListByDepartment(ctx context.Context, department string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE department = $1 ORDER BY register_no`, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Update overwrites the mutable profile fields of a student.
func (r *Repository) Update(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE students
		SET name = $2, register_no = $3, address = $4, city = $5, contact = $6,
			father_contact = $7, image_url = $8, department = $9, year = $10,
			status = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING `+studentColumns+`
	`, s.ID, s.Name, s.RegisterNo, s.Address, s.City, s.Contact,
		s.FatherContact, s.ImageURL, s.Department, s.Year, s.Status)
	updated, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Student{}, ErrExists
	}
	return updated, err
}

// SetPassword stores a new password hash.
func (r *Repository) SetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE students SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a student.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
