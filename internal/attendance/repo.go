package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, snapshot_name, snapshot_register_no, department, year,
	day, status, verification_method, time_in, verified_by, remarks, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.SnapshotName, &rec.SnapshotRegisterNo,
		&rec.Department, &rec.Year, &rec.Day, &rec.Status, &rec.VerificationMethod,
		&rec.TimeIn, &rec.VerifiedBy, &rec.Remarks, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Insert writes a new record. A second insert for the same (student, day)
// is rejected by the unique index and reported as ErrAlreadyMarked, which
// is what closes the concurrent check-then-create race.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(id, student_id, snapshot_name, snapshot_register_no, department, year,
			 day, status, verification_method, time_in, verified_by, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at
	`, rec.ID, rec.StudentID, rec.SnapshotName, rec.SnapshotRegisterNo, rec.Department,
		rec.Year, rec.Day, rec.Status, rec.VerificationMethod, rec.TimeIn, rec.VerifiedBy, rec.Remarks)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return Record{}, ErrAlreadyMarked
		}
		return Record{}, err
	}
	return rec, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}

// ForDay returns the student's record for the given day, or nil.
func (r *Repository) ForDay(ctx context.Context, studentID string, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = $1 AND day = $2
	`, studentID, day)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BackfillAbsent inserts an Absent/Manual record for every student with no
// entry on day. Safe to re-run; existing records are left alone.
func (r *Repository) BackfillAbsent(ctx context.Context, day time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records
			(id, student_id, snapshot_name, snapshot_register_no, department, year,
			 day, status, verification_method)
		SELECT gen_random_uuid(), s.id, s.name, s.register_no, s.department, s.year,
			$1, 'Absent', 'Manual'
		FROM students s
		WHERE NOT EXISTS (
			SELECT 1 FROM attendance_records a WHERE a.student_id = s.id AND a.day = $1
		)
		ON CONFLICT (student_id, day) DO NOTHING
	`, day)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetReview applies a reviewer decision to one record.
func (r *Repository) SetReview(ctx context.Context, id string, status Status, timeIn *time.Time, reviewerID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET status = $2, time_in = $3, verified_by = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, id, status, timeIn, reviewerID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}

// ApproveAllUnverified marks every unverified record Present with the given
// time-in, regardless of prior status.
func (r *Repository) ApproveAllUnverified(ctx context.Context, reviewerID string, timeIn time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = 'Present', time_in = $2, verified_by = $1, updated_at = NOW()
		WHERE verified_by IS NULL
	`, reviewerID, timeIn)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByDay returns all records of a day, newest first.
func (r *Repository) ListByDay(ctx context.Context, day time.Time) ([]Record, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE day = $1 ORDER BY created_at DESC`, day)
}

// ListUnverifiedByDay returns the day's records still awaiting review.
func (r *Repository) ListUnverifiedByDay(ctx context.Context, day time.Time) ([]Record, error) {
	return r.list(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE day = $1 AND verified_by IS NULL
		ORDER BY created_at DESC`, day)
}

// ListByStudent returns a student's records within [start, end], newest first.
func (r *Repository) ListByStudent(ctx context.Context, studentID string, start, end time.Time) ([]Record, error) {
	return r.list(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day DESC`, studentID, start, end)
}

// ListByDepartment returns a department's records for a day.
func (r *Repository) ListByDepartment(ctx context.Context, department string, day time.Time) ([]Record, error) {
	return r.list(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE department = $1 AND day = $2
		ORDER BY snapshot_register_no`, department, day)
}

// ListRange returns records in [start, end], optionally filtered by
// department, newest first.
func (r *Repository) ListRange(ctx context.Context, start, end time.Time, department string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	clauses := []string{"day >= $1", "day <= $2"}
	args := []any{start, end}
	if department != "" {
		clauses = append(clauses, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, department)
	}
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY day DESC, created_at DESC"
	return r.list(ctx, query, args...)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// PresenceCounts returns how many of a student's records in [start, end]
// are Present, and how many records exist at all.
func (r *Repository) PresenceCounts(ctx context.Context, studentID string, start, end time.Time) (present, total int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'Present'), COUNT(*)
		FROM attendance_records
		WHERE student_id = $1 AND day BETWEEN $2 AND $3
	`, studentID, start, end).Scan(&present, &total)
	return
}

// CountsForDay aggregates one day's records by status.
func (r *Repository) CountsForDay(ctx context.Context, day time.Time) (DayCounts, error) {
	var c DayCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'Present'),
			COUNT(*) FILTER (WHERE status = 'Absent'),
			COUNT(*) FILTER (WHERE status = 'Late'),
			COUNT(*)
		FROM attendance_records WHERE day = $1
	`, day).Scan(&c.Present, &c.Absent, &c.Late, &c.Total)
	return c, err
}

// DepartmentBreakdown groups one day's records by department.
func (r *Repository) DepartmentBreakdown(ctx context.Context, day time.Time) ([]DepartmentCounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT department,
			COUNT(*) FILTER (WHERE status = 'Present'),
			COUNT(*) FILTER (WHERE status = 'Absent'),
			COUNT(*) FILTER (WHERE status = 'Late'),
			COUNT(*)
		FROM attendance_records
		WHERE day = $1
		GROUP BY department
		ORDER BY department
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []DepartmentCounts
	for rows.Next() {
		var dc DepartmentCounts
		if err := rows.Scan(&dc.Department, &dc.Present, &dc.Absent, &dc.Late, &dc.Total); err != nil {
			return nil, err
		}
		res = append(res, dc)
	}
	return res, rows.Err()
}

// Delete removes a record by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteOlderThan removes records created more than the given number of
// days ago. Retention sweep; admin only.
func (r *Repository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM attendance_records
		WHERE created_at < NOW() - ($1 * interval '1 day')
	`, days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertAudit persists one intake audit event. Written by the worker.
func (r *Repository) InsertAudit(ctx context.Context, evt AuditEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_audit (id, student_id, day, outcome, distance, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, uuid.NewString(), evt.StudentID, evt.Day, evt.Outcome, evt.Distance, evt.At)
	return err
}
