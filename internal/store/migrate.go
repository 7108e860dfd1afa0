package store

import "database/sql"

// migrate applies the schema. The unique index on (student_id, day) is what
// makes concurrent mark and backfill calls safe: the application checks
// first, but the index is the authority.
func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS students (
		id             UUID PRIMARY KEY,
		name           TEXT NOT NULL,
		register_no    TEXT UNIQUE NOT NULL,
		email          TEXT UNIQUE NOT NULL,
		password_hash  TEXT NOT NULL,
		dob            TEXT NOT NULL DEFAULT '',
		address        TEXT NOT NULL DEFAULT '',
		city           TEXT NOT NULL DEFAULT '',
		contact        TEXT NOT NULL DEFAULT '',
		father_contact TEXT NOT NULL DEFAULT '',
		image_url      TEXT NOT NULL DEFAULT '',
		department     TEXT NOT NULL DEFAULT '',
		year           TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'active',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id                  UUID PRIMARY KEY,
		student_id          UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		snapshot_name       TEXT NOT NULL,
		snapshot_register_no TEXT NOT NULL,
		department          TEXT NOT NULL,
		year                TEXT NOT NULL,
		day                 DATE NOT NULL,
		status              TEXT NOT NULL,
		verification_method TEXT NOT NULL,
		time_in             TIMESTAMPTZ,
		verified_by         UUID REFERENCES users(id),
		remarks             TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_day        ON attendance_records(day);
	CREATE INDEX IF NOT EXISTS idx_attendance_department ON attendance_records(department, day);

	CREATE TABLE IF NOT EXISTS attendance_audit (
		id         UUID PRIMARY KEY,
		student_id UUID NOT NULL,
		day        DATE NOT NULL,
		outcome    TEXT NOT NULL,
		distance   DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_student ON attendance_audit(student_id, day);
	`
	_, err := db.Exec(schema)
	return err
}
