package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"audiomark/internal/fingerprint"
)

// SQLiteIndex is the primary Index backend, grounded on
// original_source/sqlite_db.py's schema (audio_files / fingerprints tables)
// generalized with an algorithm column per spec.md §9.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (creating if absent) a SQLite-backed Index at path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to sqlite store: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *SQLiteIndex) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audio_refs (
			reference_id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path    TEXT UNIQUE NOT NULL,
			filename     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fingerprints (
			algorithm    TEXT NOT NULL,
			hash_hex     TEXT NOT NULL,
			local_time   INTEGER NOT NULL,
			reference_id INTEGER NOT NULL REFERENCES audio_refs(reference_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_algo_hash ON fingerprints (algorithm, hash_hex)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteIndex) EnsureReference(ctx context.Context, filePath, filename string) (ReferenceId, error) {
	if filename == "" {
		filename = filepath.Base(filePath)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT reference_id FROM audio_refs WHERE file_path = ?`, filePath)
	if err := row.Scan(&id); err == nil {
		return ReferenceId(id), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("checking existing reference: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_refs (file_path, filename) VALUES (?, ?)`, filePath, filename)
	if err != nil {
		// lost the race to a concurrent registration; fall back to the row it inserted
		row := s.db.QueryRowContext(ctx, `SELECT reference_id FROM audio_refs WHERE file_path = ?`, filePath)
		if scanErr := row.Scan(&id); scanErr == nil {
			return ReferenceId(id), nil
		}
		return 0, fmt.Errorf("inserting reference: %w", err)
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading new reference id: %w", err)
	}
	return ReferenceId(newID), nil
}

func (s *SQLiteIndex) IsRegistered(ctx context.Context, filePath string, algo fingerprint.Algorithm) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM fingerprints f
		JOIN audio_refs r ON r.reference_id = f.reference_id
		WHERE r.file_path = ? AND f.algorithm = ?
		LIMIT 1`, filePath, string(algo))

	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking registration: %w", err)
	}
	return true, nil
}

func (s *SQLiteIndex) WriteBatch(ctx context.Context, referenceId ReferenceId, algo fingerprint.Algorithm, tuples []fingerprint.Tuple) error {
	if len(tuples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fingerprints (algorithm, hash_hex, local_time, reference_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, tup := range tuples {
		if _, err := stmt.ExecContext(ctx, string(algo), tup.Hash, tup.LocalTime, int64(referenceId)); err != nil {
			return fmt.Errorf("writing fingerprint batch: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteIndex) Lookup(ctx context.Context, algo fingerprint.Algorithm, hashes []string) ([]Record, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(hashes))
	args := make([]any, 0, len(hashes)+1)
	args = append(args, string(algo))
	for i, h := range hashes {
		placeholders[i] = "?"
		args = append(args, h)
	}

	query := fmt.Sprintf(`
		SELECT hash_hex, reference_id, local_time FROM fingerprints
		WHERE algorithm = ? AND hash_hex IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bulk lookup: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var refID int64
		if err := rows.Scan(&r.Hash, &refID, &r.LocalTime); err != nil {
			return nil, fmt.Errorf("scanning lookup row: %w", err)
		}
		r.ReferenceId = ReferenceId(refID)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) GetReference(ctx context.Context, id ReferenceId) (Reference, error) {
	row := s.db.QueryRowContext(ctx, `SELECT reference_id, file_path, filename FROM audio_refs WHERE reference_id = ?`, int64(id))

	var ref Reference
	var refID int64
	if err := row.Scan(&refID, &ref.FilePath, &ref.Filename); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reference{}, ErrNotFound
		}
		return Reference{}, fmt.Errorf("reading reference: %w", err)
	}
	ref.Id = ReferenceId(refID)
	return ref, nil
}

func (s *SQLiteIndex) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints`); err != nil {
		return fmt.Errorf("clearing fingerprints: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_refs`); err != nil {
		return fmt.Errorf("clearing references: %w", err)
	}
	return nil
}

// ListReferences returns every registered reference, ordered by id. It is
// not part of the core Index contract (spec.md §4.5) — callers that need
// it type-assert for this capability, per httpapi's /api/references.
func (s *SQLiteIndex) ListReferences(ctx context.Context) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reference_id, file_path, filename FROM audio_refs ORDER BY reference_id`)
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var ref Reference
		var refID int64
		if err := rows.Scan(&refID, &ref.FilePath, &ref.Filename); err != nil {
			return nil, fmt.Errorf("scanning reference row: %w", err)
		}
		ref.Id = ReferenceId(refID)
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Stats reports the total reference and fingerprint row counts.
func (s *SQLiteIndex) Stats(ctx context.Context) (refCount, fingerprintCount int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audio_refs`).Scan(&refCount); err != nil {
		return 0, 0, fmt.Errorf("counting references: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fingerprints`).Scan(&fingerprintCount); err != nil {
		return 0, 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return refCount, fingerprintCount, nil
}

func (s *SQLiteIndex) Close() error { return s.db.Close() }
