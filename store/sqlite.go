package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zengm-games/zengm-sub016/store/migrations"
)

const (
	kindInt = 0
	kindStr = 1
)

// SQLite keeps every collection in one table of a SQLite database. Each Write is a single
// transaction.
type SQLite struct {
	sqlDB *sql.DB
}

// OpenSQLite opens the database at path and applies embedded migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

func keyColumns(key Key) (kind int, num int64, str string) {
	if key.IsStr {
		return kindStr, 0, key.Str
	}
	return kindInt, key.Int, ""
}

func keyFromColumns(kind int, num int64, str string) Key {
	if kind == kindStr {
		return StringKey(str)
	}
	return IntKey(num)
}

func (s *SQLite) Get(ctx context.Context, collection string, key Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	kind, num, str := keyColumns(key)
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT payload FROM records WHERE collection = ? AND kind = ? AND num = ? AND str = ?",
		collection, kind, num, str,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return payload, true, nil
}

func (s *SQLite) Scan(ctx context.Context, collection string, f func(key Key, payload []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT kind, num, str, payload FROM records WHERE collection = ? ORDER BY kind, num, str",
		collection,
	)
	if err != nil {
		return fmt.Errorf("scan %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind    int
			num     int64
			str     string
			payload []byte
		)
		if err := rows.Scan(&kind, &num, &str, &payload); err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		if err := f(keyFromColumns(kind, num, str), payload); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", collection, err)
	}
	return nil
}

func (s *SQLite) MaxKey(ctx context.Context, collection string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	var max int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT num FROM records WHERE collection = ? AND kind = ? ORDER BY num DESC LIMIT 1",
		collection, kindInt,
	).Scan(&max)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("max key %s: %w", collection, err)
	}
	return max, true, nil
}

func (s *SQLite) Write(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}

	for collection, changes := range batch {
		if changes.Empty() {
			continue
		}
		for _, key := range changes.Deletes {
			kind, num, str := keyColumns(key)
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM records WHERE collection = ? AND kind = ? AND num = ? AND str = ?",
				collection, kind, num, str,
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("delete %s/%s: %w", collection, key, err)
			}
		}
		for _, record := range changes.Puts {
			kind, num, str := keyColumns(record.Key)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO records (collection, kind, num, str, payload) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (collection, kind, num, str) DO UPDATE SET payload = excluded.payload`,
				collection, kind, num, str, record.Payload,
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("put %s/%s: %w", collection, record.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const migrationTable = "schema_migrations"

// applyMigrations executes every embedded .sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := upMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upMigration returns the SQL in the -- +migrate Up section.
func upMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, down)
	if downIdx == -1 {
		return content[upIdx+len(up):]
	}
	return content[upIdx+len(up) : downIdx]
}
