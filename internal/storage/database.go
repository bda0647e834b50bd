package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"complaintbot/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps *sql.DB and rewrites placeholders for drivers that do not accept
// the ? form, so service code can use one query dialect for all backends.
type DB struct {
	*sql.DB
	driver string
}

// Driver reports the configured driver name.
func (d *DB) Driver() string {
	return d.driver
}

// Rebind converts ? placeholders to the $n form when running on postgres.
func (d *DB) Rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExecContext rebinds the query and delegates to the underlying pool.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

// QueryContext rebinds the query and delegates to the underlying pool.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

// QueryRowContext rebinds the query and delegates to the underlying pool.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// InsertReturningID runs an INSERT and returns the generated id, using
// RETURNING on postgres where LastInsertId is unavailable.
func (d *DB) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if d.driver == "postgres" {
		var id int64
		err := d.DB.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := d.DB.ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Open connects to the database selected by dbType.
func Open(dbType string, cfg *config.Config) (*DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db     *sql.DB
		driver string
		err    error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		driver = "sqlite3"
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		driver = "mysql"
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case "postgres":
		driver = "postgres"
		sslMode := dbCfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.DBName,
			sslMode,
		)
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{DB: db, driver: driver}, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *DB) error {
	var stmts []string
	switch db.driver {
	case "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chat_id INTEGER NOT NULL UNIQUE,
				authorized INTEGER NOT NULL DEFAULT 0,
				step TEXT NOT NULL DEFAULT 'idle',
				branch TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				patient_name TEXT NOT NULL DEFAULT '',
				patient_phone TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS complaints (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER NOT NULL,
				chat_id INTEGER NOT NULL,
				branch TEXT NOT NULL,
				category TEXT NOT NULL,
				text TEXT,
				voice_url TEXT,
				status TEXT NOT NULL DEFAULT 'incoming',
				patient_name TEXT NOT NULL DEFAULT '',
				patient_phone TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_complaints_created_at ON complaints(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_complaints_chat ON complaints(chat_id)`,
			`CREATE TABLE IF NOT EXISTS operators (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS operator_tokens (
				token TEXT PRIMARY KEY,
				operator_id INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				FOREIGN KEY(operator_id) REFERENCES operators(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_operator_tokens_operator ON operator_tokens(operator_id)`,
			`CREATE TABLE IF NOT EXISTS export_files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				file_name TEXT NOT NULL,
				stored_path TEXT NOT NULL,
				records INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_export_files_expiry ON export_files(expires_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				chat_id BIGINT NOT NULL,
				authorized TINYINT(1) NOT NULL DEFAULT 0,
				step VARCHAR(50) NOT NULL DEFAULT 'idle',
				branch VARCHAR(100) NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL DEFAULT '',
				content TEXT,
				patient_name VARCHAR(128) NOT NULL DEFAULT '',
				patient_phone VARCHAR(20) NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_sessions_chat (chat_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS complaints (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				session_id BIGINT UNSIGNED NOT NULL,
				chat_id BIGINT NOT NULL,
				branch VARCHAR(100) NOT NULL,
				category VARCHAR(100) NOT NULL,
				text TEXT,
				voice_url TEXT,
				status VARCHAR(20) NOT NULL DEFAULT 'incoming',
				patient_name VARCHAR(128) NOT NULL DEFAULT '',
				patient_phone VARCHAR(20) NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_complaints_created_at (created_at),
				INDEX idx_complaints_chat (chat_id),
				CONSTRAINT fk_complaints_session FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS operators (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				username VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS operator_tokens (
				token VARCHAR(255) NOT NULL PRIMARY KEY,
				operator_id BIGINT UNSIGNED NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				INDEX idx_operator_tokens_operator (operator_id),
				CONSTRAINT fk_operator_tokens_operator FOREIGN KEY (operator_id) REFERENCES operators(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS export_files (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				file_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				records INT NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_export_files_expiry (expires_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id BIGSERIAL PRIMARY KEY,
				chat_id BIGINT NOT NULL UNIQUE,
				authorized BOOLEAN NOT NULL DEFAULT FALSE,
				step VARCHAR(50) NOT NULL DEFAULT 'idle',
				branch VARCHAR(100) NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				patient_name VARCHAR(128) NOT NULL DEFAULT '',
				patient_phone VARCHAR(20) NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS complaints (
				id BIGSERIAL PRIMARY KEY,
				session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				chat_id BIGINT NOT NULL,
				branch VARCHAR(100) NOT NULL,
				category VARCHAR(100) NOT NULL,
				text TEXT,
				voice_url TEXT,
				status VARCHAR(20) NOT NULL DEFAULT 'incoming',
				patient_name VARCHAR(128) NOT NULL DEFAULT '',
				patient_phone VARCHAR(20) NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_complaints_created_at ON complaints(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_complaints_chat ON complaints(chat_id)`,
			`CREATE TABLE IF NOT EXISTS operators (
				id BIGSERIAL PRIMARY KEY,
				username VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS operator_tokens (
				token VARCHAR(255) PRIMARY KEY,
				operator_id BIGINT NOT NULL REFERENCES operators(id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_operator_tokens_operator ON operator_tokens(operator_id)`,
			`CREATE TABLE IF NOT EXISTS export_files (
				id BIGSERIAL PRIMARY KEY,
				file_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				records INT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_export_files_expiry ON export_files(expires_at)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", db.driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", db.driver, err)
		}
	}
	return nil
}
