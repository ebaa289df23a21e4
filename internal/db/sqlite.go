// Package db opens and migrates the SQLite store backing the audit log.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// OpenAuditStore opens a write pool (MaxOpenConns=1) and a read pool for
// the audit log file. The single writer serializes appends; the read pool
// serves audit listing without contending with them.
//
// readMaxOpen controls the read pool size (0 defaults to 4).
func OpenAuditStore(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = openSQLite(path, "write", 0)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = openSQLite(path, "read", readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

// openSQLite opens one pool with WAL journal, busy_timeout=5000ms,
// synchronous=NORMAL, and foreign_keys=on. Write mode additionally takes
// the immediate transaction lock and pins the pool to one connection.
func openSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open audit store (%s): %w", mode, err)
	}

	switch mode {
	case "write":
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	default:
		if maxOpen <= 0 {
			maxOpen = 4
		}
		conn.SetMaxOpenConns(maxOpen)
		conn.SetMaxIdleConns(maxOpen)
	}
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping audit store (%s): %w", mode, err)
	}

	return conn, nil
}

// buildDSN constructs a SQLite DSN with hardened parameters.
func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	if mode == "write" {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}
