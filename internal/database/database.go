package database

import (
	"database/sql"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(dbPath string) error {
	var err error
	DB, err = sql.Open("sqlite", dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}

	createTargetsTable := `
	CREATE TABLE IF NOT EXISTS targets (
		chat_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		target_price REAL NOT NULL,
		condition TEXT NOT NULL,
		approach_pct REAL NOT NULL DEFAULT 0,
		delivery TEXT NOT NULL,
		broadcast_chat_id INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		live_chat_id INTEGER NOT NULL DEFAULT 0,
		live_message_id INTEGER NOT NULL DEFAULT 0,
		approach_sent INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (chat_id, symbol)
	);`
	if _, err = DB.Exec(createTargetsTable); err != nil {
		return errors.Wrap(err, "failed to create targets table")
	}

	createMetricsTable := `
	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT DEFAULT NULL,
		label_value TEXT DEFAULT NULL,
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`
	if _, err = DB.Exec(createMetricsTable); err != nil {
		return errors.Wrap(err, "failed to create metrics table")
	}

	log.Debug("Database initialized successfully.")
	return nil
}

func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
