package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the ResultRepository interface
type MySQLStore struct {
	*sqlStore
}

// NewMySQLStore creates a new MySQL result store
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_results (
			message_id VARCHAR(255) PRIMARY KEY,
			msg_date VARCHAR(255),
			sender TEXT,
			subject TEXT,
			score INT,
			severity VARCHAR(16),
			rule_hits TEXT,
			domains TEXT,
			urls MEDIUMTEXT,
			analyzed_at BIGINT,
			expires_at BIGINT,
			INDEX idx_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s := &MySQLStore{newSQLStore(db, "mysql", logger, cleanupFreq)}
	s.upsert = `
		INSERT INTO triage_results
			(message_id, msg_date, sender, subject, score, severity, rule_hits, domains, urls, analyzed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			msg_date = VALUES(msg_date),
			sender = VALUES(sender),
			subject = VALUES(subject),
			score = VALUES(score),
			severity = VALUES(severity),
			rule_hits = VALUES(rule_hits),
			domains = VALUES(domains),
			urls = VALUES(urls),
			analyzed_at = VALUES(analyzed_at),
			expires_at = VALUES(expires_at)
	`
	return s, nil
}
