package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the ResultRepository interface
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite result store
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_results (
			message_id TEXT PRIMARY KEY,
			msg_date TEXT,
			sender TEXT,
			subject TEXT,
			score INTEGER,
			severity TEXT,
			rule_hits TEXT,
			domains TEXT,
			urls TEXT,
			analyzed_at INTEGER,
			expires_at INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_expires_at ON triage_results(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	s := &SQLiteStore{newSQLStore(db, "sqlite", logger, cleanupFreq)}
	s.upsert = `
		INSERT OR REPLACE INTO triage_results
			(message_id, msg_date, sender, subject, score, severity, rule_hits, domains, urls, analyzed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s, nil
}

// sqlStore holds the queries shared by the SQL dialects. Timestamps are
// stored as unix nanoseconds so expiry compares the same way everywhere.
type sqlStore struct {
	db          *sql.DB
	dialect     string
	upsert      string
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

func newSQLStore(db *sql.DB, dialect string, logger *zap.Logger, cleanupFreq time.Duration) *sqlStore {
	s := &sqlStore{
		db:          db,
		dialect:     dialect,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go startCleanupTask(s.logger, s.cleanupFreq, s.stopCh, s.Cleanup)
	}

	return s
}

const selectColumns = `
	SELECT message_id, msg_date, sender, subject, score, severity, rule_hits, domains, urls, analyzed_at, expires_at
	FROM triage_results
`

// Get retrieves the stored result for a message
func (s *sqlStore) Get(ctx context.Context, messageID string) (*core.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`WHERE message_id = ? AND expires_at > ?`,
		messageID, s.now().UnixNano())

	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query result: %w", err)
	}
	return rec, nil
}

// Save stores a result, replacing any previous one for the same message
func (s *sqlStore) Save(ctx context.Context, rec *core.ResultRecord) error {
	hits, err := encodeList(rec.RuleHits)
	if err != nil {
		return err
	}
	domains, err := encodeList(rec.Domains)
	if err != nil {
		return err
	}
	urls, err := encodeList(rec.URLs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.upsert,
		rec.MessageID, rec.Date, rec.From, rec.Subject, rec.Score, string(rec.Severity),
		hits, domains, urls, rec.AnalyzedAt.UnixNano(), rec.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Delete removes a stored result
func (s *sqlStore) Delete(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM triage_results
		WHERE message_id = ?
	`, messageID)

	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}

	return nil
}

// List returns all unexpired results ordered by analysis time
func (s *sqlStore) List(ctx context.Context) ([]*core.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`WHERE expires_at > ? ORDER BY analyzed_at, message_id`,
		s.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	recs := []*core.ResultRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read result: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Cleanup removes expired results
func (s *sqlStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM triage_results
		WHERE expires_at <= ?
	`, s.now().UnixNano())

	if err != nil {
		return fmt.Errorf("failed to clean up expired results: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired results",
			zap.String("dialect", s.dialect),
			zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *sqlStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.String("dialect", s.dialect), zap.Error(err))
		}
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*core.ResultRecord, error) {
	var rec core.ResultRecord
	var severity, hits, domains, urls string
	var analyzedAt, expiresAt int64

	if err := row.Scan(&rec.MessageID, &rec.Date, &rec.From, &rec.Subject, &rec.Score, &severity,
		&hits, &domains, &urls, &analyzedAt, &expiresAt); err != nil {
		return nil, err
	}

	var err error
	if rec.RuleHits, err = decodeList(hits); err != nil {
		return nil, err
	}
	if rec.Domains, err = decodeList(domains); err != nil {
		return nil, err
	}
	if rec.URLs, err = decodeList(urls); err != nil {
		return nil, err
	}
	rec.Severity = core.Severity(severity)
	rec.AnalyzedAt = time.Unix(0, analyzedAt).UTC()
	rec.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &rec, nil
}
