package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrUnavailable marks failures of the underlying database. Callers treat it
// as a signal to abort the current run rather than continue with partial
// persistence.
var ErrUnavailable = errors.New("lead store unavailable")

const defaultListLimit = 200

// Store persists leads in a sqlite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// modernc sqlite DSN: file:leads.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS leads (
  identity TEXT PRIMARY KEY,
  platform TEXT NOT NULL DEFAULT 'linkedin',
  author_name TEXT NOT NULL DEFAULT '',
  author_handle TEXT NOT NULL DEFAULT '',
  author_title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  post_url TEXT NOT NULL DEFAULT '',
  budget_mention TEXT NOT NULL DEFAULT '',
  matched_keywords TEXT NOT NULL DEFAULT '[]',
  matched_roles TEXT NOT NULL DEFAULT '[]',
  matched_industries TEXT NOT NULL DEFAULT '[]',
  rationale TEXT NOT NULL DEFAULT '',
  discovered_at TEXT NOT NULL,
  dismissed INTEGER NOT NULL DEFAULT 0
);
`); err != nil {
		return fmt.Errorf("create leads table: %w", err)
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_leads_discovered_at
ON leads(discovered_at DESC);
`); err != nil {
		return fmt.Errorf("create leads index: %w", err)
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return tx.Commit()
}

// UpsertIfNew stores the lead unless one with the same identity already
// exists. It reports whether a new row was created.
func (s *Store) UpsertIfNew(ctx context.Context, lead *Lead) (bool, error) {
	if lead == nil || strings.TrimSpace(lead.Identity) == "" {
		return false, fmt.Errorf("lead identity is required")
	}

	discoveredAt := lead.DiscoveredAt
	if discoveredAt.IsZero() {
		discoveredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO leads (
  identity, platform, author_name, author_handle, author_title, company,
  content, post_url, budget_mention, matched_keywords, matched_roles,
  matched_industries, rationale, discovered_at, dismissed
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0);`,
		lead.Identity,
		defaultString(lead.Platform, "linkedin"),
		lead.AuthorName,
		lead.AuthorHandle,
		lead.AuthorTitle,
		lead.Company,
		lead.Content,
		lead.PostURL,
		lead.BudgetMention,
		marshalList(lead.MatchedKeywords),
		marshalList(lead.MatchedRoles),
		marshalList(lead.MatchedIndustries),
		lead.Rationale,
		discoveredAt.Format(time.RFC3339),
	)
	if err != nil {
		return false, unavailable("insert lead", err)
	}

	// INSERT OR IGNORE does not report rows affected reliably across
	// drivers, changes() does.
	var changes int
	if err := s.db.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); err != nil {
		return false, unavailable("read insert result", err)
	}

	if changes > 0 {
		s.logger.Debug("lead stored", zap.String("identity", lead.Identity), zap.String("author", lead.AuthorName))
		return true, nil
	}

	s.logger.Debug("duplicate lead skipped", zap.String("identity", lead.Identity))
	return false, nil
}

// Filters narrows List results. String filters match against the stored
// matched_* sets, FreeText searches content, author and company.
type Filters struct {
	Keyword          string
	JobTitle         string
	Industry         string
	FreeText         string
	IncludeDismissed bool
	Limit            int
}

func (s *Store) List(ctx context.Context, filters Filters) ([]*Lead, error) {
	var conditions []string
	var args []any

	if !filters.IncludeDismissed {
		conditions = append(conditions, "dismissed = 0")
	}
	if kw := strings.TrimSpace(filters.Keyword); kw != "" {
		conditions = append(conditions, "instr(lower(matched_keywords), lower(?)) > 0")
		args = append(args, jsonNeedle(kw))
	}
	if role := strings.TrimSpace(filters.JobTitle); role != "" {
		conditions = append(conditions, "instr(lower(matched_roles), lower(?)) > 0")
		args = append(args, jsonNeedle(role))
	}
	if industry := strings.TrimSpace(filters.Industry); industry != "" {
		conditions = append(conditions, "instr(lower(matched_industries), lower(?)) > 0")
		args = append(args, jsonNeedle(industry))
	}
	if text := strings.TrimSpace(filters.FreeText); text != "" {
		conditions = append(conditions, "(instr(lower(content), lower(?)) > 0 OR instr(lower(author_name), lower(?)) > 0 OR instr(lower(company), lower(?)) > 0)")
		args = append(args, text, text, text)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT identity, platform, author_name, author_handle, author_title, company,
       content, post_url, budget_mention, matched_keywords, matched_roles,
       matched_industries, rationale, discovered_at, dismissed
FROM leads
%s
ORDER BY discovered_at DESC
LIMIT ?;`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list leads", err)
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, unavailable("scan lead", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list leads", err)
	}

	return leads, nil
}

func (s *Store) Get(ctx context.Context, identity string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT identity, platform, author_name, author_handle, author_title, company,
       content, post_url, budget_mention, matched_keywords, matched_roles,
       matched_industries, rationale, discovered_at, dismissed
FROM leads
WHERE identity = ?;`, identity)

	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get lead", err)
	}
	return lead, nil
}

// Dismiss marks a lead as not interesting. It reports whether the lead
// exists, so dismissing an already-dismissed lead still returns true.
func (s *Store) Dismiss(ctx context.Context, identity string) (bool, error) {
	if _, err := s.db.ExecContext(ctx, `UPDATE leads SET dismissed = 1 WHERE identity = ?;`, identity); err != nil {
		return false, unavailable("dismiss lead", err)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM leads WHERE identity = ? LIMIT 1;`, identity).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("dismiss lead", err)
	}
	return true, nil
}

func (s *Store) Count(ctx context.Context) (total, active int, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE dismissed = 0) FROM leads;`)
	if err := row.Scan(&total, &active); err != nil {
		return 0, 0, unavailable("count leads", err)
	}
	return total, active, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*Lead, error) {
	var lead Lead
	var keywordsJSON, rolesJSON, industriesJSON, discovered string
	var dismissed int

	if err := row.Scan(
		&lead.Identity,
		&lead.Platform,
		&lead.AuthorName,
		&lead.AuthorHandle,
		&lead.AuthorTitle,
		&lead.Company,
		&lead.Content,
		&lead.PostURL,
		&lead.BudgetMention,
		&keywordsJSON,
		&rolesJSON,
		&industriesJSON,
		&lead.Rationale,
		&discovered,
		&dismissed,
	); err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(keywordsJSON), &lead.MatchedKeywords)
	_ = json.Unmarshal([]byte(rolesJSON), &lead.MatchedRoles)
	_ = json.Unmarshal([]byte(industriesJSON), &lead.MatchedIndustries)
	lead.DiscoveredAt, _ = time.Parse(time.RFC3339, discovered)
	lead.Dismissed = dismissed != 0

	return &lead, nil
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// jsonNeedle wraps a term in quotes so it matches a whole element of the
// stored JSON array rather than a substring of another term.
func jsonNeedle(term string) string {
	return `"` + term + `"`
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
