package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
)

// Entry is one recorded execution: the serialized request (binary blobs
// omitted) plus the terminal snapshot's headline fields.
type Entry struct {
	ID          string        `json:"id"`
	ExecutedAt  time.Time     `json:"executedAt"`
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	Status      string        `json:"status"`
	StatusCode  int           `json:"statusCode"`
	Duration    time.Duration `json:"duration"`
	SizeBytes   int64         `json:"sizeBytes"`
	ContentType string        `json:"contentType"`
	BodySnippet string        `json:"bodySnippet"`
	RequestJSON string        `json:"requestJson"`
	Streamed    bool          `json:"streamed"`
	Error       string        `json:"error,omitempty"`
}

const snippetLimit = 512

// Snippet trims a body to what is worth keeping in history.
func Snippet(body string) string {
	if len(body) <= snippetLimit {
		return body
	}
	return body[:snippetLimit]
}

type Store struct {
	db         *sql.DB
	maxEntries int
}

// schemaSteps migrate the database from user_version n to n+1. Opening a
// database written by a newer build leaves its schema alone.
var schemaSteps = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			executed_at INTEGER NOT NULL,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			status_code INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			content_type TEXT NOT NULL DEFAULT '',
			body_snippet TEXT NOT NULL DEFAULT '',
			request_json TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_executed_at ON entries(executed_at DESC)`,
	},
	{
		`ALTER TABLE entries ADD COLUMN streamed INTEGER NOT NULL DEFAULT 0`,
	},
}

func Open(path string, maxEntries int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errdef.New(errdef.CodeHistory, "history path is empty")
	}
	if maxEntries <= 0 {
		maxEntries = 200
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "create history dir")
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "open history db")
	}

	store := &Store{db: db, maxEntries: maxEntries}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "read schema version")
	}
	if version >= len(schemaSteps) {
		return nil
	}

	for step := version; step < len(schemaSteps); step++ {
		for _, stmt := range schemaSteps[step] {
			if _, err := s.db.Exec(stmt); err != nil {
				return errdef.Wrap(errdef.CodeHistory, err, "migrate history schema to v%d", step+1)
			}
		}
	}
	if _, err := s.db.Exec("PRAGMA user_version = " + strconv.Itoa(len(schemaSteps))); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "store schema version")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO entries
			(id, executed_at, method, url, status, status_code, duration_ns,
			 size_bytes, content_type, body_snippet, request_json, error, streamed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ExecutedAt.UnixNano(),
		entry.Method,
		entry.URL,
		entry.Status,
		entry.StatusCode,
		int64(entry.Duration),
		entry.SizeBytes,
		entry.ContentType,
		entry.BodySnippet,
		entry.RequestJSON,
		entry.Error,
		boolToInt(entry.Streamed),
	)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "append history entry")
	}
	return s.prune()
}

func (s *Store) prune() error {
	_, err := s.db.Exec(
		`DELETE FROM entries WHERE id NOT IN
			(SELECT id FROM entries ORDER BY executed_at DESC, id DESC LIMIT ?)`,
		s.maxEntries,
	)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "prune history")
	}
	return nil
}

// Entries returns all entries, newest first.
func (s *Store) Entries() ([]Entry, error) {
	return s.query("", nil)
}

// ByURL returns entries whose URL matches exactly, newest first.
func (s *Store) ByURL(url string) ([]Entry, error) {
	if strings.TrimSpace(url) == "" {
		return s.Entries()
	}
	return s.query("WHERE url = ?", []interface{}{url})
}

func (s *Store) query(where string, args []interface{}) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, executed_at, method, url, status, status_code, duration_ns,
			size_bytes, content_type, body_snippet, request_json, error, streamed
		 FROM entries `+where+` ORDER BY executed_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "query history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			executedAt int64
			durationNs int64
			streamed   int
		)
		if err := rows.Scan(
			&entry.ID, &executedAt, &entry.Method, &entry.URL,
			&entry.Status, &entry.StatusCode, &durationNs,
			&entry.SizeBytes, &entry.ContentType, &entry.BodySnippet,
			&entry.RequestJSON, &entry.Error, &streamed,
		); err != nil {
			return nil, errdef.Wrap(errdef.CodeHistory, err, "scan history entry")
		}
		entry.ExecutedAt = time.Unix(0, executedAt)
		entry.Duration = time.Duration(durationNs)
		entry.Streamed = streamed != 0
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "iterate history")
	}
	return entries, nil
}

// Delete removes the entry with the given id; reports whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	result, err := s.db.Exec("DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	return affected > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
