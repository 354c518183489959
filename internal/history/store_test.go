package history

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), maxEntries)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndList(t *testing.T) {
	store := openTestStore(t, 10)

	first := Entry{
		Method:      "GET",
		URL:         "https://api.example.com/items",
		Status:      "200 OK",
		StatusCode:  200,
		Duration:    120 * time.Millisecond,
		SizeBytes:   42,
		ContentType: "application/json",
		BodySnippet: `{"a":1}`,
		ExecutedAt:  time.Now().Add(-time.Minute),
	}
	if err := store.Append(first); err != nil {
		t.Fatalf("append: %v", err)
	}
	second := Entry{
		Method:     "POST",
		URL:        "https://api.example.com/items",
		StatusCode: 201,
		Streamed:   true,
		ExecutedAt: time.Now(),
	}
	if err := store.Append(second); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Method != "POST" {
		t.Fatalf("entries must be newest first: %#v", entries)
	}
	if !entries[0].Streamed || entries[1].Streamed {
		t.Fatalf("streamed flag lost: %#v", entries)
	}
	if entries[1].Duration != 120*time.Millisecond || entries[1].SizeBytes != 42 {
		t.Fatalf("fields lost: %#v", entries[1])
	}
	if entries[0].ID == "" {
		t.Fatalf("missing generated id")
	}
}

func TestByURL(t *testing.T) {
	store := openTestStore(t, 10)

	for i, url := range []string{
		"https://a.example.com", "https://b.example.com", "https://a.example.com",
	} {
		err := store.Append(Entry{
			Method:     "GET",
			URL:        url,
			ExecutedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	matched, err := store.ByURL("https://a.example.com")
	if err != nil {
		t.Fatalf("by url: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matched))
	}

	all, err := store.ByURL("  ")
	if err != nil {
		t.Fatalf("by url blank: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("blank filter should list everything, got %d", len(all))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := openTestStore(t, 3)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := store.Append(Entry{
			Method:     "GET",
			URL:        "https://example.com/" + strconv.Itoa(i),
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected the cap to hold, got %d entries", len(entries))
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.URL, "/0") || strings.HasSuffix(entry.URL, "/1") {
			t.Fatalf("oldest entries should be pruned: %#v", entries)
		}
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t, 10)

	entry := Entry{ID: "fixed-id", Method: "GET", URL: "https://example.com"}
	if err := store.Append(entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	existed, err := store.Delete("fixed-id")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Fatalf("expected the entry to exist")
	}

	existed, err = store.Delete("fixed-id")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Fatalf("second delete should report missing")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Append(Entry{Method: "GET", URL: "https://example.com"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, 10)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("data lost across reopen: %d entries", len(entries))
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  ", 10); err == nil {
		t.Fatalf("empty path must fail")
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("x", snippetLimit+100)
	if got := Snippet(long); len(got) != snippetLimit {
		t.Fatalf("unexpected snippet length %d", len(got))
	}
	if got := Snippet("short"); got != "short" {
		t.Fatalf("short bodies must pass through, got %q", got)
	}
}
