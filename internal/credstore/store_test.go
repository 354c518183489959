package credstore

import (
	"testing"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
)

func TestGetMissingReturnsEmpty(t *testing.T) {
	store := New()
	if got := store.Get("absent"); got != "" {
		t.Fatalf("missing name should resolve to empty, got %q", got)
	}
}

func TestSetGetDelete(t *testing.T) {
	store := New()
	store.Set("auth_value", "tokenXYZ")
	if got := store.Get("auth_value"); got != "tokenXYZ" {
		t.Fatalf("unexpected value %q", got)
	}

	store.Set("", "ignored")
	if got := store.Get(""); got != "" {
		t.Fatalf("empty names must not be stored")
	}

	store.Delete("auth_value")
	if got := store.Get("auth_value"); got != "" {
		t.Fatalf("delete did not remove the value")
	}
}

func TestLoadData(t *testing.T) {
	store := New()
	data := []byte(`
# credentials for the staging gateway
auth_value = "tokenXYZ"
session='abc123'
plain=value with spaces

`)
	if err := store.LoadData(data); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := store.Get("auth_value"); got != "tokenXYZ" {
		t.Fatalf("double-quoted value %q", got)
	}
	if got := store.Get("session"); got != "abc123" {
		t.Fatalf("single-quoted value %q", got)
	}
	if got := store.Get("plain"); got != "value with spaces" {
		t.Fatalf("plain value %q", got)
	}
}

func TestLoadDataRejectsMalformedLines(t *testing.T) {
	store := New()
	if err := store.LoadData([]byte("not-a-pair\n")); !errdef.IsCode(err, errdef.CodeAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if err := store.LoadData([]byte("=nameless\n")); !errdef.IsCode(err, errdef.CodeAuth) {
		t.Fatalf("expected auth error for empty name, got %v", err)
	}
}
