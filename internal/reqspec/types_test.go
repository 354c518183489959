package reqspec

import "testing"

func TestKeyValueListEnabled(t *testing.T) {
	list := KeyValueList{
		NewEntry("a", "1"),
		NewEntry("", "orphan value"),
		NewEntry("b", "2"),
	}
	list[2].Enabled = false

	enabled := list.Enabled()
	if len(enabled) != 1 {
		t.Fatalf("expected one enabled entry, got %d", len(enabled))
	}
	if enabled[0].Key != "a" {
		t.Fatalf("unexpected entry %#v", enabled[0])
	}
}

func TestKeyValueListSetFold(t *testing.T) {
	list := KeyValueList{NewEntry("Content-Type", "text/plain")}
	list[0].Enabled = false

	list.SetFold("content-type", "application/json")
	if len(list) != 1 {
		t.Fatalf("SetFold should replace, not append: %#v", list)
	}
	if list[0].Value != "application/json" || !list[0].Enabled {
		t.Fatalf("SetFold should update value and re-enable: %#v", list[0])
	}

	list.SetFold("Accept", "application/json")
	if len(list) != 2 || list[1].Key != "Accept" {
		t.Fatalf("SetFold should append a missing key: %#v", list)
	}
}

func TestKeyValueListRemoveFold(t *testing.T) {
	list := KeyValueList{
		NewEntry("Content-Type", "text/plain"),
		NewEntry("Accept", "*/*"),
		NewEntry("CONTENT-TYPE", "application/json"),
	}
	list.RemoveFold("content-type")
	if len(list) != 1 || list[0].Key != "Accept" {
		t.Fatalf("RemoveFold should drop every case-insensitive match: %#v", list)
	}
}

func TestNewNormalizesMethodAndURL(t *testing.T) {
	spec := New(" post ", "  https://example.com ")
	if spec.Method != "POST" {
		t.Fatalf("unexpected method %q", spec.Method)
	}
	if spec.URL != "https://example.com" {
		t.Fatalf("unexpected url %q", spec.URL)
	}
	if spec.ID == "" {
		t.Fatalf("expected a generated id")
	}
}

func TestFormPartListEnabled(t *testing.T) {
	parts := FormPartList{
		NewTextPart("note", "hello"),
		NewFilePart("upload", FileBlob{Name: "a.bin", Data: []byte{1}}),
		NewTextPart("", "keyless"),
	}
	parts[1].Enabled = false

	enabled := parts.Enabled()
	if len(enabled) != 1 || enabled[0].Key != "note" {
		t.Fatalf("unexpected enabled parts %#v", enabled)
	}
}

func TestAuthConfigActive(t *testing.T) {
	cfg := AuthConfig{Enabled: true, AppID: "app", SecretKey: "key"}
	if !cfg.Active() {
		t.Fatalf("expected active auth config")
	}
	cfg.SecretKey = ""
	if cfg.Active() {
		t.Fatalf("missing secret key should deactivate auth")
	}
}
