package reqspec

import (
	"strings"

	"github.com/google/uuid"
)

// KeyValueEntry is one row of an editable key-value list. Identity is ID so
// UI edits stay stable while keys change; only enabled entries with a
// non-empty key take part in encoding.
type KeyValueEntry struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

func NewEntry(key, value string) KeyValueEntry {
	return KeyValueEntry{ID: uuid.NewString(), Key: key, Value: value, Enabled: true}
}

// KeyValueList preserves insertion order; order is significant for query
// strings, url-encoded bodies and multipart part ordering.
type KeyValueList []KeyValueEntry

func (l KeyValueList) Enabled() []KeyValueEntry {
	out := make([]KeyValueEntry, 0, len(l))
	for _, entry := range l {
		if entry.Enabled && entry.Key != "" {
			out = append(out, entry)
		}
	}
	return out
}

func (l KeyValueList) Clone() KeyValueList {
	if l == nil {
		return nil
	}
	out := make(KeyValueList, len(l))
	copy(out, l)
	return out
}

func (l KeyValueList) IndexFold(key string) int {
	for i, entry := range l {
		if strings.EqualFold(entry.Key, key) {
			return i
		}
	}
	return -1
}

// SetFold replaces the value of the first case-insensitive key match, or
// appends a new enabled entry when there is none.
func (l *KeyValueList) SetFold(key, value string) {
	if idx := l.IndexFold(key); idx >= 0 {
		(*l)[idx].Value = value
		(*l)[idx].Enabled = true
		return
	}
	*l = append(*l, NewEntry(key, value))
}

func (l *KeyValueList) RemoveFold(key string) {
	kept := (*l)[:0]
	for _, entry := range *l {
		if strings.EqualFold(entry.Key, key) {
			continue
		}
		kept = append(kept, entry)
	}
	*l = kept
}

// FileBlob is an opaque named binary payload. The raw bytes never survive
// persistence; only the name round-trips.
type FileBlob struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

func (b FileBlob) Empty() bool {
	return b.Name == "" && len(b.Data) == 0
}

type FormPartKind int

const (
	FormPartText FormPartKind = iota
	FormPartFile
)

func (k FormPartKind) String() string {
	if k == FormPartFile {
		return "file"
	}
	return "text"
}

type FormPart struct {
	ID      string       `json:"id"`
	Key     string       `json:"key"`
	Kind    FormPartKind `json:"kind"`
	Value   string       `json:"value,omitempty"`
	File    FileBlob     `json:"file,omitempty"`
	Enabled bool         `json:"enabled"`
}

func NewTextPart(key, value string) FormPart {
	return FormPart{ID: uuid.NewString(), Key: key, Kind: FormPartText, Value: value, Enabled: true}
}

func NewFilePart(key string, file FileBlob) FormPart {
	return FormPart{ID: uuid.NewString(), Key: key, Kind: FormPartFile, File: file, Enabled: true}
}

type FormPartList []FormPart

func (l FormPartList) Enabled() []FormPart {
	out := make([]FormPart, 0, len(l))
	for _, part := range l {
		if part.Enabled && part.Key != "" {
			out = append(out, part)
		}
	}
	return out
}

// AuthConfig drives the signed header set. Headers are computed fresh on
// every send when Enabled and both AppID and SecretKey are non-empty.
type AuthConfig struct {
	Enabled       bool   `json:"enabled"`
	AppID         string `json:"appId"`
	SecretKey     string `json:"secretKey"`
	CredentialKey string `json:"credentialKey,omitempty"`
}

func (a AuthConfig) Active() bool {
	return a.Enabled && a.AppID != "" && a.SecretKey != ""
}

// RequestSpec is the declarative description of one HTTP exchange. The
// engine reads it at send time and never mutates it mid-flight.
type RequestSpec struct {
	ID               string       `json:"id"`
	Method           string       `json:"method"`
	URL              string       `json:"url"`
	Params           KeyValueList `json:"params"`
	Headers          KeyValueList `json:"headers"`
	Body             BodySpec     `json:"body"`
	StreamingEnabled bool         `json:"streamingEnabled"`
}

func New(method, url string) *RequestSpec {
	return &RequestSpec{
		ID:     uuid.NewString(),
		Method: strings.ToUpper(strings.TrimSpace(method)),
		URL:    strings.TrimSpace(url),
	}
}
