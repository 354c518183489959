package snapshot

import (
	"net/http"
	"sync/atomic"
	"time"
)

// ContentTypeOpaque marks responses whose status, headers and body the
// transport could not expose. They settle as non-errors.
const ContentTypeOpaque = "opaque/unknown"

// Snapshot is one published view of an in-flight or settled response.
// Streaming publishes a sequence of snapshots with growing Body/SizeBytes/
// Elapsed; buffered mode publishes exactly one. The last snapshot published
// before settlement is authoritative.
type Snapshot struct {
	Status       int           `json:"status"`
	StatusText   string        `json:"statusText"`
	Headers      http.Header   `json:"headers"`
	Body         string        `json:"body"`
	SizeBytes    int64         `json:"sizeBytes"`
	Elapsed      time.Duration `json:"elapsed"`
	ContentType  string        `json:"contentType"`
	IsError      bool          `json:"isError"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	EffectiveURL string        `json:"effectiveUrl,omitempty"`

	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Snapshot) ElapsedMs() int64 {
	return s.Elapsed.Milliseconds()
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Headers != nil {
		out.Headers = s.Headers.Clone()
	}
	return &out
}

var seqCounter uint64

func nextSequence() uint64 {
	return atomic.AddUint64(&seqCounter, 1)
}
