package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sfsm565826960/PostmanLite/internal/snapshot"
)

// drainBuffered reads the whole body and publishes exactly one terminal
// snapshot. JSON responses are pretty-printed when they parse; a parse
// failure silently keeps the raw text.
func drainBuffered(h *Handle, resp *WireResponse, start time.Time) error {
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	var data []byte
	if resp.Body != nil {
		var err error
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			if h.cancelRequested() || h.ctx.Err() != nil {
				h.Cancel()
				return nil
			}
			h.publish(&snapshot.Snapshot{
				Status:       0,
				Elapsed:      time.Since(start),
				IsError:      true,
				ErrorMessage: err.Error(),
			})
			h.settle(err)
			return err
		}
	}

	contentType := resp.Headers.Get("Content-Type")
	body := string(data)
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err == nil {
			body = pretty.String()
		}
	}

	h.publish(&snapshot.Snapshot{
		Status:       resp.Status,
		StatusText:   resp.StatusText,
		Headers:      resp.Headers.Clone(),
		Body:         body,
		SizeBytes:    int64(len(data)),
		Elapsed:      time.Since(start),
		ContentType:  contentType,
		EffectiveURL: resp.EffectiveURL,
	})
	h.settle(nil)
	return nil
}

// drainStream publishes an initial snapshot as soon as headers are in, then
// one updated snapshot per chunk with the accumulated text and recomputed
// size and elapsed time. Content stays raw text; no JSON handling here even
// when the final body would parse.
func drainStream(h *Handle, resp *WireResponse, start time.Time) error {
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	contentType := resp.Headers.Get("Content-Type")
	base := snapshot.Snapshot{
		Status:       resp.Status,
		StatusText:   resp.StatusText,
		Headers:      resp.Headers.Clone(),
		ContentType:  contentType,
		EffectiveURL: resp.EffectiveURL,
	}

	initial := base
	initial.Elapsed = time.Since(start)
	h.publish(&initial)

	if resp.Body == nil {
		h.settle(nil)
		return nil
	}

	var accumulated strings.Builder
	var size int64
	buf := make([]byte, 32*1024)

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			accumulated.Write(buf[:n])
			size += int64(n)

			update := base
			update.Body = accumulated.String()
			update.SizeBytes = size
			update.Elapsed = time.Since(start)
			h.publish(&update)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				h.settle(nil)
				return nil
			}
			if h.cancelRequested() || h.ctx.Err() != nil {
				// Cancelled mid-stream: stop at this suspension point,
				// keep the last published snapshot.
				h.Cancel()
				return nil
			}
			h.publish(&snapshot.Snapshot{
				Status:       0,
				Elapsed:      time.Since(start),
				IsError:      true,
				ErrorMessage: err.Error(),
			})
			h.settle(err)
			return err
		}
	}
}
