package httpclient

import (
	"bytes"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
	"github.com/sfsm565826960/PostmanLite/internal/reqspec"
)

// HeaderPatch is the header adjustment a body encoding requires. It is
// applied after the precedence merge so body-type rules always win over
// hand-edited Content-Type headers. All key matching is case-insensitive.
type HeaderPatch struct {
	Set          []HeaderValue
	SetIfPresent []HeaderValue
	Remove       []string
}

func (p HeaderPatch) Apply(headers []HeaderValue) []HeaderValue {
	for _, key := range p.Remove {
		headers = removeHeaderFold(headers, key)
	}
	for _, header := range p.Set {
		headers = setHeaderFold(headers, header.Key, header.Value, true)
	}
	for _, header := range p.SetIfPresent {
		headers = setHeaderFold(headers, header.Key, header.Value, false)
	}
	return headers
}

func removeHeaderFold(headers []HeaderValue, key string) []HeaderValue {
	kept := headers[:0]
	for _, header := range headers {
		if strings.EqualFold(header.Key, key) {
			continue
		}
		kept = append(kept, header)
	}
	return kept
}

func setHeaderFold(headers []HeaderValue, key, value string, addMissing bool) []HeaderValue {
	// The precedence merge is case-sensitive, so the list may carry several
	// case variants of the same key. The first keeps its position and gets
	// the new value; the rest are dropped so no stale duplicate reaches the
	// wire.
	replaced := false
	kept := headers[:0]
	for _, header := range headers {
		if strings.EqualFold(header.Key, key) {
			if replaced {
				continue
			}
			header.Value = value
			replaced = true
		}
		kept = append(kept, header)
	}
	if !replaced && addMissing {
		kept = append(kept, HeaderValue{Key: key, Value: value})
	}
	return kept
}

func isBodylessMethod(method string) bool {
	return strings.EqualFold(method, "GET") || strings.EqualFold(method, "HEAD")
}

// EncodeBody turns the active body variant into wire bytes plus the header
// patch it requires. The method wins over the body type: a body configured
// on a GET is silently not sent, but its data stays in the spec.
func EncodeBody(method string, body reqspec.BodySpec) ([]byte, HeaderPatch, error) {
	if isBodylessMethod(method) || body.Type == reqspec.BodyNone {
		return nil, HeaderPatch{}, nil
	}

	switch body.Type {
	case reqspec.BodyJSON:
		return []byte(body.JSONText), HeaderPatch{
			Set: []HeaderValue{{Key: "Content-Type", Value: "application/json"}},
		}, nil

	case reqspec.BodyText:
		return []byte(body.Text), HeaderPatch{
			Set: []HeaderValue{{Key: "Content-Type", Value: "text/plain"}},
		}, nil

	case reqspec.BodyRawFile:
		// Sent as-is, never wrapped in a multipart envelope; content type
		// is left for the caller or transport to infer.
		return body.RawFile.Data, HeaderPatch{}, nil

	case reqspec.BodyMultipartForm:
		return encodeMultipart(body.FormParts)

	case reqspec.BodyURLEncodedForm:
		payload := EncodeURLValues(body.URLEncoded)
		// Refresh the header only when the caller already set one; the
		// encoder never forces it onto a bare header list.
		return []byte(payload), HeaderPatch{
			SetIfPresent: []HeaderValue{
				{Key: "Content-Type", Value: "application/x-www-form-urlencoded"},
			},
		}, nil
	}

	return nil, HeaderPatch{}, errdef.New(errdef.CodeEncode, "unknown body type %d", body.Type)
}

func encodeMultipart(parts reqspec.FormPartList) ([]byte, HeaderPatch, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, part := range parts.Enabled() {
		switch part.Kind {
		case reqspec.FormPartText:
			if err := writer.WriteField(part.Key, part.Value); err != nil {
				return nil, HeaderPatch{}, errdef.Wrap(errdef.CodeEncode, err, "write form field %s", part.Key)
			}
		case reqspec.FormPartFile:
			if part.File.Empty() {
				continue
			}
			fw, err := writer.CreateFormFile(part.Key, part.File.Name)
			if err != nil {
				return nil, HeaderPatch{}, errdef.Wrap(errdef.CodeEncode, err, "create form file %s", part.Key)
			}
			if _, err := fw.Write(part.File.Data); err != nil {
				return nil, HeaderPatch{}, errdef.Wrap(errdef.CodeEncode, err, "write form file %s", part.Key)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, HeaderPatch{}, errdef.Wrap(errdef.CodeEncode, err, "finish multipart body")
	}

	// Any manually set Content-Type is stripped; only the generated value
	// carries the right boundary.
	patch := HeaderPatch{
		Remove: []string{"Content-Type"},
		Set:    []HeaderValue{{Key: "Content-Type", Value: writer.FormDataContentType()}},
	}
	return buf.Bytes(), patch, nil
}

// EncodeURLValues renders enabled non-empty-key entries as k=v pairs joined
// with &, each component percent-encoded independently, in list order.
func EncodeURLValues(list reqspec.KeyValueList) string {
	entries := list.Enabled()
	pairs := make([]string, 0, len(entries))
	for _, entry := range entries {
		pairs = append(pairs, url.QueryEscape(entry.Key)+"="+url.QueryEscape(entry.Value))
	}
	return strings.Join(pairs, "&")
}
