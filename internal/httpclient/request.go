package httpclient

import (
	"net/url"
	"strings"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
	"github.com/sfsm565826960/PostmanLite/internal/reqspec"
	"github.com/sfsm565826960/PostmanLite/internal/signing"
)

// BuildWireRequest assembles the wire-ready descriptor for one send: URL
// plus query string, the precedence-merged header list (global < auth <
// per-request) and the encoded body with its header patch applied last.
func BuildWireRequest(
	spec *reqspec.RequestSpec,
	globalHeaders reqspec.KeyValueList,
	authHeaders *signing.HeaderSet,
) (*WireRequest, error) {
	if spec == nil {
		return nil, errdef.New(errdef.CodeHTTP, "request spec is nil")
	}
	if strings.TrimSpace(spec.URL) == "" {
		return nil, errdef.New(errdef.CodeHTTP, "request url is empty")
	}

	target, err := buildTargetURL(spec.URL, spec.Params)
	if err != nil {
		return nil, err
	}

	headers := mergeHeaders(globalHeaders, authHeaders, spec.Headers)

	body, patch, err := EncodeBody(spec.Method, spec.Body)
	if err != nil {
		return nil, err
	}
	headers = patch.Apply(headers)

	return &WireRequest{
		Method:     strings.ToUpper(spec.Method),
		URL:        target,
		Headers:    headers,
		Body:       body,
		HalfDuplex: spec.StreamingEnabled && len(body) > 0,
	}, nil
}

// buildTargetURL strips any query string already on the base URL and
// replaces it with the enabled params, each key and value percent-encoded
// independently, in list order.
func buildTargetURL(base string, params reqspec.KeyValueList) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", errdef.Wrap(errdef.CodeHTTP, err, "parse url")
	}

	parsed.RawQuery = ""
	if query := EncodeURLValues(params); query != "" {
		parsed.RawQuery = query
	}
	return parsed.String(), nil
}

// mergeHeaders resolves the three header sources lowest to highest. A later
// source overwrites an identical key (case-sensitive, as stored) in place,
// so the first occurrence keeps its position in the wire order.
func mergeHeaders(
	globalHeaders reqspec.KeyValueList,
	authHeaders *signing.HeaderSet,
	requestHeaders reqspec.KeyValueList,
) []HeaderValue {
	merged := make([]HeaderValue, 0, len(globalHeaders)+len(requestHeaders)+6)

	overlay := func(key, value string) {
		for i := range merged {
			if merged[i].Key == key {
				merged[i].Value = value
				return
			}
		}
		merged = append(merged, HeaderValue{Key: key, Value: value})
	}

	for _, entry := range globalHeaders.Enabled() {
		overlay(entry.Key, entry.Value)
	}
	if authHeaders != nil {
		for _, pair := range authHeaders.Pairs() {
			overlay(pair[0], pair[1])
		}
	}
	for _, entry := range requestHeaders.Enabled() {
		overlay(entry.Key, entry.Value)
	}
	return merged
}
