package reqspec

import (
	"encoding/json"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
)

// MarshalPersisted renders the spec in its persistence shape. Binary blobs
// (raw file bodies, multipart file attachments) are dropped and only their
// names survive; everything else round-trips.
func (r *RequestSpec) MarshalPersisted() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeEncode, err, "encode request spec")
	}
	return data, nil
}

func UnmarshalPersisted(data []byte) (*RequestSpec, error) {
	var spec RequestSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errdef.Wrap(errdef.CodeEncode, err, "parse request spec")
	}
	return &spec, nil
}
