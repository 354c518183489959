package reqspec

// BodyType is a closed tag over the body variants. The encoder switches on
// it exhaustively; adding a tag without an encoder arm is a bug.
type BodyType int

const (
	BodyNone BodyType = iota
	BodyJSON
	BodyText
	BodyRawFile
	BodyMultipartForm
	BodyURLEncodedForm
)

var bodyTypeNames = map[BodyType]string{
	BodyNone:           "none",
	BodyJSON:           "json",
	BodyText:           "text",
	BodyRawFile:        "rawFile",
	BodyMultipartForm:  "multipartForm",
	BodyURLEncodedForm: "urlEncodedForm",
}

func (t BodyType) String() string {
	if name, ok := bodyTypeNames[t]; ok {
		return name
	}
	return "none"
}

func ParseBodyType(name string) (BodyType, bool) {
	for t, n := range bodyTypeNames {
		if n == name {
			return t, true
		}
	}
	return BodyNone, false
}

// BodySpec keeps every variant's payload at once; Type selects which one is
// meaningful. Switching Type never clears the others, so a round trip
// json -> text -> json leaves the JSON text untouched.
type BodySpec struct {
	Type       BodyType     `json:"type"`
	JSONText   string       `json:"jsonText,omitempty"`
	Text       string       `json:"text,omitempty"`
	RawFile    FileBlob     `json:"rawFile,omitempty"`
	FormParts  FormPartList `json:"formParts,omitempty"`
	URLEncoded KeyValueList `json:"urlEncoded,omitempty"`
}

// SwitchBodyType changes the active variant and applies the edit-time
// Content-Type adjustment to the spec's header list. This mirrors what the
// body editor does when the user flips tabs; send-time encoding applies the
// same rules again independently, so hand-edited headers cannot break it.
func (r *RequestSpec) SwitchBodyType(t BodyType) {
	r.Body.Type = t
	switch t {
	case BodyJSON:
		r.Headers.SetFold("Content-Type", "application/json")
	case BodyText:
		r.Headers.SetFold("Content-Type", "text/plain")
	case BodyMultipartForm:
		// The boundary is generated at encode time, so a manual value
		// would always be wrong.
		r.Headers.RemoveFold("Content-Type")
	case BodyURLEncodedForm:
		if r.Headers.IndexFold("Content-Type") >= 0 {
			r.Headers.SetFold("Content-Type", "application/x-www-form-urlencoded")
		}
	case BodyNone, BodyRawFile:
	}
}
