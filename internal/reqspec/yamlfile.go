package reqspec

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
)

// On-disk request document. File references in rawFile / multipart parts are
// resolved relative to the document's directory and loaded eagerly, since
// the engine only deals in in-memory blobs.
type requestDoc struct {
	Method    string   `yaml:"method"`
	URL       string   `yaml:"url"`
	Params    []kvDoc  `yaml:"params"`
	Headers   []kvDoc  `yaml:"headers"`
	Streaming bool     `yaml:"streaming"`
	Body      *bodyDoc `yaml:"body"`
}

type kvDoc struct {
	Key      string `yaml:"key"`
	Value    string `yaml:"value"`
	Disabled bool   `yaml:"disabled"`
}

type bodyDoc struct {
	Type       string    `yaml:"type"`
	JSON       string    `yaml:"json"`
	Text       string    `yaml:"text"`
	File       string    `yaml:"file"`
	Form       []formDoc `yaml:"form"`
	URLEncoded []kvDoc   `yaml:"urlencoded"`
}

type formDoc struct {
	Key      string `yaml:"key"`
	Value    string `yaml:"value"`
	File     string `yaml:"file"`
	Disabled bool   `yaml:"disabled"`
}

// LoadFile reads a YAML request document into a RequestSpec.
func LoadFile(fs FileSystem, path string) (*RequestSpec, error) {
	if fs == nil {
		fs = OSFileSystem{}
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read request file %s", path)
	}

	var doc requestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errdef.Wrap(errdef.CodeEncode, err, "parse request file %s", path)
	}
	if strings.TrimSpace(doc.URL) == "" {
		return nil, errdef.New(errdef.CodeEncode, "request file %s has no url", path)
	}

	method := doc.Method
	if strings.TrimSpace(method) == "" {
		method = "GET"
	}

	spec := New(method, doc.URL)
	spec.StreamingEnabled = doc.Streaming
	spec.Params = kvDocsToList(doc.Params)
	spec.Headers = kvDocsToList(doc.Headers)

	if doc.Body != nil {
		if err := applyBodyDoc(spec, fs, filepath.Dir(path), doc.Body); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

func kvDocsToList(docs []kvDoc) KeyValueList {
	if len(docs) == 0 {
		return nil
	}
	list := make(KeyValueList, 0, len(docs))
	for _, doc := range docs {
		entry := NewEntry(doc.Key, doc.Value)
		entry.Enabled = !doc.Disabled
		list = append(list, entry)
	}
	return list
}

func applyBodyDoc(spec *RequestSpec, fs FileSystem, baseDir string, doc *bodyDoc) error {
	bodyType, ok := ParseBodyType(doc.Type)
	if !ok {
		return errdef.New(errdef.CodeEncode, "unknown body type %q", doc.Type)
	}

	switch bodyType {
	case BodyJSON:
		spec.Body.JSONText = doc.JSON
	case BodyText:
		spec.Body.Text = doc.Text
	case BodyRawFile:
		blob, err := loadBlob(fs, baseDir, doc.File)
		if err != nil {
			return err
		}
		spec.Body.RawFile = blob
	case BodyMultipartForm:
		parts := make(FormPartList, 0, len(doc.Form))
		for _, part := range doc.Form {
			var built FormPart
			if part.File != "" {
				blob, err := loadBlob(fs, baseDir, part.File)
				if err != nil {
					return err
				}
				built = NewFilePart(part.Key, blob)
			} else {
				built = NewTextPart(part.Key, part.Value)
			}
			built.Enabled = !part.Disabled
			parts = append(parts, built)
		}
		spec.Body.FormParts = parts
	case BodyURLEncodedForm:
		spec.Body.URLEncoded = kvDocsToList(doc.URLEncoded)
	case BodyNone:
	}

	spec.SwitchBodyType(bodyType)
	return nil
}

func loadBlob(fs FileSystem, baseDir, path string) (FileBlob, error) {
	if path == "" {
		return FileBlob{}, nil
	}
	resolved := path
	if !filepath.IsAbs(path) && baseDir != "" {
		resolved = filepath.Join(baseDir, path)
	}
	data, err := fs.ReadFile(resolved)
	if err != nil {
		return FileBlob{}, errdef.Wrap(errdef.CodeFilesystem, err, "read body file %s", resolved)
	}
	return FileBlob{Name: filepath.Base(path), Data: data}, nil
}
