package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tailscale/hujson"
)

// fieldSpec is the on-disk form of a single field definition.
type fieldSpec struct {
	Type     string                    `json:"type"`
	Optional bool                      `json:"optional"`
	Options  []string                  `json:"options"`
	Minimum  *int64                    `json:"minimum"`
	Maximum  *int64                    `json:"maximum"`
	Elem     *fieldSpec                `json:"elem"`
	Special  map[string]map[string]any `json:"special"`
}

func (fs fieldSpec) node() (*Node, error) {
	t, err := ParseType(fs.Type)
	if err != nil {
		return nil, err
	}

	opts := NodeOpts{
		Optional: fs.Optional,
		Options:  fs.Options,
		Minimum:  fs.Minimum,
		Maximum:  fs.Maximum,
		Special:  fs.Special,
	}

	if fs.Elem != nil {
		if t != Array {
			return nil, fmt.Errorf("elem given for non-array field")
		}
		elem, err := fs.Elem.node()
		if err != nil {
			return nil, fmt.Errorf("elem: %w", err)
		}
		opts.Elem = elem
	}

	return NewNode(t, opts), nil
}

// Load reads the HuJSON schema document in the named file and returns the
// Tree it describes.
func Load(file string) (*Tree, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return t, nil
}

// Parse builds a Tree from a HuJSON schema document. The document is an
// object whose "__name__" member names the record type, whose other
// double-underscored members become record-level special sections (e.g.
// "__record__"), and whose remaining members define fields in document order.
func Parse(data []byte) (*Tree, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	// decode with a token stream so field declaration order survives.
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("schema document must be an object")
	}

	var (
		name    string
		fields  []Field
		special map[string]map[string]any
	)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse schema: %w", err)
		}
		key := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse schema member %q: %w", key, err)
		}

		if key == "__name__" {
			if err := json.Unmarshal(raw, &name); err != nil {
				return nil, fmt.Errorf("__name__: %w", err)
			}
			continue
		}

		if strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__") {
			section := strings.Trim(key, "_")
			var sec map[string]any
			if err := json.Unmarshal(raw, &sec); err != nil {
				return nil, fmt.Errorf("section %q: %w", key, err)
			}
			if special == nil {
				special = map[string]map[string]any{}
			}
			special[section] = sec
			continue
		}

		var fs fieldSpec
		if err := json.Unmarshal(raw, &fs); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		n, err := fs.node()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, Field{Name: key, Node: n})
	}

	if name == "" {
		return nil, fmt.Errorf("schema document is missing __name__")
	}

	return New(name, fields, special)
}
