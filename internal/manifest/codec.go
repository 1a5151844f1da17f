package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// entryWire decodes entries leniently: a missing "apply" key means true.
type entryWire struct {
	Commit  string `json:"commit" yaml:"commit"`
	Summary string `json:"summary" yaml:"summary"`
	Date    string `json:"date" yaml:"date"`
	Apply   *bool  `json:"apply" yaml:"apply"`
}

func (w entryWire) entry() Entry {
	e := Entry{Commit: w.Commit, Summary: w.Summary, Date: w.Date, Apply: true}
	if w.Apply != nil {
		e.Apply = *w.Apply
	}
	return e
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var w entryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = w.entry()
	return nil
}

func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	var w entryWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*e = w.entry()
	return nil
}

// Marshal encodes m with its leading notice line.
func Marshal(m Manifest, format Format) ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}

	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		buf.WriteString("// " + Header + "\n")
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(m); err != nil {
			return nil, fmt.Errorf("encoding manifest: %w", err)
		}
	case FormatYAML:
		buf.WriteString("# " + Header + "\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return nil, fmt.Errorf("encoding manifest: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses manifest data, dropping `//` comment lines first.
func Unmarshal(data []byte, format Format) (Manifest, error) {
	data = StripComments(data)

	var m Manifest
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	if m == nil {
		m = Manifest{}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// StripComments blanks every line whose first non-space characters are `//`.
// Blanking rather than removing keeps decoder line numbers meaningful.
func StripComments(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimLeft(l, " \t"), "//") {
			lines[i] = ""
		}
	}
	return []byte(strings.Join(lines, "\n"))
}
