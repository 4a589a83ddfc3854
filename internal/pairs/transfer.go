package pairs

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type transferDoc struct {
	Pairs []Pair `json:"pairs" yaml:"pairs"`
}

// FormatFromName picks a transfer format from a file name or format flag,
// defaulting to JSON.
func FormatFromName(name string) string {
	n := strings.ToLower(name)
	if n == FormatYAML || n == "yml" || strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

func Export(w io.Writer, list []Pair, format string) error {
	if list == nil {
		list = []Pair{}
	}
	doc := transferDoc{Pairs: list}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Decode reads an exported document. Both the wrapped form
// ({"pairs": [...]}) and a bare list are accepted.
func Decode(r io.Reader, format string) ([]Pair, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var doc transferDoc
	var bare []Pair
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil || doc.Pairs == nil {
			if berr := yaml.Unmarshal(data, &bare); berr != nil {
				return nil, fmt.Errorf("decode yaml: %w", firstErr(err, berr))
			}
			doc.Pairs = bare
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, &doc); err != nil || doc.Pairs == nil {
			if berr := json.Unmarshal(data, &bare); berr != nil {
				return nil, fmt.Errorf("decode json: %w", firstErr(err, berr))
			}
			doc.Pairs = bare
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	for i, p := range doc.Pairs {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
	}
	return doc.Pairs, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CopyValue puts the pair's value on the system clipboard.
func CopyValue(p Pair) error {
	if err := clipboard.WriteAll(p.Value); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}
