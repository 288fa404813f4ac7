package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// writeOutput encodes v as json or yaml, or calls text for the text format.
func writeOutput(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return text(w)
}

// EntryOutput is a search result as printed.
type EntryOutput struct {
	DN         string              `json:"dn" yaml:"dn"`
	Attributes map[string][]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

func entryOutputs(entries []query.Entry) []EntryOutput {
	out := make([]EntryOutput, len(entries))
	for i, e := range entries {
		out[i] = EntryOutput{DN: e.DN, Attributes: e.Attributes}
	}
	return out
}

// writeEntriesText prints entries in LDIF style, attributes sorted by name.
func writeEntriesText(w io.Writer, entries []EntryOutput) error {
	for i, e := range entries {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "dn: %s\n", e.DN); err != nil {
			return err
		}
		names := make([]string, 0, len(e.Attributes))
		for name := range e.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range e.Attributes[name] {
				if _, err := fmt.Fprintf(w, "%s: %s\n", name, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
