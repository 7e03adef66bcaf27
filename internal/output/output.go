// Package output renders impact results. All writers emit the same
// canonical order (depth ascending, label ascending within a depth), so two
// runs over identical inputs are byte-identical in every format.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"affected/internal/determinator"
	"affected/internal/errors"
)

// Entry is one result row in serialized form.
type Entry struct {
	Target string   `json:"target"`
	Type   string   `json:"type,omitempty"`
	Depth  int      `json:"depth"`
	Labels []string `json:"labels,omitempty"`
	Reason string   `json:"reason"`
}

// FromImpacted converts sorted impact results to serializable entries.
// Order is preserved; callers pass the output of determinator.Propagate,
// which is already canonical.
func FromImpacted(res []determinator.Impacted) []Entry {
	out := make([]Entry, len(res))
	for i, r := range res {
		out[i] = Entry{
			Target: string(r.Target.Label()),
			Type:   r.Target.Type,
			Depth:  r.Depth,
			Labels: r.Target.Labels,
			Reason: string(r.Reason),
		}
	}
	return out
}

// WriteText renders entries grouped by depth:
//
//	Level 0
//	  cell//pkg:target (reason)
//	Level 1
//	  ...
func WriteText(w io.Writer, entries []Entry) error {
	depth := -1
	for _, e := range entries {
		if e.Depth != depth {
			depth = e.Depth
			if _, err := fmt.Fprintf(w, "Level %d\n", depth); err != nil {
				return errors.Wrap(errors.IOError, err, "writing results")
			}
		}
		if _, err := fmt.Fprintf(w, "  %s (%s)\n", e.Target, e.Reason); err != nil {
			return errors.Wrap(errors.IOError, err, "writing results")
		}
	}
	return nil
}

// WriteJSON renders entries as a single JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	// An empty result is `[]`, never `null`
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return errors.Wrap(errors.IOError, err, "writing results")
	}
	return nil
}

// WriteJSONLines renders one JSON object per line, suitable for piping into
// downstream schedulers without buffering the whole result.
func WriteJSONLines(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return errors.Wrap(errors.IOError, err, "writing results")
		}
	}
	return nil
}

// Write dispatches on the format name. Valid names are "text", "json" and
// "json-lines".
func Write(w io.Writer, format string, entries []Entry) error {
	switch format {
	case "text", "":
		return WriteText(w, entries)
	case "json":
		return WriteJSON(w, entries)
	case "json-lines":
		return WriteJSONLines(w, entries)
	default:
		return errors.New(errors.ConfigInvalid, "unknown output format %q", format)
	}
}
