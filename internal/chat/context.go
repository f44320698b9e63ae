package chat

import (
	"errors"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/storage"
)

// Markers stored in place of a source's data.
const (
	MarkerNotGenerated = "File not generated yet."
	MarkerNoData       = "No data found for this user."
	MarkerReadError    = "Error reading file."
)

// Source is one named per-client store feeding the chat context.
type Source struct {
	Name string
	Load func() (map[string]document.Document, error)
}

// StoreSources returns a Source per named store of s.
func StoreSources(s storage.DocumentStore, names ...string) []Source {
	out := make([]Source, 0, len(names))
	for _, name := range names {
		out = append(out, Source{Name: name, Load: func() (map[string]document.Document, error) {
			return s.Load(name)
		}})
	}
	return out
}

// Aggregate collects the client's entry from every source. Sources that
// cannot supply data are represented by a marker string; Aggregate never
// fails.
func Aggregate(clientID string, sources []Source) map[string]any {
	out := make(map[string]any, len(sources))
	for _, src := range sources {
		all, err := src.Load()
		switch {
		case errors.Is(err, storage.ErrStoreNotFound):
			out[src.Name] = MarkerNotGenerated
		case err != nil:
			out[src.Name] = MarkerReadError
		default:
			doc := all[clientID]
			if len(doc) == 0 {
				out[src.Name] = MarkerNoData
				continue
			}
			out[src.Name] = doc
		}
	}
	return out
}
