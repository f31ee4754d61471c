package bundle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kosarica/analytics-service/internal/ingestion"
	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/schema"
	"github.com/kosarica/analytics-service/internal/types"
)

var (
	// ErrAmbiguous is returned when two entries claim the same category
	ErrAmbiguous = errors.New("more than one file matches category")
	// ErrIncomplete is returned when a category has no matching entry
	ErrIncomplete = errors.New("no file matches category")
)

// filename keywords tried when the header row does not decide
var keywords = map[types.FileCategory][]string{
	types.CategoryTransaction:   {"transaction"},
	types.CategoryProductLookup: {"product"},
	types.CategoryCausalLookup:  {"causal"},
}

// Assignment maps each category to the bundle entry that feeds it
type Assignment map[types.FileCategory]Entry

// Files converts the assignment into orchestrator input
func (a Assignment) Files() ingestion.Files {
	file := func(c types.FileCategory) ingestion.File {
		e := a[c]
		return ingestion.File{Name: e.Name, Content: e.Content}
	}
	return ingestion.Files{
		Transaction:   file(types.CategoryTransaction),
		ProductLookup: file(types.CategoryProductLookup),
		CausalLookup:  file(types.CategoryCausalLookup),
	}
}

// Assign works out the category of each entry from its header row, falling
// back to keywords in the filename. Every category must be matched by
// exactly one entry; unmatched entries are ignored.
func Assign(entries []Entry, opts parsers.Options) (Assignment, error) {
	opts.MaxRows = 1
	out := make(Assignment, len(types.FileCategories))

	for _, e := range entries {
		category, ok := classify(e, opts)
		if !ok {
			log.Debug().Str("entry", e.Name).Msg("Bundle entry matches no category")
			continue
		}
		if prev, dup := out[category]; dup {
			return nil, fmt.Errorf("%w %s: %s and %s", ErrAmbiguous, category.Label(), prev.Name, e.Name)
		}
		out[category] = e
	}

	var missing []string
	for _, c := range types.FileCategories {
		if _, ok := out[c]; !ok {
			missing = append(missing, c.Label())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return out, nil
}

func classify(e Entry, opts parsers.Options) (types.FileCategory, bool) {
	parsed, err := parsers.ParseAs(e.Name, e.Format, e.Content, opts)
	if err == nil {
		if c, ok := schema.Classify(parsed.Headers); ok {
			return c, true
		}
	}

	name := strings.ToLower(e.Name)
	var found []types.FileCategory
	for _, c := range types.FileCategories {
		for _, kw := range keywords[c] {
			if strings.Contains(name, kw) {
				found = append(found, c)
				break
			}
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// Open expands content and assigns its entries in one call
func Open(ctx context.Context, content []byte, expand ExpandOptions, parse parsers.Options) (Assignment, error) {
	entries, err := NewExpander(expand).Expand(ctx, content)
	if err != nil {
		return nil, err
	}
	return Assign(entries, parse)
}
