package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/stemchat/internal/inventory"
)

const maxSuggestions = 3

// resolution is the result of matching a phrase against stored items.
type resolution struct {
	Item        *inventory.Item
	Ambiguous   []inventory.Item // distinct best-distance candidates
	Suggestions []string         // near names when nothing matched
}

func (r resolution) found() bool { return r.Item != nil }

type candidate struct {
	item inventory.Item
	norm string
	dist int
}

// resolveItem matches phrase (already normalized) against the store.
//
// Exact normalized names win. Otherwise names containing the phrase, or
// contained in it, are ranked by edit distance and then by id. Containment is
// also checked with a trailing "s" dropped from every word. Two different
// names at the same best distance are ambiguous. The same name under two
// categories is not: the oldest row wins.
func resolveItem(ctx context.Context, store Store, phrase string) (resolution, error) {
	exact, err := store.FindItemsByName(ctx, phrase)
	if err != nil {
		return resolution{}, fmt.Errorf("find items: %w", err)
	}
	if len(exact) > 0 {
		return resolution{Item: &exact[0]}, nil
	}

	forward, err := store.SearchItems(ctx, phrase)
	if err != nil {
		return resolution{}, fmt.Errorf("search items: %w", err)
	}
	all, err := store.ListItems(ctx)
	if err != nil {
		return resolution{}, fmt.Errorf("list items: %w", err)
	}

	seen := make(map[uint]struct{}, len(forward))
	var cands []candidate
	add := func(it inventory.Item) {
		if _, dup := seen[it.ID]; dup {
			return
		}
		seen[it.ID] = struct{}{}
		norm := normalizeName(it.Name)
		cands = append(cands, candidate{item: it, norm: norm, dist: levenshtein(phrase, norm)})
	}

	for _, it := range forward {
		add(it)
	}
	loose := looseName(phrase)
	for _, it := range all {
		norm := normalizeName(it.Name)
		if norm == "" {
			continue
		}
		if strings.Contains(norm, phrase) || strings.Contains(phrase, norm) {
			add(it)
			continue
		}
		if ln := looseName(norm); loose != "" && (strings.Contains(ln, loose) || strings.Contains(loose, ln)) {
			add(it)
		}
	}

	if len(cands) == 0 {
		return resolution{Suggestions: suggest(phrase, all)}, nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].item.ID < cands[j].item.ID
	})

	best := cands[0]
	var tied []inventory.Item
	names := map[string]struct{}{best.norm: {}}
	tied = append(tied, best.item)
	for _, c := range cands[1:] {
		if c.dist != best.dist {
			break
		}
		if _, same := names[c.norm]; same {
			continue
		}
		names[c.norm] = struct{}{}
		tied = append(tied, c.item)
	}
	if len(tied) > 1 {
		return resolution{Ambiguous: tied}, nil
	}

	item := best.item
	return resolution{Item: &item}, nil
}

// suggest lists up to three names within max(2, len/3) edits of phrase or
// sharing one of its words, nearest first.
func suggest(phrase string, items []inventory.Item) []string {
	limit := max(2, len([]rune(phrase))/3)

	type near struct {
		name string
		dist int
		id   uint
	}
	var out []near
	seen := map[string]struct{}{}
	for _, it := range items {
		norm := normalizeName(it.Name)
		d := levenshtein(phrase, norm)
		if d > limit && !sharesToken(phrase, norm) {
			continue
		}
		if _, dup := seen[it.Name]; dup {
			continue
		}
		seen[it.Name] = struct{}{}
		out = append(out, near{name: it.Name, dist: d, id: it.ID})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].id < out[j].id
	})

	names := make([]string, 0, maxSuggestions)
	for i := 0; i < len(out) && i < maxSuggestions; i++ {
		names = append(names, out[i].name)
	}
	return names
}
