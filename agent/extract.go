package agent

import (
	"strings"
	"unicode"
)

// stopWords are dropped from a candidate item phrase. Inventory vocabulary is
// included so "inventory of markers" leaves just "marker".
var stopWords = toSet(
	"a", "an", "the", "and", "or", "of", "on", "for", "in", "at", "to", "by",
	"with", "about", "from", "into", "any", "some", "more", "left", "remaining",
	"we", "were", "weve", "us", "our", "ours", "i", "im", "ive", "me", "my",
	"you", "your", "they", "them", "it", "its", "this", "that", "these", "those",
	"is", "are", "was", "be", "been", "being", "am", "do", "does", "did",
	"have", "has", "had", "can", "could", "would", "should", "will", "shall",
	"please", "pls", "hey", "hi", "hello", "bot", "thanks", "thank",
	"how", "many", "much", "what", "whats", "which", "who", "where", "when",
	"there", "theres", "here", "so", "just", "only", "still", "now", "today",
	"currently", "right", "really", "again", "also", "too", "very",
	"tell", "show", "list", "check", "see", "let", "know", "want", "like",
	"need", "needs", "get", "got", "go", "going", "running", "run",
	"low", "out", "short", "almost", "nearly",
	"item", "stock", "stocked", "level", "inventory", "supply", "material",
	"quantity", "count", "number", "amount", "current", "status",
	"order", "reorder", "buy", "purchase", "supplier", "vendor",
	"restock", "restocking", "restocked", "some", "few", "lot", "lots",
	"new", "extra", "additional", "available", "left",
)

// allWords mark an item-less request when nothing else remains.
var allWords = toSet("all", "everything", "entire", "full", "whole", "every")

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// typographic quotes fold to ASCII so triggers like "what's" match phone input.
var quoteFolder = strings.NewReplacer("’", "'", "‘", "'")

// normalizeMessage lower-cases, trims, folds quotes and drops a leading bot
// prefix.
func normalizeMessage(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	s = quoteFolder.Replace(s)
	s = strings.TrimLeft(s, "#")
	return strings.TrimSpace(s)
}

// tokenize splits on anything that is not a letter or digit. Apostrophes are
// removed first so "we're" becomes "were".
func tokenize(s string) []string {
	s = strings.NewReplacer("'", "", "’", "").Replace(strings.ToLower(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// singularize folds the common English plural forms.
func singularize(word string) string {
	if len(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "sses"),
		strings.HasSuffix(word, "xes"),
		strings.HasSuffix(word, "ches"),
		strings.HasSuffix(word, "shes"),
		strings.HasSuffix(word, "zzes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"),
		strings.HasSuffix(word, "us"),
		strings.HasSuffix(word, "is"):
		return word
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}

// looseName drops a trailing "s" from every token of a normalized phrase.
// It catches the short plurals singularize leaves alone ("pis", "ics").
func looseName(norm string) string {
	tokens := strings.Fields(norm)
	for i, t := range tokens {
		if len(t) > 1 && strings.HasSuffix(t, "s") {
			tokens[i] = t[:len(t)-1]
		}
	}
	return strings.Join(tokens, " ")
}

// normalizeName is the comparison form of an item name or phrase: lower-case
// singular tokens joined by single spaces.
func normalizeName(s string) string {
	tokens := tokenize(s)
	for i, t := range tokens {
		tokens[i] = singularize(t)
	}
	return strings.Join(tokens, " ")
}

// phrase is the outcome of cleaning a span of text.
type phrase struct {
	text    string // normalized noun phrase, "" when none
	wantAll bool   // an all-word was present
}

func cleanPhrase(span string) phrase {
	var (
		out     []string
		wantAll bool
	)
	for _, tok := range tokenize(span) {
		if _, ok := allWords[tok]; ok {
			wantAll = true
			continue
		}
		if _, ok := stopWords[tok]; ok {
			continue
		}
		sing := singularize(tok)
		if _, ok := stopWords[sing]; ok {
			continue
		}
		out = append(out, sing)
	}
	return phrase{text: strings.Join(out, " "), wantAll: wantAll}
}

// extractItem pulls the candidate item out of msg given the matched trigger
// span [start, end). The text after the trigger wins; the text before it is
// used when nothing survives cleaning. wantAll looks at the whole message,
// trigger included ("show all").
func extractItem(msg string, start, end int) phrase {
	p := cleanPhrase(msg[end:])
	if p.text == "" {
		p = cleanPhrase(msg[:start])
	}
	for _, tok := range tokenize(msg) {
		if _, ok := allWords[tok]; ok {
			p.wantAll = true
			break
		}
	}
	return p
}

// levenshtein is the classic two-row edit distance over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// sharesToken reports whether two normalized phrases have a word in common.
func sharesToken(a, b string) bool {
	words := toSet(strings.Fields(a)...)
	for _, w := range strings.Fields(b) {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}
