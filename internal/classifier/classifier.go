package classifier

import (
	"sort"
	"strings"
	"unicode"
)

type Classifier struct{}

func New() *Classifier { return &Classifier{} }

// stopwords per language tag; also used to drop noise from topics
var stopwords = map[string]map[string]struct{}{
	"en": set("the", "and", "of", "to", "in", "a", "for", "is", "on", "with", "as",
		"by", "at", "from", "that", "this", "it", "an", "be", "or", "are", "was",
		"will", "has", "have", "had", "but", "not", "your", "you", "we", "our", "which", "their"),
	"de": set("der", "die", "das", "und", "in", "zu", "den", "von", "mit", "sich", "des",
		"auf", "für", "ist", "im", "dem", "nicht", "ein", "eine", "als", "auch", "es", "an",
		"werden", "aus", "er", "hat", "dass", "sie", "nach", "wird", "bei", "einer", "um", "noch", "wir"),
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func tokens(text string) []string {
	sep := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) }
	return strings.FieldsFunc(strings.ToLower(text), sep)
}

// minHits is the number of stopword hits below which Language gives up.
const minHits = 2

// Language guesses "en" or "de" from stopword frequency. It returns "" when the text
// is too short or both languages score the same.
func (c *Classifier) Language(text string) string {
	scores := map[string]int{}
	for _, w := range tokens(text) {
		for lang, words := range stopwords {
			if _, ok := words[w]; ok {
				scores[lang]++
			}
		}
	}
	en, de := scores["en"], scores["de"]
	switch {
	case en == de, max(en, de) < minHits:
		return ""
	case en > de:
		return "en"
	default:
		return "de"
	}
}

// TopTopics returns top N keywords by frequency, ignoring stopwords of every
// supported language and short tokens.
func (c *Classifier) TopTopics(text string, n int) []string {
	freq := map[string]int{}
	for _, w := range tokens(text) {
		if len([]rune(w)) < 3 || isStopword(w) {
			continue
		}
		freq[w]++
	}

	type kv struct {
		K string
		V int
	}
	var list []kv
	for k, v := range freq {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].V == list[j].V {
			return list[i].K < list[j].K
		}
		return list[i].V > list[j].V
	})
	if n > len(list) {
		n = len(list)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, list[i].K)
	}
	return out
}

func isStopword(w string) bool {
	for _, words := range stopwords {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}
