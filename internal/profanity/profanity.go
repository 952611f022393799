// Package profanity provides a word-list filter for visitor-entered text.
//
// The kiosk stands in a public exhibition; custom answers are checked before
// they reach the answer store. Matching is by lowercase word boundary, not
// substring, so "class" passes.
package profanity

import (
	"strings"
	"unicode"
)

// defaultWords is the built-in block list. Deployments can extend it via
// NewFilter.
var defaultWords = []string{
	"arse", "ass", "asshole", "bastard", "bitch", "bollocks", "crap",
	"cunt", "damn", "dick", "fuck", "fucker", "fucking", "motherfucker",
	"piss", "prick", "shit", "slut", "twat", "wanker", "whore",
}

// Filter checks text against a fixed word list.
type Filter struct {
	words map[string]struct{}
}

// NewFilter creates a filter with the built-in list plus any extra words.
func NewFilter(extra ...string) *Filter {
	f := &Filter{words: make(map[string]struct{}, len(defaultWords)+len(extra))}
	for _, w := range defaultWords {
		f.words[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			f.words[w] = struct{}{}
		}
	}
	return f
}

// Contains reports whether the text contains a blocked word.
func (f *Filter) Contains(text string) bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range fields {
		if _, blocked := f.words[word]; blocked {
			return true
		}
	}
	return false
}
