// Package mention finds @name references to roster members in message text
// and fans out notifications for them.
package mention

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExcerptRunes is the length of the excerpt carried in a notification.
const ExcerptRunes = 80

// Extract returns the roster names mentioned in text as "@Name", sorted and
// deduplicated. Matching is exact and case-sensitive. A mention must start
// the text or follow a non-word character, and must end at the text end or a
// non-word character, so "ana@lab.org" and "@Anabel" do not mention "Ana".
// When names overlap the longest match wins.
func Extract(text string, names []string) []string {
	if !strings.Contains(text, "@") || len(names) == 0 {
		return nil
	}

	candidates := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			candidates = append(candidates, n)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	found := make(map[string]struct{})
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		if i > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:i])
			if isWordRune(prev) {
				continue
			}
		}
		rest := text[i+1:]
		for _, name := range candidates {
			if !strings.HasPrefix(rest, name) {
				continue
			}
			if tail := rest[len(name):]; tail != "" {
				next, _ := utf8.DecodeRuneInString(tail)
				if isWordRune(next) {
					continue
				}
			}
			found[name] = struct{}{}
			i += len(name)
			break
		}
	}

	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for n := range found {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Excerpt truncates text to at most n runes.
func Excerpt(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
