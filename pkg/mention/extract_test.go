package mention

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	names := []string{"Ana", "Ana Maria", "Ben", "Cy"}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "hi @Ben", []string{"Ben"}},
		{"start of text", "@Cy ping", []string{"Cy"}},
		{"several sorted", "@Cy and @Ben", []string{"Ben", "Cy"}},
		{"duplicates collapse", "@Ben @Ben @Ben", []string{"Ben"}},
		{"longest wins", "ask @Ana Maria about it", []string{"Ana Maria"}},
		{"shorter still matches alone", "ask @Ana about it", []string{"Ana"}},
		{"punctuation ends mention", "thanks @Ben!", []string{"Ben"}},
		{"email is not a mention", "mail ana@Ben.org", nil},
		{"prefix of longer word", "@Benjamin is new", nil},
		{"case sensitive", "@ben", nil},
		{"unknown name", "@Dee", nil},
		{"no at sign", "Ben", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text, names))
		})
	}
}

func TestExtract_NoRoster(t *testing.T) {
	assert.Nil(t, Extract("@Ben", nil))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", ExcerptRunes))

	long := strings.Repeat("é", 100)
	got := Excerpt(long, ExcerptRunes)
	assert.Equal(t, strings.Repeat("é", 80), got)
}
