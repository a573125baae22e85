// Package moderation masks blacklisted words in message content before it
// reaches storage. Matching runs over a lowercased copy of the text with an
// Aho-Corasick automaton; the language of each message is detected so the
// caller can log what the filter saw.
package moderation

import (
	"bufio"
	"bytes"
	"io/fs"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/abadojack/whatlanggo"
)

// Filter holds the compiled automaton. Safe for concurrent use; the
// automaton is read-only after Build.
type Filter struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// NewFilter compiles the blacklist. Words are matched case-insensitively.
func NewFilter(words []string, mask rune) (*Filter, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		patterns = append(patterns, lowerRunes([]rune(word)))
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: machine, mask: mask}, nil
}

// Apply masks every blacklisted span and reports the detected language of
// the original content. Rune-wise lowering keeps positions aligned between
// the matched copy and the original, so spans map back directly.
func (f *Filter) Apply(content string) (string, whatlanggo.Lang) {
	lang := whatlanggo.Detect(content).Lang

	original := []rune(content)
	lowered := lowerRunes(original)
	spans := f.matcher.MultiPatternSearch(lowered, false)
	if len(spans) == 0 {
		return content, lang
	}

	for _, span := range spans {
		for i := span.Pos; i < span.Pos+len(span.Word) && i < len(original); i++ {
			original[i] = f.mask
		}
	}
	return string(original), lang
}

func lowerRunes(input []rune) []rune {
	out := make([]rune, len(input))
	for i, r := range input {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// LoadWords reads one blacklist word per line from every .txt file in dir,
// deduplicated. The filename (e.g. "en.txt") names the dictionary language;
// languages are returned for logging.
func LoadWords(fsys fs.FS, dir string) ([]string, []string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, nil, err
	}

	var languages []string
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, nil, err
		}
		// A scanner copes with \n and \r\n line endings alike.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word != "" {
				unique[word] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, nil, err
		}
	}

	words := make([]string, 0, len(unique))
	for word := range unique {
		words = append(words, word)
	}
	return words, languages, nil
}
