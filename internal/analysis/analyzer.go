// Package analysis turns raw document text into normalised index terms.
// Input is lower-cased, split on non-alphanumeric boundaries, filtered
// against a stop-word list, and stemmed with a suffix-stripping stemmer.
package analysis

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Token is a normalised term and its position in the analysed text.
// Positions are assigned consecutively from 0 over emitted tokens, so
// stop-words consume no position and phrase positions refer to the
// filtered stream.
type Token struct {
	Term     string
	Position int
}

// Analyzer normalises terms and tokenises documents.
type Analyzer struct {
	stopwords map[string]struct{}
}

// New creates an Analyzer. stopwordsPath names a file with one stop-word
// per line; an empty path means no stop-word filtering.
func New(stopwordsPath string) (*Analyzer, error) {
	a := &Analyzer{stopwords: make(map[string]struct{})}
	if stopwordsPath == "" {
		return a, nil
	}
	f, err := os.Open(stopwordsPath)
	if err != nil {
		return nil, fmt.Errorf("opening stopwords file: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			a.stopwords[word] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords file: %w", err)
	}
	return a, nil
}

// Normalize folds a single query term to its index form: lower-cased,
// stripped of non-alphanumerics, and stemmed. Stop-words normalise to the
// empty string.
func (a *Analyzer) Normalize(term string) string {
	word := strings.TrimSpace(fold(term))
	if word == "" {
		return ""
	}
	if _, stop := a.stopwords[word]; stop {
		return ""
	}
	return stem(word)
}

// Tokenize breaks text into stemmed tokens with stop-words removed.
func (a *Analyzer) Tokenize(text string) []Token {
	words := strings.Fields(fold(text))
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if _, stop := a.stopwords[word]; stop {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stem(word),
			Position: pos,
		})
		pos++
	}
	return tokens
}

// fold lower-cases text and replaces every non-alphanumeric rune with a
// space.
func fold(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsUpper(r):
			return unicode.ToLower(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return ' '
		}
	}, text)
}
