package engine

import "strings"

// Results carries query matches as three parallel sequences. Callers must
// treat the ordering as unspecified beyond set-equality of DocIDs.
type Results struct {
	DocIDs   []string `json:"doc_ids"`
	Titles   []string `json:"doc_titles"`
	Snippets []string `json:"snippets"`
}

// Len returns the number of matched documents.
func (r Results) Len() int {
	return len(r.DocIDs)
}

const snippetRadius = 60

// snippet renders a short excerpt of body around the first occurrence of
// any of the given terms. Positions index the analysed token stream, not
// the raw text, so the excerpt is located by a case-insensitive substring
// scan of the original body instead.
func snippet(body string, terms []string) string {
	if body == "" {
		return ""
	}
	lower := strings.ToLower(body)
	at := -1
	for _, term := range terms {
		if term == "" {
			continue
		}
		if i := strings.Index(lower, strings.ToLower(term)); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		at = 0
	}
	start := at - snippetRadius
	if start < 0 {
		start = 0
	}
	end := at + snippetRadius
	if end > len(body) {
		end = len(body)
	}
	excerpt := strings.TrimSpace(body[start:end])
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(body) {
		excerpt += "..."
	}
	return excerpt
}
