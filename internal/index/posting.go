// Package index implements the positional posting algebra and the two
// segment halves of the inverted index. A Posting records the sorted
// occurrence positions of one term in one document, a PostingList keeps
// Postings in ascending document-id order, and the memory and disk segments
// map terms to PostingLists.
package index

import (
	"fmt"
	"sort"

	"github.com/quiverdb/quiver/pkg/errors"
)

// Posting records a single document's occurrence positions for a term.
// Positions are strictly ascending and never empty.
type Posting struct {
	DocID     string
	Positions []int
}

// NewPosting creates a Posting with its own copy of the given positions.
// The positions must already be sorted ascending without duplicates.
func NewPosting(docID string, positions ...int) Posting {
	return Posting{
		DocID:     docID,
		Positions: append([]int(nil), positions...),
	}
}

// AddPosition inserts position into the sorted position list iff it is not
// already present.
func (p *Posting) AddPosition(position int) {
	i := sort.SearchInts(p.Positions, position)
	if i < len(p.Positions) && p.Positions[i] == position {
		return
	}
	p.Positions = append(p.Positions, 0)
	copy(p.Positions[i+1:], p.Positions[i:])
	p.Positions[i] = position
}

// Clone returns a Posting with an independent position slice.
func (p Posting) Clone() Posting {
	return NewPosting(p.DocID, p.Positions...)
}

// MergePostings returns a new Posting whose positions are the sorted
// set-union of a's and b's. Both inputs must refer to the same document.
func MergePostings(a, b Posting) (Posting, error) {
	if a.DocID != b.DocID {
		return Posting{}, fmt.Errorf("%w: %q vs %q", errors.ErrMergeMismatch, a.DocID, b.DocID)
	}
	merged := make([]int, 0, len(a.Positions)+len(b.Positions))
	i, j := 0, 0
	for i < len(a.Positions) && j < len(b.Positions) {
		switch {
		case a.Positions[i] < b.Positions[j]:
			merged = append(merged, a.Positions[i])
			i++
		case a.Positions[i] > b.Positions[j]:
			merged = append(merged, b.Positions[j])
			j++
		default:
			merged = append(merged, a.Positions[i])
			i++
			j++
		}
	}
	merged = append(merged, a.Positions[i:]...)
	merged = append(merged, b.Positions[j:]...)
	return Posting{DocID: a.DocID, Positions: merged}, nil
}

// PostingList is a sequence of Postings in strictly ascending DocID order,
// at most one Posting per document.
type PostingList []Posting

// AddPosting inserts p at its doc-id position, merging positions if a
// Posting for the same document already exists.
func (pl *PostingList) AddPosting(p Posting) {
	list := *pl
	i := sort.Search(len(list), func(k int) bool {
		return list[k].DocID >= p.DocID
	})
	if i < len(list) && list[i].DocID == p.DocID {
		merged, _ := MergePostings(list[i], p)
		list[i] = merged
		return
	}
	list = append(list, Posting{})
	copy(list[i+1:], list[i:])
	list[i] = p.Clone()
	*pl = list
}

// DocIDs returns the document ids of the list in ascending order.
func (pl PostingList) DocIDs() []string {
	ids := make([]string, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}

// Find returns the Posting for docID, if present.
func (pl PostingList) Find(docID string) (Posting, bool) {
	i := sort.Search(len(pl), func(k int) bool {
		return pl[k].DocID >= docID
	})
	if i < len(pl) && pl[i].DocID == docID {
		return pl[i], true
	}
	return Posting{}, false
}

// Clone returns a deep copy of the list.
func (pl PostingList) Clone() PostingList {
	out := make(PostingList, len(pl))
	for i, p := range pl {
		out[i] = p.Clone()
	}
	return out
}

// MergeLists merges two posting lists into a new list, combining the
// positions of postings that share a document id.
func MergeLists(x, y PostingList) PostingList {
	merged := make(PostingList, 0, len(x)+len(y))
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i].DocID < y[j].DocID:
			merged = append(merged, x[i].Clone())
			i++
		case x[i].DocID > y[j].DocID:
			merged = append(merged, y[j].Clone())
			j++
		default:
			m, _ := MergePostings(x[i], y[j])
			merged = append(merged, m)
			i++
			j++
		}
	}
	for ; i < len(x); i++ {
		merged = append(merged, x[i].Clone())
	}
	for ; j < len(y); j++ {
		merged = append(merged, y[j].Clone())
	}
	return merged
}
