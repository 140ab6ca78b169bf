package index

import "sort"

// MemorySegment buffers term postings in memory until the engine merges
// them into the disk segment. It tracks an approximate packed byte size
// (4 bytes per posting header plus 4 per position, term strings excluded)
// that the engine uses as its flush trigger.
type MemorySegment struct {
	index map[string]*PostingList
	size  int64
}

// NewMemorySegment creates an empty MemorySegment.
func NewMemorySegment() *MemorySegment {
	return &MemorySegment{
		index: make(map[string]*PostingList),
	}
}

// AddToken records that term occurred in docID at the given position.
func (m *MemorySegment) AddToken(term, docID string, position int) {
	m.postingList(term).AddPosting(Posting{DocID: docID, Positions: []int{position}})
	m.size += 8
}

// AddPosting merges the given posting into the term's posting list.
func (m *MemorySegment) AddPosting(term string, p Posting) {
	m.postingList(term).AddPosting(p)
	m.size += 4 + 4*int64(len(p.Positions))
}

// postingList returns the term's posting list, creating it on first use.
// Mutation paths only; query paths must not insert entries.
func (m *MemorySegment) postingList(term string) *PostingList {
	pl, ok := m.index[term]
	if !ok {
		pl = &PostingList{}
		m.index[term] = pl
	}
	return pl
}

// lookup returns the term's posting list without creating an entry.
func (m *MemorySegment) lookup(term string) PostingList {
	if pl, ok := m.index[term]; ok {
		return *pl
	}
	return nil
}

// Size returns the approximate packed size in bytes of all buffered
// postings. It is non-decreasing until Clear.
func (m *MemorySegment) Size() int64 {
	return m.size
}

// Terms returns the number of distinct terms buffered.
func (m *MemorySegment) Terms() int {
	return len(m.index)
}

// OneWordQuery returns the ids of documents containing term, ascending.
func (m *MemorySegment) OneWordQuery(term string) []string {
	return m.lookup(term).DocIDs()
}

// PhraseQuery returns the ids of documents containing the exact phrase,
// ascending. Unknown terms contribute empty posting lists.
func (m *MemorySegment) PhraseQuery(terms []string) []string {
	lists := make([]PostingList, len(terms))
	for i, term := range terms {
		lists[i] = m.lookup(term)
	}
	return FindPhrases(lists).DocIDs()
}

// MergeIntoDisk merges every buffered posting list into the disk segment.
// The buffer is left intact; callers clear it only after a fully
// successful merge so that a failed flush can be retried.
func (m *MemorySegment) MergeIntoDisk(disk *DiskSegment) error {
	terms := make([]string, 0, len(m.index))
	for term := range m.index {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		if err := disk.MergePostingList(term, *m.index[term]); err != nil {
			return err
		}
	}
	return nil
}

// Clear discards all buffered postings and resets the size estimate.
func (m *MemorySegment) Clear() {
	m.index = make(map[string]*PostingList)
	m.size = 0
}
