package index

import "sort"

// FindPhrases intersects the given posting lists, one per phrase term in
// order, and returns a PostingList whose positions are the start positions
// of every occurrence of the exact phrase.
//
// A forward index of candidate start positions is seeded from the first
// list; each subsequent list i prunes it against its positions shifted back
// by i. Candidate state only shrinks after the first list, so intermediate
// memory is bounded by the first list's size.
func FindPhrases(lists []PostingList) PostingList {
	if len(lists) == 0 {
		return nil
	}

	// doc id -> candidate phrase-start positions.
	starts := make(map[string]map[int]struct{}, len(lists[0]))
	for _, p := range lists[0] {
		set := make(map[int]struct{}, len(p.Positions))
		for _, pos := range p.Positions {
			set[pos] = struct{}{}
		}
		starts[p.DocID] = set
	}

	for i := 1; i < len(lists); i++ {
		seen := make(map[string]struct{}, len(lists[i]))
		for _, p := range lists[i] {
			seen[p.DocID] = struct{}{}
			cand, ok := starts[p.DocID]
			if !ok {
				continue
			}
			// The i-th term of a phrase occurs i spots after the
			// phrase start, so p's positions shifted back by i are
			// the starts it can confirm.
			offsets := make(map[int]struct{}, len(p.Positions))
			for _, pos := range p.Positions {
				offsets[pos-i] = struct{}{}
			}
			for pos := range cand {
				if _, ok := offsets[pos]; !ok {
					delete(cand, pos)
				}
			}
			if len(cand) == 0 {
				delete(starts, p.DocID)
			}
		}
		// Documents where the i-th term does not occur at all cannot
		// contain the phrase.
		for docID := range starts {
			if _, ok := seen[docID]; !ok {
				delete(starts, docID)
			}
		}
	}

	result := make(PostingList, 0, len(starts))
	for docID, set := range starts {
		positions := make([]int, 0, len(set))
		for pos := range set {
			positions = append(positions, pos)
		}
		sort.Ints(positions)
		result = append(result, Posting{DocID: docID, Positions: positions})
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].DocID < result[b].DocID
	})
	return result
}
