package index

import (
	"reflect"
	"testing"
)

func TestFindPhrasesEmptyInput(t *testing.T) {
	if got := FindPhrases(nil); len(got) != 0 {
		t.Fatalf("FindPhrases(nil) = %v, want empty", got)
	}
	if got := FindPhrases([]PostingList{}); len(got) != 0 {
		t.Fatalf("FindPhrases([]) = %v, want empty", got)
	}
}

func TestFindPhrasesSingleList(t *testing.T) {
	pl := PostingList{NewPosting("a", 1, 4), NewPosting("b", 2)}
	got := FindPhrases([]PostingList{pl})
	if !reflect.DeepEqual(got, pl) {
		t.Fatalf("FindPhrases single list = %v, want %v", got, pl)
	}
}

func TestFindPhrasesPositionalRuns(t *testing.T) {
	x := PostingList{NewPosting("1", 2, 5), NewPosting("2", 2)}
	y := PostingList{NewPosting("1", 6)}
	z := PostingList{NewPosting("1", 7), NewPosting("2", 3)}

	got := FindPhrases([]PostingList{x, y, z})
	want := PostingList{NewPosting("1", 5)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindPhrases = %v, want %v", got, want)
	}
}

func TestFindPhrasesMultiDoc(t *testing.T) {
	winter := PostingList{
		NewPosting("disney.com", 1, 4),
		NewPosting("hbo.com", 0, 5),
		NewPosting("patagonia.com", 2),
	}
	is := PostingList{
		NewPosting("hbo.com", 1),
		NewPosting("wikipedia.org", 3, 10),
	}
	coming := PostingList{
		NewPosting("hbo.com", 2, 4),
		NewPosting("patagonia.com", 4),
	}

	got := FindPhrases([]PostingList{winter, is, coming})
	want := PostingList{NewPosting("hbo.com", 0)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindPhrases = %v, want %v", got, want)
	}
}

func TestFindPhrasesRepeatedPhrase(t *testing.T) {
	// "winter x is coming winter is coming": only the second occurrence
	// of "winter" starts the phrase.
	winter := PostingList{NewPosting("hbo.com", 0, 4)}
	is := PostingList{NewPosting("hbo.com", 2, 5)}
	coming := PostingList{NewPosting("hbo.com", 3, 6)}

	got := FindPhrases([]PostingList{winter, is, coming})
	want := PostingList{NewPosting("hbo.com", 4)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindPhrases = %v, want %v", got, want)
	}
}

func TestFindPhrasesReversedOrder(t *testing.T) {
	winter := PostingList{NewPosting("hbo.com", 0)}
	is := PostingList{NewPosting("hbo.com", 1)}
	coming := PostingList{NewPosting("hbo.com", 2)}

	if got := FindPhrases([]PostingList{coming, is, winter}); len(got) != 0 {
		t.Fatalf("reversed phrase = %v, want empty", got)
	}
	got := FindPhrases([]PostingList{winter, is, coming})
	want := PostingList{NewPosting("hbo.com", 0)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("forward phrase = %v, want %v", got, want)
	}
}

func TestFindPhrasesMissingTerm(t *testing.T) {
	winter := PostingList{NewPosting("hbo.com", 0)}
	got := FindPhrases([]PostingList{winter, nil})
	if len(got) != 0 {
		t.Fatalf("phrase with empty middle list = %v, want empty", got)
	}
}
