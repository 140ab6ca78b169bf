package index

import (
	"errors"
	"reflect"
	"testing"

	pkgerrors "github.com/quiverdb/quiver/pkg/errors"
)

func TestAddPosition(t *testing.T) {
	p := NewPosting("wiki", 1, 2, 4)
	p.AddPosition(3)
	if !reflect.DeepEqual(p.Positions, []int{1, 2, 3, 4}) {
		t.Fatalf("positions = %v, want [1 2 3 4]", p.Positions)
	}
	p.AddPosition(5)
	if !reflect.DeepEqual(p.Positions, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("positions = %v, want [1 2 3 4 5]", p.Positions)
	}

	// Inserting an existing position is a no-op.
	p.AddPosition(3)
	if !reflect.DeepEqual(p.Positions, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("positions after duplicate insert = %v, want [1 2 3 4 5]", p.Positions)
	}

	empty := NewPosting("stuff")
	empty.AddPosition(0)
	if !reflect.DeepEqual(empty.Positions, []int{0}) {
		t.Fatalf("positions = %v, want [0]", empty.Positions)
	}
}

func TestMergePostings(t *testing.T) {
	a := NewPosting("dumdumdum", 1, 3, 4)
	b := NewPosting("dumdumdum", 2, 5, 6)
	merged, err := MergePostings(a, b)
	if err != nil {
		t.Fatalf("MergePostings: %v", err)
	}
	if !reflect.DeepEqual(merged.Positions, []int{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("merged positions = %v, want [1 2 3 4 5 6]", merged.Positions)
	}
	// Inputs are untouched.
	if !reflect.DeepEqual(a.Positions, []int{1, 3, 4}) || !reflect.DeepEqual(b.Positions, []int{2, 5, 6}) {
		t.Fatalf("inputs mutated: a=%v b=%v", a.Positions, b.Positions)
	}

	// Commutative on positions, duplicates collapse.
	x := NewPosting("d", 1, 2, 5)
	y := NewPosting("d", 2, 3)
	xy, _ := MergePostings(x, y)
	yx, _ := MergePostings(y, x)
	if !reflect.DeepEqual(xy.Positions, yx.Positions) {
		t.Fatalf("merge not commutative: %v vs %v", xy.Positions, yx.Positions)
	}
	if !reflect.DeepEqual(xy.Positions, []int{1, 2, 3, 5}) {
		t.Fatalf("merged positions = %v, want [1 2 3 5]", xy.Positions)
	}
}

func TestMergePostingsMismatch(t *testing.T) {
	_, err := MergePostings(NewPosting("a", 1), NewPosting("b", 2))
	if !errors.Is(err, pkgerrors.ErrMergeMismatch) {
		t.Fatalf("err = %v, want ErrMergeMismatch", err)
	}
}

func TestAddPosting(t *testing.T) {
	var pl PostingList
	pl.AddPosting(NewPosting("dog.com", 1, 2, 3))
	if !reflect.DeepEqual(pl.DocIDs(), []string{"dog.com"}) {
		t.Fatalf("doc ids = %v", pl.DocIDs())
	}
	pl.AddPosting(NewPosting("cat.com", 2, 5, 9))
	if !reflect.DeepEqual(pl.DocIDs(), []string{"cat.com", "dog.com"}) {
		t.Fatalf("doc ids = %v, want sorted insert", pl.DocIDs())
	}
	pl.AddPosting(NewPosting("chimp.net", 5, 6))
	if !reflect.DeepEqual(pl.DocIDs(), []string{"cat.com", "chimp.net", "dog.com"}) {
		t.Fatalf("doc ids = %v", pl.DocIDs())
	}

	// Adding an existing doc merges its positions.
	pl.AddPosting(NewPosting("chimp.net", 9, 10))
	if !reflect.DeepEqual(pl.DocIDs(), []string{"cat.com", "chimp.net", "dog.com"}) {
		t.Fatalf("doc ids after merge = %v", pl.DocIDs())
	}
	p, ok := pl.Find("chimp.net")
	if !ok || !reflect.DeepEqual(p.Positions, []int{5, 6, 9, 10}) {
		t.Fatalf("chimp.net positions = %v, want [5 6 9 10]", p.Positions)
	}
}

func TestMergeLists(t *testing.T) {
	plist1 := PostingList{NewPosting("bus.com", 0, 1), NewPosting("truck.com", 5, 6)}
	plist2 := PostingList{NewPosting("car.com", 3, 4), NewPosting("van.com", 7, 8)}

	merged := MergeLists(plist1, plist2)
	want := []string{"bus.com", "car.com", "truck.com", "van.com"}
	if !reflect.DeepEqual(merged.DocIDs(), want) {
		t.Fatalf("doc ids = %v, want %v", merged.DocIDs(), want)
	}

	// Merging a duplicate doc id combines positions.
	merged = MergeLists(merged, PostingList{NewPosting("bus.com", 2)})
	if !reflect.DeepEqual(merged.DocIDs(), want) {
		t.Fatalf("doc ids = %v, want %v", merged.DocIDs(), want)
	}
	if !reflect.DeepEqual(merged[0].Positions, []int{0, 1, 2}) {
		t.Fatalf("bus.com positions = %v, want [0 1 2]", merged[0].Positions)
	}
}

func TestMergeListsIdentity(t *testing.T) {
	pl := PostingList{NewPosting("a", 1), NewPosting("b", 2, 3)}
	if got := MergeLists(pl, nil); !reflect.DeepEqual(got, pl) {
		t.Fatalf("merge with empty = %v, want %v", got, pl)
	}
	if got := MergeLists(nil, pl); !reflect.DeepEqual(got, pl) {
		t.Fatalf("merge empty with list = %v, want %v", got, pl)
	}
}
