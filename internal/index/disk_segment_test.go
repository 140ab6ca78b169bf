package index

import (
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	bolt "go.etcd.io/bbolt"

	pkgerrors "github.com/quiverdb/quiver/pkg/errors"
)

func openTestSegment(t *testing.T) *DiskSegment {
	t.Helper()
	d, err := OpenDiskSegment(filepath.Join(t.TempDir(), "seg.db"))
	if err != nil {
		t.Fatalf("OpenDiskSegment: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDiskSegmentMergeAndQueries(t *testing.T) {
	d := openTestSegment(t)

	plist1 := PostingList{NewPosting("bus.com", 0, 1), NewPosting("truck.com", 5, 6)}
	plist2 := PostingList{NewPosting("car.com", 3, 4), NewPosting("van.com", 7, 8)}

	if err := d.MergePostingList("vehicle", plist1); err != nil {
		t.Fatalf("MergePostingList: %v", err)
	}
	ids, err := d.OneWordQuery("vehicle")
	if err != nil {
		t.Fatalf("OneWordQuery: %v", err)
	}
	if want := []string{"bus.com", "truck.com"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	// A second merge under the same term interleaves by doc id.
	if err := d.MergePostingList("vehicle", plist2); err != nil {
		t.Fatalf("MergePostingList: %v", err)
	}
	ids, err = d.OneWordQuery("vehicle")
	if err != nil {
		t.Fatalf("OneWordQuery: %v", err)
	}
	if want := []string{"bus.com", "car.com", "truck.com", "van.com"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	// Unknown terms yield no matches and no error.
	ids, err = d.OneWordQuery("plane")
	if err != nil {
		t.Fatalf("OneWordQuery(plane): %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids for unknown term = %v, want empty", ids)
	}
}

func TestDiskSegmentMergeIdempotent(t *testing.T) {
	d := openTestSegment(t)
	pl := PostingList{NewPosting("hbo.com", 0, 5), NewPosting("patagonia.com", 2)}

	if err := d.MergePostingList("winter", pl); err != nil {
		t.Fatalf("MergePostingList: %v", err)
	}
	if err := d.MergePostingList("winter", pl); err != nil {
		t.Fatalf("MergePostingList (repeat): %v", err)
	}

	ids, err := d.OneWordQuery("winter")
	if err != nil {
		t.Fatalf("OneWordQuery: %v", err)
	}
	if want := []string{"hbo.com", "patagonia.com"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids after repeated merge = %v, want %v", ids, want)
	}
}

func TestDiskSegmentHasAndKeys(t *testing.T) {
	d := openTestSegment(t)
	for _, term := range []string{"bus", "car", "truck", "van"} {
		if err := d.MergePostingList(term, PostingList{NewPosting(term+".com", 0)}); err != nil {
			t.Fatalf("MergePostingList(%q): %v", term, err)
		}
	}

	ok, err := d.Has("bus")
	if err != nil || !ok {
		t.Fatalf("Has(bus) = %v, %v; want true", ok, err)
	}
	ok, err = d.Has("plane")
	if err != nil || ok {
		t.Fatalf("Has(plane) = %v, %v; want false", ok, err)
	}

	keys, err := d.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if want := []string{"bus", "car", "truck", "van"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}

	n, err := d.Terms()
	if err != nil || n != 4 {
		t.Fatalf("Terms = %d, %v; want 4", n, err)
	}
}

func TestDiskSegmentPhraseQuery(t *testing.T) {
	d := openTestSegment(t)

	merge := func(term string, pl PostingList) {
		t.Helper()
		if err := d.MergePostingList(term, pl); err != nil {
			t.Fatalf("MergePostingList(%q): %v", term, err)
		}
	}
	merge("winter", PostingList{
		NewPosting("disney.com", 1, 4),
		NewPosting("hbo.com", 0, 5),
		NewPosting("patagonia.com", 2),
	})
	merge("is", PostingList{
		NewPosting("hbo.com", 1),
		NewPosting("patagonia.com", 5),
		NewPosting("wikipedia.org", 3, 10),
	})
	merge("coming", PostingList{
		NewPosting("hbo.com", 2, 4),
		NewPosting("patagonia.com", 4),
	})

	ids, err := d.PhraseQuery([]string{"winter", "is", "coming"})
	if err != nil {
		t.Fatalf("PhraseQuery: %v", err)
	}
	if want := []string{"hbo.com"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("PhraseQuery = %v, want %v", ids, want)
	}

	ids, err = d.PhraseQuery([]string{"coming", "is", "winter"})
	if err != nil {
		t.Fatalf("PhraseQuery (reversed): %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("reversed PhraseQuery = %v, want empty", ids)
	}

	// A phrase containing an unindexed term matches nothing.
	ids, err = d.PhraseQuery([]string{"winter", "storm"})
	if err != nil {
		t.Fatalf("PhraseQuery (missing term): %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("PhraseQuery with unknown term = %v, want empty", ids)
	}
}

func TestDiskSegmentCorruptValue(t *testing.T) {
	d := openTestSegment(t)
	if err := d.MergePostingList("good", PostingList{NewPosting("a", 0)}); err != nil {
		t.Fatalf("MergePostingList: %v", err)
	}

	// Plant an undecodable value next to a healthy one.
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(postingsBucket).Put([]byte("bad"), []byte{0xff, 0x01})
	})
	if err != nil {
		t.Fatalf("planting corrupt value: %v", err)
	}

	if _, err := d.OneWordQuery("bad"); !errors.Is(err, pkgerrors.ErrCorrupt) {
		t.Fatalf("OneWordQuery(bad) err = %v, want ErrCorrupt", err)
	}
	// Corruption is scoped to the affected term.
	ids, err := d.OneWordQuery("good")
	if err != nil {
		t.Fatalf("OneWordQuery(good): %v", err)
	}
	if want := []string{"a"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}

func TestPostingListCodecRoundTrip(t *testing.T) {
	pl := PostingList{
		NewPosting("bus.com", 0, 1),
		NewPosting("hbo.com", 4),
		NewPosting("wikipedia.org", 3, 10, 250),
	}
	decoded, err := DecodePostingList(EncodePostingList(pl))
	if err != nil {
		t.Fatalf("DecodePostingList: %v", err)
	}
	if !reflect.DeepEqual(decoded, pl) {
		t.Fatalf("round trip = %v, want %v", decoded, pl)
	}

	decoded, err = DecodePostingList(EncodePostingList(nil))
	if err != nil {
		t.Fatalf("DecodePostingList(empty): %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("decoded empty list = %v, want empty", decoded)
	}
}

func TestDecodePostingListTruncated(t *testing.T) {
	encoded := EncodePostingList(PostingList{NewPosting("bus.com", 0, 1)})
	for _, cut := range []int{1, 5, len(encoded) - 1} {
		if _, err := DecodePostingList(encoded[:cut]); !errors.Is(err, pkgerrors.ErrCorrupt) {
			t.Fatalf("DecodePostingList(cut=%d) err = %v, want ErrCorrupt", cut, err)
		}
	}
	if _, err := DecodePostingList(append(encoded[:len(encoded):len(encoded)], 0x00)); !errors.Is(err, pkgerrors.ErrCorrupt) {
		t.Fatalf("trailing byte not rejected")
	}
}
