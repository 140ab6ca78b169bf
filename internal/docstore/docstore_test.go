package docstore

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	pkgerrors "github.com/quiverdb/quiver/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("hbo.com", "Winter", "winter is coming"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	title, body, err := s.Get("hbo.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if title != "Winter" || body != "winter is coming" {
		t.Fatalf("Get = (%q, %q), want (Winter, winter is coming)", title, body)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.Get("nope"); !errors.Is(err, pkgerrors.ErrDocumentNotFound) {
		t.Fatalf("Get(nope) err = %v, want ErrDocumentNotFound", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("a", "first", "one"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("a", "second", "two"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	title, body, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if title != "second" || body != "two" {
		t.Fatalf("Get after overwrite = (%q, %q), want (second, two)", title, body)
	}
	n, err := s.Count()
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v; want 1", n, err)
	}
}

func TestHasAndKeys(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"b", "a", "c"} {
		if err := s.Put(id, "t", "body"); err != nil {
			t.Fatalf("Put(%q): %v", id, err)
		}
	}
	ok, err := s.Has("a")
	if err != nil || !ok {
		t.Fatalf("Has(a) = %v, %v; want true", ok, err)
	}
	ok, err = s.Has("z")
	if err != nil || ok {
		t.Fatalf("Has(z) = %v, %v; want false", ok, err)
	}
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func TestEmptyTitleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("a", "", "body only"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	title, body, err := s.Get("a")
	if err != nil || title != "" || body != "body only" {
		t.Fatalf("Get = (%q, %q), %v", title, body, err)
	}
}
