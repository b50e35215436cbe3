package docstore

import (
	"bytes"
	"path/filepath"
	"testing"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/pagecache"
)

func newTestStore(t *testing.T) (*pagecache.Cache, string, string) {
	t.Helper()
	dir := t.TempDir()
	return pagecache.New(64, 512), filepath.Join(dir, "data"), filepath.Join(dir, "data.idx")
}

func TestStoreAndFetchRoundTrip(t *testing.T) {
	cache, dataPath, idxPath := newTestStore(t)
	s, err := Create(cache, dataPath, idxPath, 512)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	attrs := []Attribute{{Name: "id", Value: "P00001"}, {Name: "title", Value: "alpha kinase"}}
	links := map[string][]string{"uniprot": {"P12345", "P67890"}}
	text := []byte("this is the body text of the record, repeated to force more than one page. " +
		"this is the body text of the record, repeated to force more than one page.")

	if err := s.Store(1, attrs, links, text); err != nil {
		t.Fatalf("Store: %v", err)
	}

	doc, ok, err := s.Fetch(1)
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(doc.Text, text) {
		t.Errorf("Text = %q, want %q", doc.Text, text)
	}
	if len(doc.Attributes) != 2 || doc.Attributes[0].Value != "P00001" {
		t.Errorf("Attributes = %+v", doc.Attributes)
	}
	if len(doc.Links["uniprot"]) != 2 {
		t.Errorf("Links = %+v", doc.Links)
	}
}

func TestFetchMissingDocument(t *testing.T) {
	cache, dataPath, idxPath := newTestStore(t)
	s, err := Create(cache, dataPath, idxPath, 512)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, ok, err := s.Fetch(42)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ok {
		t.Error("expected miss for unstored docNr")
	}
}

func TestReopenPreservesDocuments(t *testing.T) {
	cache, dataPath, idxPath := newTestStore(t)
	s, err := Create(cache, dataPath, idxPath, 512)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.RegisterAttribute("id"); err != nil {
		t.Fatalf("RegisterAttribute: %v", err)
	}
	if err := s.Store(1, []Attribute{{Name: "id", Value: "Q1"}}, nil, []byte("hello world")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.Store(2, []Attribute{{Name: "id", Value: "Q2"}}, nil, []byte("goodbye world")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reopened, err := Open(pagecache.New(64, 512), dataPath, idxPath, 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Size() != 2 {
		t.Fatalf("Size after reopen = %d, want 2", reopened.Size())
	}
	doc, ok, err := reopened.Fetch(2)
	if err != nil || !ok {
		t.Fatalf("Fetch after reopen: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(doc.Text, []byte("goodbye world")) {
		t.Errorf("Text after reopen = %q", doc.Text)
	}
	if doc.Attributes[0].Name != "id" || doc.Attributes[0].Value != "Q2" {
		t.Errorf("Attributes after reopen = %+v", doc.Attributes)
	}
}

func TestStoreFragmentsAcrossManyPages(t *testing.T) {
	cache, dataPath, idxPath := newTestStore(t)
	s, err := Create(cache, dataPath, idxPath, 256)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	big := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 50)
	if err := s.Store(1, nil, nil, big); err != nil {
		t.Fatalf("Store: %v", err)
	}
	doc, ok, err := s.Fetch(1)
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(doc.Text, big) {
		t.Errorf("fragmented round trip mismatch: got %d bytes, want %d", len(doc.Text), len(big))
	}
}

func TestRegisterAttributeOverflow(t *testing.T) {
	cache, dataPath, idxPath := newTestStore(t)
	s, err := Create(cache, dataPath, idxPath, 512)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < maxAttrs; i++ {
		name := "attr" + string(rune('A'+i%26)) + string(rune('a'+(i/26)%26))
		if _, err := s.RegisterAttribute(name); err != nil {
			t.Fatalf("RegisterAttribute(%d): %v", i, err)
		}
	}
	if _, err := s.RegisterAttribute("one-too-many"); !mrserrors.IsKind(err, mrserrors.KindOverflow) {
		t.Fatalf("expected KindOverflow, got %v", err)
	}
}

func TestIsUnsupportedErase(t *testing.T) {
	if !mrserrors.IsKind(mrserrors.NewUnsupportedError("docstore.Erase"), mrserrors.KindUnsupported) {
		t.Fatal("expected KindUnsupported")
	}
}
