package indexer

import (
	"path/filepath"
	"testing"

	"github.com/standardbeagle/mrsdb/internal/docstore"
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/lexicon"
	"github.com/standardbeagle/mrsdb/internal/pagecache"
	"github.com/standardbeagle/mrsdb/internal/tokenizer"
)

// ftKey mirrors the indexer's own stem+normalize pipeline so fixtures
// stay correct regardless of the stemmer's exact output.
func ftKey(term string) []byte {
	return []byte(tokenizer.Stem(tokenizer.Normalize(term)))
}

func newTestIndexer(t *testing.T) (*Indexer, map[string]*index.Index, *index.Index) {
	t.Helper()
	dir := t.TempDir()
	cache := pagecache.New(256, 4096)

	store, err := docstore.Create(cache, filepath.Join(dir, "docs.data"), filepath.Join(dir, "docs.index"), 4096)
	if err != nil {
		t.Fatalf("docstore.Create: %v", err)
	}

	fullText, err := index.Create(cache, filepath.Join(dir, "full-text"), index.KindCharWeighted, 4096)
	if err != nil {
		t.Fatalf("index.Create full-text: %v", err)
	}

	lex := lexicon.New()
	x := New(lex, store, fullText, filepath.Join(dir, "scratch"), nil)

	fields := make(map[string]*index.Index)
	mk := func(name string, kind index.Kind) *index.Index {
		ix, err := index.Create(cache, filepath.Join(dir, name), kind, 4096)
		if err != nil {
			t.Fatalf("index.Create %s: %v", name, err)
		}
		fields[name] = ix
		return ix
	}

	x.AddField(FieldSpec{Name: "title", Kind: FieldToken}, mk("title", index.KindCharMulti))
	x.AddField(FieldSpec{Name: "sequence", Kind: FieldToken, IDL: true}, mk("sequence", index.KindCharMultiIDL))
	x.AddField(FieldSpec{Name: "year", Kind: FieldValueUnique}, mk("year", index.KindNumber))
	x.AddField(FieldSpec{Name: "citation", Kind: FieldValueMulti}, mk("citation", index.KindNumberMulti))
	x.AddField(FieldSpec{Name: "xref", Kind: FieldLink}, mk("xref", index.KindLink))

	return x, fields, fullText
}

func TestIndexerAddDocumentAndFinish(t *testing.T) {
	x, fields, fullText := newTestIndexer(t)

	err := x.AddDocument(InputDocument{
		DocNr: 1,
		Text:  []byte("first document text"),
		Tokens: map[string][]string{
			"title":    {"kinase", "activity"},
			"sequence": {"kinase", "kinase", "domain"},
		},
		Values:      map[string]string{"year": "2001"},
		MultiValues: map[string][]string{"citation": {"100", "101"}},
		Links:       map[string][]string{"xref": {"p12345"}},
	})
	if err != nil {
		t.Fatalf("AddDocument doc1: %v", err)
	}

	err = x.AddDocument(InputDocument{
		DocNr: 2,
		Text:  []byte("second document text"),
		Tokens: map[string][]string{
			"title":    {"kinase"},
			"sequence": {"domain", "domain", "domain"},
		},
		Values:      map[string]string{"year": "2005"},
		MultiValues: map[string][]string{"citation": {"101"}},
		Links:       map[string][]string{"xref": {"p99999"}},
	})
	if err != nil {
		t.Fatalf("AddDocument doc2: %v", err)
	}

	if err := x.Finish(2); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	titleDocs, err := fields["title"].Docs(ftKey("kinase"))
	if err != nil {
		t.Fatalf("title.Docs: %v", err)
	}
	if len(titleDocs) != 2 || titleDocs[0] != 1 || titleDocs[1] != 2 {
		t.Errorf("title kinase docs = %v, want [1 2]", titleDocs)
	}

	seqDocs, err := fields["sequence"].Docs(ftKey("domain"))
	if err != nil {
		t.Fatalf("sequence.Docs: %v", err)
	}
	if len(seqDocs) != 2 || seqDocs[0] != 1 || seqDocs[1] != 2 {
		t.Errorf("sequence domain docs = %v, want [1 2]", seqDocs)
	}

	yearDocs, err := fields["year"].Docs([]byte("2001"))
	if err != nil {
		t.Fatalf("year.Docs: %v", err)
	}
	if len(yearDocs) != 1 || yearDocs[0] != 1 {
		t.Errorf("year 2001 docs = %v, want [1]", yearDocs)
	}

	citationDocs, err := fields["citation"].Docs([]byte("101"))
	if err != nil {
		t.Fatalf("citation.Docs: %v", err)
	}
	if len(citationDocs) != 2 || citationDocs[0] != 1 || citationDocs[1] != 2 {
		t.Errorf("citation 101 docs = %v, want [1 2]", citationDocs)
	}

	xrefDocs, err := fields["xref"].Docs([]byte("p12345"))
	if err != nil {
		t.Fatalf("xref.Docs: %v", err)
	}
	if len(xrefDocs) != 1 || xrefDocs[0] != 1 {
		t.Errorf("xref p12345 docs = %v, want [1]", xrefDocs)
	}

	ps, _, err := fullText.WeightedPostings(ftKey("kinase"))
	if err != nil {
		t.Fatalf("fullText.WeightedPostings: %v", err)
	}
	if len(ps) != 2 {
		t.Errorf("full-text kinase postings = %v, want 2 docs", ps)
	}

	if len(x.DocWeights) != 3 {
		t.Fatalf("len(DocWeights) = %d, want 3", len(x.DocWeights))
	}
	if x.DocWeights[1] <= 0 || x.DocWeights[2] <= 0 {
		t.Errorf("DocWeights = %v, want positive weight for docs 1 and 2", x.DocWeights)
	}

	if ix, ok := x.FieldIndex("citation"); !ok || ix != 3 {
		t.Errorf("FieldIndex(citation) = (%d, %v), want (3, true)", ix, ok)
	}
}

func TestIndexerFieldWithoutValueIsSkipped(t *testing.T) {
	x, fields, _ := newTestIndexer(t)
	if err := x.AddDocument(InputDocument{DocNr: 1, Text: []byte("no attributes here")}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := x.Finish(1); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	docs, err := fields["year"].Docs([]byte("2001"))
	if err != nil {
		t.Fatalf("year.Docs: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no docs for unset year field, got %v", docs)
	}
}
