package query

import (
	"path/filepath"
	"testing"

	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/pagecache"
	"github.com/standardbeagle/mrsdb/internal/postings"
	"github.com/standardbeagle/mrsdb/internal/tokenizer"
)

// ftKey mirrors termKey's stemming for the char-weighted kind, so the
// fixture's on-disk keys match what a real lookup would ask for.
func ftKey(term string) []byte {
	return []byte(tokenizer.Stem(tokenizer.Normalize(term)))
}

type testProvider map[string]*index.Index

func (p testProvider) Index(field string) (*index.Index, bool) {
	ix, ok := p[field]
	return ix, ok
}

func newTestCorpus(t *testing.T) (testProvider, uint32) {
	t.Helper()
	cache := pagecache.New(256, 4096)
	dir := t.TempDir()

	fullText, err := index.Create(cache, filepath.Join(dir, "full-text"), index.KindCharWeighted, 4096)
	if err != nil {
		t.Fatalf("Create full-text: %v", err)
	}
	// doc 1: "kinase" strong, "protein" weak; doc 2: "kinase" weak;
	// doc 3: "protein" strong.
	if err := fullText.PutWeighted(ftKey("kinase"),
		[]postings.Posting{{Doc: 1, Weight: 200}, {Doc: 2, Weight: 20}}, 255); err != nil {
		t.Fatalf("PutWeighted kinase: %v", err)
	}
	if err := fullText.PutWeighted(ftKey("protein"),
		[]postings.Posting{{Doc: 1, Weight: 30}, {Doc: 3, Weight: 220}}, 255); err != nil {
		t.Fatalf("PutWeighted protein: %v", err)
	}

	organism, err := index.Create(cache, filepath.Join(dir, "organism"), index.KindCharMulti, 4096)
	if err != nil {
		t.Fatalf("Create organism: %v", err)
	}
	if err := organism.PutMulti(ftKey("human"), []uint32{1, 2}); err != nil {
		t.Fatalf("PutMulti human: %v", err)
	}
	if err := organism.PutMulti(ftKey("mouse"), []uint32{3}); err != nil {
		t.Fatalf("PutMulti mouse: %v", err)
	}

	year, err := index.Create(cache, filepath.Join(dir, "year"), index.KindNumberMulti, 4096)
	if err != nil {
		t.Fatalf("Create year: %v", err)
	}
	if err := year.PutMulti([]byte("2001"), []uint32{1}); err != nil {
		t.Fatalf("PutMulti 2001: %v", err)
	}
	if err := year.PutMulti([]byte("2005"), []uint32{2, 3}); err != nil {
		t.Fatalf("PutMulti 2005: %v", err)
	}

	p := testProvider{"": fullText, "organism": organism, "year": year}
	return p, 3
}

func TestParseAndEvalBooleanFieldEquality(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	q, err := Parse(`organism:human`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}
	bm, err := ex.EvalBoolean(q)
	if err != nil {
		t.Fatalf("EvalBoolean: %v", err)
	}
	docs := bm.Docs()
	if len(docs) != 2 || docs[0] != 1 || docs[1] != 2 {
		t.Fatalf("docs = %v, want [1 2]", docs)
	}
}

func TestParseAndEvalBooleanAndOrNot(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}

	q, err := Parse(`organism:human AND NOT year:2001`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bm, err := ex.EvalBoolean(q)
	if err != nil {
		t.Fatalf("EvalBoolean: %v", err)
	}
	docs := bm.Docs()
	if len(docs) != 1 || docs[0] != 2 {
		t.Fatalf("docs = %v, want [2]", docs)
	}

	q2, err := Parse(`organism:mouse OR year:2001`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bm2, err := ex.EvalBoolean(q2)
	if err != nil {
		t.Fatalf("EvalBoolean: %v", err)
	}
	docs2 := bm2.Docs()
	if len(docs2) != 2 || docs2[0] != 1 || docs2[1] != 3 {
		t.Fatalf("docs = %v, want [1 3]", docs2)
	}
}

func TestParseDocNrSingleton(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}
	q, err := Parse(`#2`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bm, err := ex.EvalBoolean(q)
	if err != nil {
		t.Fatalf("EvalBoolean: %v", err)
	}
	docs := bm.Docs()
	if len(docs) != 1 || docs[0] != 2 {
		t.Fatalf("docs = %v, want [2]", docs)
	}
}

func TestParseRangeQuery(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}
	q, err := Parse(`year:2001/2005`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bm, err := ex.EvalBoolean(q)
	if err != nil {
		t.Fatalf("EvalBoolean: %v", err)
	}
	if bm.Count() != 3 {
		t.Fatalf("Count = %d, want 3", bm.Count())
	}
}

func TestParseBetweenSugar(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}
	q, err := Parse(`year BETWEEN 2001 AND 2005`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bm, err := ex.EvalBoolean(q)
	if err != nil {
		t.Fatalf("EvalBoolean: %v", err)
	}
	if bm.Count() != 3 {
		t.Fatalf("Count = %d, want 3", bm.Count())
	}
}

func TestBareWordsCollectedAsTerms(t *testing.T) {
	q, err := Parse(`kinase protein organism:human`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(q.Terms) != 2 || q.Terms[0] != "kinase" || q.Terms[1] != "protein" {
		t.Fatalf("Terms = %v, want [kinase protein]", q.Terms)
	}
	if !q.HasFieldFilter {
		t.Error("expected HasFieldFilter true")
	}
}

type constWeights struct{ w float64 }

func (c constWeights) Weight(doc uint32) float64 { return c.w }

func TestRankOrdersByAccumulatedScore(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}
	q, err := Parse(`kinase`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := ex.Rank(q, constWeights{w: 1}, RankedOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].Doc != 1 {
		t.Errorf("top hit = %+v, want doc 1 (higher weight)", hits[0])
	}
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Rank < hits[i].Rank {
			t.Fatalf("hits not sorted descending: %v", hits)
		}
	}
}

func TestRankAllRequiredExcludesPartialMatches(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}
	q, err := Parse(`kinase protein`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := ex.Rank(q, constWeights{w: 1}, RankedOptions{AllRequired: true, Limit: 10})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for _, h := range hits {
		if h.Doc != 1 {
			t.Errorf("doc %d should not qualify for allRequired (only doc 1 has both terms)", h.Doc)
		}
	}
}

func TestRankWithBooleanFilter(t *testing.T) {
	providers, maxDoc := newTestCorpus(t)
	ex := &Executor{Indexes: providers, MaxDocNr: maxDoc}
	q, err := Parse(`kinase AND organism:mouse`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hits, err := ex.Rank(q, constWeights{w: 1}, RankedOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for _, h := range hits {
		if h.Doc != 3 {
			t.Errorf("filter organism:mouse should restrict to doc 3, got %d", h.Doc)
		}
	}
}
