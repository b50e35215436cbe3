package spell

import "testing"

func buildSample() *DAFSA {
	return Build([]Entry{
		{Term: []byte("kinase"), DF: 40},
		{Term: []byte("kinetic"), DF: 12},
		{Term: []byte("protein"), DF: 90},
		{Term: []byte("proteins"), DF: 8},
	})
}

func TestDAFSALookupExactWords(t *testing.T) {
	d := buildSample()
	cases := []struct {
		word    string
		wantDF  int
		wantHit bool
	}{
		{"kinase", 40, true},
		{"kinetic", 12, true},
		{"protein", 90, true},
		{"proteins", 8, true},
		{"kinas", 0, false},
		{"prot", 0, false},
	}
	for _, c := range cases {
		df, ok := d.Lookup([]byte(c.word))
		if ok != c.wantHit {
			t.Errorf("Lookup(%q) ok = %v, want %v", c.word, ok, c.wantHit)
			continue
		}
		if ok && df != c.wantDF {
			t.Errorf("Lookup(%q) df = %d, want %d", c.word, df, c.wantDF)
		}
	}
}

func TestDAFSASharesSuffixStates(t *testing.T) {
	d := Build([]Entry{
		{Term: []byte("running"), DF: 5},
		{Term: []byte("swimming"), DF: 5},
	})
	if _, ok := d.Lookup([]byte("running")); !ok {
		t.Error("expected running to be found")
	}
	if _, ok := d.Lookup([]byte("swimming")); !ok {
		t.Error("expected swimming to be found")
	}
	if _, ok := d.Lookup([]byte("run")); ok {
		t.Error("run should not be a terminal word")
	}
	// Unshared, the two words need 1+7+8 = 16 states; "runn" and
	// "swimm" lead into the same "ing" suffix, whose states are shared.
	if n := len(d.states); n >= 16 {
		t.Errorf("states = %d, want fewer than 16 (suffix states shared)", n)
	}
}

func TestKeepTripleFilter(t *testing.T) {
	docCount := uint32(1000) // minCount = max(ceil(log10(1000)),4) = max(4,4) = 4 (log10(1000)=3 exactly, threshold computed via loop)
	if Keep([]byte("abc"), 100, docCount) {
		t.Error("length < 4 should be rejected")
	}
	if Keep([]byte("abcd"), 1, docCount) {
		t.Error("count below threshold should be rejected")
	}
	if Keep([]byte("a1b2c"), 100, docCount) {
		t.Error("two digits should be rejected")
	}
	if !Keep([]byte("a1bcd"), 100, docCount) {
		t.Error("one digit with sufficient count/length should be kept")
	}
	if !Keep([]byte("kinase"), 10, docCount) {
		t.Error("expected kinase to pass the triple filter")
	}
}

func TestCompleteOrdersByAscendingIDF(t *testing.T) {
	d := buildSample()
	res := d.Complete([]byte("prot"), 1000)
	if len(res) != 2 {
		t.Fatalf("Complete(prot) = %v, want 2 results", res)
	}
	for i := 1; i < len(res); i++ {
		if res[i].IDF < res[i-1].IDF {
			t.Errorf("results not in ascending idf order: %v", res)
		}
	}
	terms := map[string]bool{}
	for _, r := range res {
		terms[r.Term] = true
	}
	if !terms["protein"] || !terms["proteins"] {
		t.Errorf("Complete(prot) = %v, want protein and proteins", res)
	}
}

func TestCompleteNoMatchReturnsNil(t *testing.T) {
	d := buildSample()
	if res := d.Complete([]byte("xyz"), 1000); res != nil {
		t.Errorf("Complete(xyz) = %v, want nil", res)
	}
}

func TestCorrectFindsNearbyTerm(t *testing.T) {
	d := buildSample()
	res := d.Correct([]byte("kinaze"))
	found := false
	for _, c := range res {
		if c.Term == "kinase" {
			found = true
		}
	}
	if !found {
		t.Errorf("Correct(kinaze) = %v, want kinase among candidates", res)
	}
}

func TestCorrectExactMatchIsTopCandidate(t *testing.T) {
	d := buildSample()
	res := d.Correct([]byte("protein"))
	if len(res) == 0 {
		t.Fatal("Correct(protein) returned no candidates")
	}
	if res[0].Term != "protein" {
		t.Errorf("Correct(protein) top candidate = %q, want protein", res[0].Term)
	}
	if res[0].Distance != 0 {
		t.Errorf("Correct(protein) top candidate distance = %d, want 0", res[0].Distance)
	}
}
