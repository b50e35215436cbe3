package tokenizer

import "testing"

func TestWordsSplitsAndNormalizes(t *testing.T) {
	tok := New("Protein Kinase C, isoform-2")
	words := tok.Words()
	want := []string{"protein", "kinase", "c", "isoform", "2"}
	if len(words) != len(want) {
		t.Fatalf("Words = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word[%d] = %q, want %q", i, words[i], want[i])
		}
	}
}

func TestNumberToken(t *testing.T) {
	tok := New("year 2001")
	w1 := tok.NextWord()
	w2 := tok.NextWord()
	if w1.Kind != KindWord || w1.Text != "year" {
		t.Errorf("first token = %+v", w1)
	}
	if w2.Kind != KindNumber || w2.Text != "2001" {
		t.Errorf("second token = %+v", w2)
	}
}

func TestHanCharactersTokenizedSeparately(t *testing.T) {
	tok := New("中文test")
	var kinds []Kind
	var texts []string
	for {
		tk := tok.NextWord()
		if tk.Kind == KindEOF {
			break
		}
		kinds = append(kinds, tk.Kind)
		texts = append(texts, tk.Text)
	}
	if len(texts) != 3 {
		t.Fatalf("tokens = %v, want 3 (two Han runes + one Latin word)", texts)
	}
	if texts[2] != "test" {
		t.Errorf("last token = %q, want test", texts[2])
	}
}

func TestNormalizeSharedByStoreAndQueryPaths(t *testing.T) {
	stored := Normalize("Café")
	queried := Normalize("CAFÉ")
	if stored != queried {
		t.Errorf("Normalize(%q) = %q != Normalize(%q) = %q", "Café", stored, "CAFÉ", queried)
	}
}

func TestStemReducesToCommonRoot(t *testing.T) {
	if Stem("running") != Stem("runs") {
		t.Errorf("Stem(running)=%q Stem(runs)=%q, want equal", Stem("running"), Stem("runs"))
	}
}

func TestNextQueryTokenBasics(t *testing.T) {
	tok := New(`title:"alpha kinase" AND year>=2000 AND name=ac* #42`)
	var kinds []Kind
	for {
		tk, err := tok.NextQueryToken()
		if err != nil {
			t.Fatalf("NextQueryToken: %v", err)
		}
		if tk.Kind == KindEOF {
			break
		}
		kinds = append(kinds, tk.Kind)
	}
	want := []Kind{
		KindWord, KindColon, KindString, KindAND, KindWord, KindGE, KindNumber,
		KindAND, KindWord, KindEquals, KindPattern, KindDocNr,
	}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kind[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestNextQueryTokenFloat(t *testing.T) {
	tok := New("3.14 -2.5e10 7")
	tk1, _ := tok.NextQueryToken()
	tk2, _ := tok.NextQueryToken()
	tk3, _ := tok.NextQueryToken()
	if tk1.Kind != KindFloat || tk1.Text != "3.14" {
		t.Errorf("tk1 = %+v", tk1)
	}
	if tk2.Kind != KindFloat {
		t.Errorf("tk2 = %+v", tk2)
	}
	if tk3.Kind != KindNumber || tk3.Text != "7" {
		t.Errorf("tk3 = %+v", tk3)
	}
}

func TestNextQueryTokenUnterminatedString(t *testing.T) {
	tok := New(`"unterminated`)
	if _, err := tok.NextQueryToken(); err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestContainsHan(t *testing.T) {
	if !ContainsHan("基因") {
		t.Error("expected ContainsHan to detect CJK text")
	}
	if ContainsHan("gene") {
		t.Error("expected ContainsHan to be false for plain ASCII")
	}
}
