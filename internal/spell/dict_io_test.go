package spell

import (
	"bytes"
	"testing"
)

func TestWriteReadDictRoundTrip(t *testing.T) {
	d := buildSample()
	var buf bytes.Buffer
	if err := WriteDict(&buf, d, 1000); err != nil {
		t.Fatalf("WriteDict: %v", err)
	}

	got, docCount, err := ReadDict(&buf)
	if err != nil {
		t.Fatalf("ReadDict: %v", err)
	}
	if docCount != 1000 {
		t.Errorf("docCount = %d, want 1000", docCount)
	}

	for _, word := range []string{"kinase", "kinetic", "protein", "proteins"} {
		wantDF, wantOK := d.Lookup([]byte(word))
		gotDF, gotOK := got.Lookup([]byte(word))
		if gotOK != wantOK || gotDF != wantDF {
			t.Errorf("Lookup(%q) after round-trip = (%d,%v), want (%d,%v)", word, gotDF, gotOK, wantDF, wantOK)
		}
	}
	if _, ok := got.Lookup([]byte("missing")); ok {
		t.Error("unexpected hit for a word never inserted")
	}
}

func TestReadDictRejectsMissingSentinel(t *testing.T) {
	d := buildSample()
	var buf bytes.Buffer
	if err := WriteDict(&buf, d, 10); err != nil {
		t.Fatalf("WriteDict: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-4]
	if _, _, err := ReadDict(bytes.NewReader(truncated)); err == nil {
		t.Error("expected ReadDict to fail on a truncated (sentinel-less) stream")
	}
}
