package sortrun

import (
	"math/rand"
	"testing"
)

func TestRunnerMergesGloballySorted(t *testing.T) {
	less := func(a, b int) bool { return a < b }
	r := New[int](t.TempDir(), less, 16, 3)

	src := rand.New(rand.NewSource(1))
	const n = 500
	want := make([]int, n)
	for i := 0; i < n; i++ {
		v := src.Intn(1000)
		want[i] = v
		r.PushBack(v)
	}

	it, err := r.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	defer it.Close()

	var got []int
	for {
		v, err, ok := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, v)
	}
	if len(got) != n {
		t.Fatalf("merged %d entries, want %d", len(got), n)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("not sorted at %d: %d > %d", i, got[i-1], got[i])
		}
	}
}

func TestRunnerHandlesEmptyInput(t *testing.T) {
	r := New[int](t.TempDir(), func(a, b int) bool { return a < b }, 16, 2)
	it, err := r.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	defer it.Close()
	if _, _, ok := it.Next(); ok {
		t.Fatal("expected no entries from empty runner")
	}
}

func TestRunnerSingleRunNoSpillBoundary(t *testing.T) {
	r := New[int](t.TempDir(), func(a, b int) bool { return a < b }, 1000, 2)
	for _, v := range []int{5, 1, 4, 2, 3} {
		r.PushBack(v)
	}
	it, err := r.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	defer it.Close()
	want := []int{1, 2, 3, 4, 5}
	for _, w := range want {
		v, err, ok := it.Next()
		if err != nil || !ok {
			t.Fatalf("Next: ok=%v err=%v", ok, err)
		}
		if v != w {
			t.Errorf("got %d, want %d", v, w)
		}
	}
}
