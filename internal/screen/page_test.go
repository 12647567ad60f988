package screen

import (
	"math/rand"
	"testing"
)

func TestPrevSaturatesAtFirstPage(t *testing.T) {
	if got := PageGreet.Prev(); got != PageGreet {
		t.Fatalf("expected %v, got %v", PageGreet, got)
	}
}

func TestNextSaturatesAtLastPage(t *testing.T) {
	if got := PageStatus.Next(); got != PageStatus {
		t.Fatalf("expected %v, got %v", PageStatus, got)
	}
}

func TestNavigationSequence(t *testing.T) {
	tests := []struct {
		name  string
		start Page
		moves string
		want  Page
	}{
		{"next from greet", PageGreet, "n", PageStatus},
		{"prev from status", PageStatus, "p", PageGreet},
		{"next twice", PageGreet, "nn", PageStatus},
		{"prev twice", PageStatus, "pp", PageGreet},
		{"round trip", PageGreet, "np", PageGreet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := tt.start
			for _, m := range tt.moves {
				if m == 'n' {
					page = page.Next()
				} else {
					page = page.Prev()
				}
			}
			if page != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, page)
			}
		})
	}
}

func TestRandomNavigationStaysInClosedSet(t *testing.T) {
	valid := map[Page]bool{}
	for _, p := range Pages {
		valid[p] = true
	}
	rng := rand.New(rand.NewSource(42))
	page := PageGreet
	for i := 0; i < 1000; i++ {
		if rng.Intn(2) == 0 {
			page = page.Next()
		} else {
			page = page.Prev()
		}
		if !valid[page] {
			t.Fatalf("step %d left the page set: %v", i, page)
		}
	}
}
