package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/mmcloughlin/geohash"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
)

func almost(a, b, eps float64) bool {
	if a > b {
		return a-b < eps
	}
	return b-a < eps
}

func TestHaversine_SamePoint(t *testing.T) {
	d := Haversine(23.8103, 90.4125, 23.8103, 90.4125)
	if d != 0 {
		t.Fatalf("want 0, got %f", d)
	}
}

func TestHaversine_NewYork_London(t *testing.T) {
	// NYC to London: ~5,570 km
	d := Haversine(40.7128, -74.0060, 51.5074, -0.1278)
	expected := 5_570_000.0
	if !almost(d, expected, 30_000) {
		t.Fatalf("want ~%.0fm, got %.0fm", expected, d)
	}
}

func TestHaversine_Antipodal(t *testing.T) {
	d := Haversine(0, 0, 0, 180)
	expected := math.Pi * EarthRadiusMeters
	if !almost(d, expected, 1) {
		t.Fatalf("want ~%.0fm, got %.0fm", expected, d)
	}
}

func TestDistance_SameCell(t *testing.T) {
	if d := Distance("wh0r3qs", "wh0r3qs"); d != 0 {
		t.Fatalf("want 0, got %f", d)
	}
}

func TestDistance_NeighborCloserThanParent(t *testing.T) {
	h := "wh0r3qs"
	near := Distance(h, geohash.Neighbor(h, geohash.East))
	far := Distance(h, geohash.Neighbor(h[:4], geohash.East))
	if near >= far {
		t.Fatalf("neighbor at precision 7 (%.0fm) should be closer than at precision 4 (%.0fm)", near, far)
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		valid    bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{91, 0, false},
		{-91, 0, false},
		{0, 181, false},
		{0, -181, false},
	}
	for _, tt := range tests {
		if got := ValidateCoordinates(tt.lat, tt.lon); got != tt.valid {
			t.Errorf("ValidateCoordinates(%f, %f) = %v, want %v", tt.lat, tt.lon, got, tt.valid)
		}
	}
}

func TestEncode_RoundTripsPrefix(t *testing.T) {
	h := Encode(23.8103, 90.4125, 7)
	if len(h) != 7 {
		t.Fatalf("len = %d, want 7", len(h))
	}
	if short := Encode(23.8103, 90.4125, 4); short != h[:4] {
		t.Fatalf("precision 4 = %q, want prefix %q", short, h[:4])
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("wh0r3qs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "wh0r3qa", "WH0"} {
		err := Validate(bad)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidRequest", bad, err)
		}
	}
}

func TestRing_Zero(t *testing.T) {
	got := Ring("wh0r3qs", 0)
	if len(got) != 1 || got[0] != "wh0r3qs" {
		t.Fatalf("Ring(k=0) = %v", got)
	}
}

func TestRing_FirstMatchesNeighbors(t *testing.T) {
	h := "wh0r3qs"
	got := Ring(h, 1)
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	want := make(map[string]bool)
	for _, n := range geohash.Neighbors(h) {
		want[n] = true
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("cell %q is not an adjacent neighbor of %q", c, h)
		}
		delete(want, c)
	}
	if len(want) != 0 {
		t.Errorf("missing neighbors: %v", want)
	}
}

func TestRing_SizesAndUniqueness(t *testing.T) {
	h := "wh0r3qs"
	seen := map[string]bool{h: true}
	for k := 1; k <= 4; k++ {
		ring := Ring(h, k)
		if len(ring) != 8*k {
			t.Fatalf("Ring(k=%d) len = %d, want %d", k, len(ring), 8*k)
		}
		for _, c := range ring {
			if seen[c] {
				t.Fatalf("Ring(k=%d) repeats cell %q", k, c)
			}
			seen[c] = true
		}
	}
	if len(seen) != CellCount(4) {
		t.Fatalf("distinct cells = %d, want %d", len(seen), CellCount(4))
	}
}

func TestExpand(t *testing.T) {
	h := "wh0r3qs"

	cells, level := Expand(h, 0, 3, 100, []string{h})
	if level != 3 {
		t.Errorf("level = %d, want 3", level)
	}
	if len(cells) != CellCount(3) {
		t.Errorf("cells = %d, want %d", len(cells), CellCount(3))
	}

	cells, level = Expand(h, 0, 5, 20, []string{h})
	if level != 2 {
		t.Errorf("capped level = %d, want 2", level)
	}
	if len(cells) != CellCount(2) {
		t.Errorf("capped cells = %d, want %d", len(cells), CellCount(2))
	}

	cells, level = Expand(h, 3, 3, 100, []string{h})
	if level != 3 || len(cells) != 1 {
		t.Errorf("already at max: level %d cells %d", level, len(cells))
	}
}

func TestCellCount(t *testing.T) {
	tests := map[int]int{-1: 1, 0: 1, 1: 9, 2: 25, 3: 49}
	for level, want := range tests {
		if got := CellCount(level); got != want {
			t.Errorf("CellCount(%d) = %d, want %d", level, got, want)
		}
	}
}
