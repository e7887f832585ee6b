package geo

import (
	"fmt"

	"github.com/mmcloughlin/geohash"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
)

// Validate checks that hash is a non-empty base32 geohash.
func Validate(hash string) error {
	if hash == "" {
		return domain.NewValidationError("geohash", "is required")
	}
	if err := geohash.Validate(hash); err != nil {
		return fmt.Errorf("%w: geohash %q: %v", domain.ErrInvalidRequest, hash, err)
	}
	return nil
}

var ringDirections = [4]geohash.Direction{geohash.East, geohash.South, geohash.West, geohash.North}

// Ring returns the 8k cells at Chebyshev distance k around hash, clockwise from the
// north-west corner. k <= 0 returns the cell itself.
func Ring(hash string, k int) []string {
	if k <= 0 {
		return []string{hash}
	}

	corner := hash
	for range k {
		corner = geohash.Neighbor(corner, geohash.North)
	}
	for range k {
		corner = geohash.Neighbor(corner, geohash.West)
	}

	cells := make([]string, 0, 8*k)
	cur := corner
	for _, dir := range ringDirections {
		for range 2 * k {
			cells = append(cells, cur)
			cur = geohash.Neighbor(cur, dir)
		}
	}
	return cells
}

// Expand appends successive rings around hash to current until either maxLevel rings have
// been added or current holds at least maxCells cells. It returns the cells and the level
// reached.
func Expand(hash string, level, maxLevel, maxCells int, current []string) ([]string, int) {
	for len(current) < maxCells && level < maxLevel {
		level++
		current = append(current, Ring(hash, level)...)
	}
	return current, level
}

// CellCount returns the number of cells covered by rings 0..level: 1 + 8 * level(level+1)/2.
func CellCount(level int) int {
	if level <= 0 {
		return 1
	}
	return 1 + 4*level*(level+1)
}
