package models

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// newCollator compares with numeric runs as numbers and ignores case and accents.
// Collators keep internal buffers, so each sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.Numeric, collate.Loose)
}

// NaturalCompare orders a before b the way a person reads file names: "2" < "10", "a" == "A".
// Names equal under that ordering fall back to byte order so the result is total.
func NaturalCompare(a, b string) int {
	return naturalCompare(newCollator(), a, b)
}

func naturalCompare(c *collate.Collator, a, b string) int {
	if r := c.CompareString(a, b); r != 0 {
		return r
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortNatural sorts entries by name in natural order, in place.
func SortNatural(entries []RemoteEntry) {
	c := newCollator()
	slices.SortStableFunc(entries, func(x, y RemoteEntry) int {
		return naturalCompare(c, x.Name, y.Name)
	})
}

// SortNaturalStrings sorts names in natural order, in place.
func SortNaturalStrings(names []string) {
	c := newCollator()
	slices.SortStableFunc(names, func(x, y string) int {
		return naturalCompare(c, x, y)
	})
}
