package models

import (
	"reflect"
	"testing"
)

func TestSortNatural(t *testing.T) {
	t.Run("numeric runs compare as numbers", func(t *testing.T) {
		names := []string{"10.mp3", "2.mp3", "1.mp3"}
		SortNaturalStrings(names)
		want := []string{"1.mp3", "2.mp3", "10.mp3"}
		if !reflect.DeepEqual(names, want) {
			t.Errorf("expected %v, got %v", want, names)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		names := []string{"b chapter", "a chapter", "C chapter"}
		SortNaturalStrings(names)
		want := []string{"a chapter", "b chapter", "C chapter"}
		if !reflect.DeepEqual(names, want) {
			t.Errorf("expected %v, got %v", want, names)
		}
	})

	t.Run("prefixed numbers", func(t *testing.T) {
		entries := []RemoteEntry{
			{ID: "c", Name: "Chapter 11.mp3"},
			{ID: "a", Name: "Chapter 9.mp3"},
			{ID: "b", Name: "Chapter 10.mp3"},
		}
		SortNatural(entries)
		got := []string{entries[0].ID, entries[1].ID, entries[2].ID}
		want := []string{"a", "b", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("NaturalCompare", func(t *testing.T) {
		if NaturalCompare("2", "10") >= 0 {
			t.Error("expected 2 < 10")
		}
		if NaturalCompare("x", "x") != 0 {
			t.Error("expected equal names to compare equal")
		}
		if NaturalCompare("A", "a") == 0 {
			t.Error("expected a total order between case variants")
		}
	})
}
