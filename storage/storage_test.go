package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rent-radar/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteThenReadListings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "train.csv")
	in := []*models.Listing{
		{ID: "1", City: "Potsdam", Title: "WG, sunny", RentRaw: "450 €", SizeRaw: "18 m²", Rent: 450, Size: 18, SizeNorm: 0.25},
		{ID: "2", City: "Berlin", Title: "Room", RentRaw: "600", SizeRaw: "20", Rent: 600, Size: 20, SizeNorm: 1},
	}

	if err := WriteListings(path, in); err != nil {
		t.Fatalf("WriteListings: %v", err)
	}
	got, err := ReadListings(path, ListingColumns...)
	if err != nil {
		t.Fatalf("ReadListings: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("listings mismatch (-want +got):\n%s", diff)
	}
}

func TestReadListingsActivationSubset(t *testing.T) {
	path := writeFile(t, "activation.csv", "size_norm,id,size,city\n0.5,42,30,Köln\n")

	got, err := ReadListings(path, ActivationColumns...)
	if err != nil {
		t.Fatalf("ReadListings: %v", err)
	}
	want := []*models.Listing{{ID: "42", City: "Köln", Size: 30, SizeNorm: 0.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listings mismatch (-want +got):\n%s", diff)
	}
}

func TestReadListingsMissingColumns(t *testing.T) {
	path := writeFile(t, "activation.csv", "id,title\n1,x\n")

	_, err := ReadListings(path, ActivationColumns...)
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "city, size, size_norm") {
		t.Errorf("missing columns should be listed sorted, got %q", err.Error())
	}
}

func TestReadListingsBadNumber(t *testing.T) {
	path := writeFile(t, "test.csv", "id,city,size,size_norm\n1,Berlin,abc,0.1\n")

	if _, err := ReadListings(path, ActivationColumns...); err == nil {
		t.Error("expected parse error for non-numeric size")
	}
}

func TestReadRaw(t *testing.T) {
	path := writeFile(t, "raw.csv", "id,city,title,rent_raw,size_raw\n7,Potsdam,Nice room,450 €,18 m²\n")

	got, err := ReadRaw(path)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	want := []*models.RawListing{{ID: "7", City: "Potsdam", Title: "Nice room", RentRaw: "450 €", SizeRaw: "18 m²"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadRaw(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestReadEmptyFile(t *testing.T) {
	if _, err := ReadRaw(writeFile(t, "empty.csv", "")); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestScalerPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scaler.json")
	want := models.SizeScaler{Min: 9.5, Max: 79}

	if err := SaveScaler(path, want); err != nil {
		t.Fatalf("SaveScaler: %v", err)
	}
	got, err := LoadScaler(path)
	if err != nil {
		t.Fatalf("LoadScaler: %v", err)
	}
	if got != want {
		t.Errorf("scaler: got %+v, want %+v", got, want)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(7, 3); got != "($8,$9,$10)" {
		t.Errorf("placeholders(7,3) = %q", got)
	}
}

func TestInBatches(t *testing.T) {
	var spans [][2]int
	err := inBatches(120, func(lo, hi int) error {
		spans = append(spans, [2]int{lo, hi})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{0, 50}, {50, 100}, {100, 120}}
	if diff := cmp.Diff(want, spans); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}
