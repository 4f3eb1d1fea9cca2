package wggesucht

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"rent-radar/config"
	"rent-radar/models"
	"rent-radar/utils"
)

func TestPageURL(t *testing.T) {
	potsdam := config.City{ID: 108, Name: "Potsdam"}

	tests := []struct {
		page int
		want string
	}{
		{0, "https://www.wg-gesucht.de/wg-zimmer-in-Potsdam.108.0.1.0.html"},
		{2, "https://www.wg-gesucht.de/wg-zimmer-in-Potsdam.108.0.1.0.html" +
			"?offer_filter=1&city_id=108&noDeact=1&categories%5B0%5D=0&pagination=1&pu=2"},
	}
	for _, tt := range tests {
		if got := PageURL(potsdam, tt.page); got != tt.want {
			t.Errorf("PageURL(page %d) =\n  %s\nwant\n  %s", tt.page, got, tt.want)
		}
	}
}

func TestCollectSkipsIncompleteAndDuplicates(t *testing.T) {
	cfg := &config.Config{MaxConcurrency: 1, MaxRetries: 1}
	s := New(cfg, utils.Discard())
	berlin := config.City{ID: 8, Name: "Berlin"}

	added := s.collect(berlin, []card{
		{ID: "11", Title: "  Helles Zimmer ", Rent: "450 €", Size: "18 m²"},
		{ID: "12", Title: "No size", Rent: "500 €"},
		{ID: "11", Title: "Helles Zimmer", Rent: "450 €", Size: "18 m²"},
		{ID: "13", Title: "Altbau", Rent: "520 €", Size: "22 m²"},
	})
	if added != 2 {
		t.Errorf("added: got %d, want 2", added)
	}

	// the same id on a later page is still a duplicate
	if n := s.collect(berlin, []card{{ID: "13", Rent: "1 €", Size: "1 m²"}}); n != 0 {
		t.Errorf("second page added %d duplicates", n)
	}

	want := []*models.RawListing{
		{ID: "11", City: "Berlin", Title: "Helles Zimmer", RentRaw: "450 €", SizeRaw: "18 m²"},
		{ID: "13", City: "Berlin", Title: "Altbau", RentRaw: "520 €", SizeRaw: "22 m²"},
	}
	if diff := cmp.Diff(want, s.listings); diff != "" {
		t.Errorf("listings mismatch (-want +got):\n%s", diff)
	}
}

func TestPoliteDelayRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := politeDelay()
		if d < 2e9 || d >= 4e9 {
			t.Fatalf("delay %v outside [2s, 4s)", d)
		}
	}
}
