package ranking

import (
	"errors"
	"fmt"
	"testing"
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// TestRank_SmallSampleDoesNotOutrankEvidence covers the motivating case: one
// 5-star review must not beat 200 reviews averaging 4.6.
func TestRank_SmallSampleDoesNotOutrankEvidence(t *testing.T) {
	popular := append(repeat(5, 120), repeat(4, 80)...) // avg 4.6
	in := RankInput{
		Ratings: map[string][]float64{
			"one-hit": {5},
			"popular": popular,
		},
		Pool:     append(repeat(3, 50), repeat(4, 50)...), // site-wide mean 3.5
		Fallback: DefaultBaselineFallback,
	}

	entries, err := Rank(in, Params{Confidence: 10, MinReviews: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ProductID != "popular" {
		t.Errorf("expected popular product first, got %s", entries[0].ProductID)
	}
}

func TestRank_ExcludesBelowMinimum(t *testing.T) {
	in := RankInput{
		Ratings: map[string][]float64{
			"few":  {5, 5, 5},
			"many": {4, 4, 4, 4, 4},
			"none": {},
		},
		Fallback: 3.5,
	}

	entries, err := Rank(in, Params{Confidence: 10, MinReviews: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ProductID != "many" {
		t.Fatalf("expected only 'many' to be ranked, got %+v", entries)
	}
}

func TestRank_TieBreakByRatingCount(t *testing.T) {
	// Both average 4.0 against a 4.0 baseline, so both score exactly 4.0.
	in := RankInput{
		Ratings: map[string][]float64{
			"a-small": repeat(4, 5),
			"b-large": repeat(4, 20),
		},
		Pool:     repeat(4, 10),
		Fallback: 3.5,
	}

	entries, err := Rank(in, Params{Confidence: 10, MinReviews: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].BayesianScore != entries[1].BayesianScore {
		t.Fatalf("expected tied scores, got %f and %f", entries[0].BayesianScore, entries[1].BayesianScore)
	}
	if entries[0].ProductID != "b-large" {
		t.Errorf("expected product with more reviews first on tie, got %s", entries[0].ProductID)
	}
}

func TestRank_TieBreakIsDeterministic(t *testing.T) {
	in := RankInput{
		Ratings: map[string][]float64{
			"c": repeat(4, 5),
			"a": repeat(4, 5),
			"b": repeat(4, 5),
		},
		Fallback: 3.5,
	}

	for i := 0; i < 20; i++ {
		entries, err := Rank(in, Params{Confidence: 10, MinReviews: 5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := entries[0].ProductID + entries[1].ProductID + entries[2].ProductID
		if got != "abc" {
			t.Fatalf("iteration %d: expected order abc, got %s", i, got)
		}
	}
}

func TestRank_TruncatesToTopN(t *testing.T) {
	ratings := make(map[string][]float64)
	for i := 0; i < 60; i++ {
		ratings[fmt.Sprintf("p%02d", i)] = repeat(float64(1+i%5), 5)
	}

	entries, err := Rank(RankInput{Ratings: ratings, Fallback: 3.5}, Params{Confidence: 10, MinReviews: 5, TopN: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 50 {
		t.Errorf("expected 50 entries, got %d", len(entries))
	}

	unbounded, err := Rank(RankInput{Ratings: ratings, Fallback: 3.5}, Params{Confidence: 10, MinReviews: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unbounded) != 60 {
		t.Errorf("expected 60 entries when unbounded, got %d", len(unbounded))
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].BayesianScore > entries[i-1].BayesianScore {
			t.Fatalf("entries not sorted at %d: %f > %f", i, entries[i].BayesianScore, entries[i-1].BayesianScore)
		}
	}
}

func TestRank_UsesExplicitPool(t *testing.T) {
	in := RankInput{
		Ratings:  map[string][]float64{"p": repeat(5, 10)},
		Pool:     repeat(3, 10),
		Fallback: 3.5,
	}

	entries, err := Rank(in, Params{Confidence: 10, MinReviews: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (10*3 + 50) / 20 = 4.0
	if !floatEquals(entries[0].BayesianScore, 4.0) {
		t.Errorf("expected score 4.0 with explicit pool, got %f", entries[0].BayesianScore)
	}
}

func TestRank_EmptyInput(t *testing.T) {
	entries, err := Rank(RankInput{Fallback: 3.5}, Params{Confidence: 10, MinReviews: 5, TopN: 50})
	if err != nil {
		t.Fatalf("empty input must not fail: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestRank_InvalidRating(t *testing.T) {
	in := RankInput{
		Ratings:  map[string][]float64{"bad": {4, 7, 4, 4, 4}},
		Fallback: 3.5,
	}
	if _, err := Rank(in, Params{Confidence: 10, MinReviews: 5}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGroupByTier(t *testing.T) {
	entries := []Entry{
		{ProductID: "s1", Result: Result{BayesianScore: 4.8, Ranked: true}},
		{ProductID: "a1", Result: Result{BayesianScore: 4.2, Ranked: true}},
		{ProductID: "a2", Result: Result{BayesianScore: 4.0, Ranked: true}},
		{ProductID: "d1", Result: Result{BayesianScore: 1.9, Ranked: true}},
	}

	groups := GroupByTier(entries, DefaultTiers())
	if len(groups) != 5 {
		t.Fatalf("expected 5 tier groups, got %d", len(groups))
	}

	want := map[string][]string{
		"S": {"s1"},
		"A": {"a1", "a2"},
		"B": {},
		"C": {},
		"D": {"d1"},
	}
	for _, g := range groups {
		ids := make([]string, 0, len(g.Entries))
		for _, e := range g.Entries {
			ids = append(ids, e.ProductID)
		}
		if fmt.Sprint(ids) != fmt.Sprint(want[g.Tier.Name]) {
			t.Errorf("tier %s: expected %v, got %v", g.Tier.Name, want[g.Tier.Name], ids)
		}
		if g.Entries == nil {
			t.Errorf("tier %s: expected empty slice, got nil", g.Tier.Name)
		}
	}
}

func TestGroupByTier_DropsBelowLowestTier(t *testing.T) {
	tiers := []Tier{{Name: "top", MinScore: 4.0}}
	entries := []Entry{{ProductID: "low", Result: Result{BayesianScore: 2.0}}}

	groups := GroupByTier(entries, tiers)
	if len(groups[0].Entries) != 0 {
		t.Errorf("expected entry below every tier to be dropped, got %+v", groups[0].Entries)
	}
}

func ExampleRank() {
	profiles := DefaultProfiles()
	params, ok := profiles.Profile(ProfileBrand)
	if !ok {
		return
	}
	entries, err := Rank(RankInput{
		Ratings: map[string][]float64{
			"lime":  {5, 5, 5, 5},
			"grape": {4, 4, 4},
			"mango": {5},
		},
		Fallback: profiles.BaselineFallback,
		Scale:    profiles.Scale,
	}, params)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, e := range entries {
		fmt.Printf("%s %.2f\n", e.ProductID, e.BayesianScore)
	}
	// Output:
	// lime 4.84
	// grape 4.31
}
