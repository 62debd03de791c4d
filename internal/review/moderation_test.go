package review

import (
	"errors"
	"testing"
	"time"
)

func TestValidateLabels(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		wantErr bool
	}{
		{"nil", nil, false},
		{"all allowed", []string{LabelHidden, LabelFlagged, LabelSpam}, false},
		{"unknown label", []string{LabelFlagged, "nsfw"}, true},
		{"case sensitive", []string{"Hidden"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabels(tt.labels)
			if tt.wantErr != errors.Is(err, ErrInvalidLabel) {
				t.Errorf("ValidateLabels(%v) = %v, wantErr %v", tt.labels, err, tt.wantErr)
			}
		})
	}
}

func TestReview_Counted(t *testing.T) {
	deleted := time.Now()
	tests := []struct {
		name   string
		review Review
		want   bool
	}{
		{"plain", Review{}, true},
		{"flagged still counts", Review{Labels: []string{LabelFlagged}}, true},
		{"hidden", Review{Labels: []string{LabelHidden}}, false},
		{"spam", Review{Labels: []string{LabelSpam}}, false},
		{"deleted", Review{DeletedAt: &deleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.review.Counted(); got != tt.want {
				t.Errorf("Counted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterForViewer(t *testing.T) {
	reviews := []*Review{
		{ID: "visible", AuthorID: "a"},
		{ID: "hidden-own", AuthorID: "viewer", Labels: []string{LabelHidden}},
		{ID: "hidden-other", AuthorID: "b", Labels: []string{LabelHidden}},
		{ID: "spam", AuthorID: "c", Labels: []string{LabelSpam}},
		nil,
	}

	got := FilterForViewer(reviews, "viewer")
	if len(got) != 2 || got[0].ID != "visible" || got[1].ID != "hidden-own" {
		t.Errorf("unexpected filter result: %+v", got)
	}

	anon := FilterForViewer(reviews, "")
	if len(anon) != 1 {
		t.Errorf("anonymous viewer should only see counted reviews, got %d", len(anon))
	}
}

func TestNormalizeLabels(t *testing.T) {
	got := normalizeLabels([]string{LabelSpam, LabelFlagged, LabelSpam})
	if len(got) != 2 || got[0] != LabelFlagged || got[1] != LabelSpam {
		t.Errorf("normalizeLabels() = %v", got)
	}
}
