package review

import (
	"errors"
	"slices"
)

// Moderation labels.
const (
	// LabelHidden removes a review from public lists and from rating counts.
	LabelHidden = "hidden"

	// LabelFlagged marks a review reported by a reader. Flagged reviews stay
	// visible and counted until a moderator acts on them.
	LabelFlagged = "flagged"

	// LabelSpam marks a review as spam. Spam is never shown or counted.
	LabelSpam = "spam"
)

// AllowedLabels is the exhaustive list of valid moderation labels.
var AllowedLabels = []string{
	LabelHidden,
	LabelFlagged,
	LabelSpam,
}

// ErrInvalidLabel is returned for a label outside AllowedLabels.
var ErrInvalidLabel = errors.New("invalid moderation label")

// ValidateLabels checks that all provided labels are in the allowed list.
func ValidateLabels(labels []string) error {
	for _, label := range labels {
		if !slices.Contains(AllowedLabels, label) {
			return ErrInvalidLabel
		}
	}
	return nil
}

// normalizeLabels drops duplicates and sorts, so stored label sets compare
// equal regardless of input order.
func normalizeLabels(labels []string) []string {
	out := slices.Clone(labels)
	slices.Sort(out)
	return slices.Compact(out)
}

// HasLabel checks if a review has a specific moderation label.
func (r *Review) HasLabel(label string) bool {
	return slices.Contains(r.Labels, label)
}

// IsDeleted reports whether the review was soft-deleted.
func (r *Review) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Counted reports whether the review contributes its rating to aggregates.
// Deleted, hidden and spam reviews do not.
func (r *Review) Counted() bool {
	return !r.IsDeleted() && !r.HasLabel(LabelHidden) && !r.HasLabel(LabelSpam)
}

// FilterForViewer returns the reviews a viewer may see. Authors always see
// their own reviews; everyone else sees only counted ones.
func FilterForViewer(reviews []*Review, viewerID string) []*Review {
	out := make([]*Review, 0, len(reviews))
	for _, r := range reviews {
		if r == nil || r.IsDeleted() {
			continue
		}
		if r.Counted() || (viewerID != "" && r.AuthorID == viewerID) {
			out = append(out, r)
		}
	}
	return out
}
