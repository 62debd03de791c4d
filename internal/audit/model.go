// Package audit keeps a tamper-evident trail of admin actions: moderation
// label changes, review deletions and catalog or editorial edits. Each entry
// carries the SHA-256 hash of its predecessor so gaps and edits are
// detectable with VerifyChain.
package audit

import (
	"errors"
	"time"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entity types.
const (
	EntityReview  = "review"
	EntityBrand   = "brand"
	EntityProduct = "product"
	EntityArticle = "article"
)

// Actions.
const (
	ActionSetReviewLabels = "set_review_labels"
	ActionDeleteReview    = "delete_review"
	ActionCreateBrand     = "create_brand"
	ActionCreateProduct   = "create_product"
	ActionUpdateProduct   = "update_product"
	ActionCreateArticle   = "create_article"
)

var validEntityTypes = map[string]bool{
	EntityReview:  true,
	EntityBrand:   true,
	EntityProduct: true,
	EntityArticle: true,
}

var validActions = map[string]bool{
	ActionSetReviewLabels: true,
	ActionDeleteReview:    true,
	ActionCreateBrand:     true,
	ActionCreateProduct:   true,
	ActionUpdateProduct:   true,
	ActionCreateArticle:   true,
}

var (
	// ErrNilRepository is returned when Record is given no repository.
	ErrNilRepository = errors.New("audit repository cannot be nil")
	// ErrInvalidEntityType is returned for an empty or unknown entity type.
	ErrInvalidEntityType = errors.New("invalid audit entity type")
	// ErrInvalidEntityID is returned for an empty entity ID.
	ErrInvalidEntityID = errors.New("entity ID cannot be empty")
	// ErrInvalidAction is returned for an empty or unknown action.
	ErrInvalidAction = errors.New("invalid audit action")
	// ErrChainBroken is returned by VerifyChain when an entry does not link
	// to its predecessor or its hash does not match its contents.
	ErrChainBroken = errors.New("audit hash chain broken")
)

// Entry is one stored audit event.
type Entry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	RequestID  string    `json:"request_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"` // anonymized
	CreatedAt  time.Time `json:"created_at"`

	PreviousHash string `json:"previous_hash"`
	Hash         string `json:"hash"`
}

// LogEntry is the input for a new audit event.
type LogEntry struct {
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string
	RequestID  string
	IPAddress  string
}

// Validate checks the required fields against the known entity types and
// actions. An empty outcome is treated as success by the repositories.
func (e LogEntry) Validate() error {
	if !validEntityTypes[e.EntityType] {
		return ErrInvalidEntityType
	}
	if e.EntityID == "" {
		return ErrInvalidEntityID
	}
	if !validActions[e.Action] {
		return ErrInvalidAction
	}
	return nil
}
