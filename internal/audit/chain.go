package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newEntry builds the stored form of in, linked to prevHash. CreatedAt is
// truncated to microseconds so the hash survives a PostgreSQL round trip.
func newEntry(in LogEntry, prevHash string, now time.Time) *Entry {
	outcome := in.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}
	e := &Entry{
		ID:           uuid.New().String(),
		ActorID:      in.ActorID,
		EntityType:   in.EntityType,
		EntityID:     in.EntityID,
		Action:       in.Action,
		Outcome:      outcome,
		RequestID:    in.RequestID,
		IPAddress:    in.IPAddress,
		CreatedAt:    now.UTC().Truncate(time.Microsecond),
		PreviousHash: prevHash,
	}
	e.Hash = hashEntry(e)
	return e
}

// hashEntry hashes every field except Hash itself.
func hashEntry(e *Entry) string {
	payload := strings.Join([]string{
		e.PreviousHash,
		e.ID,
		e.ActorID,
		e.EntityType,
		e.EntityID,
		e.Action,
		e.Outcome,
		e.RequestID,
		e.IPAddress,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, "\x1f")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks entries ordered oldest first. The first entry may link
// to anything; every later entry must link to the hash of the one before it.
func VerifyChain(entries []*Entry) error {
	for i, e := range entries {
		if hashEntry(e) != e.Hash {
			return fmt.Errorf("%w: entry %s has been modified", ErrChainBroken, e.ID)
		}
		if i > 0 && e.PreviousHash != entries[i-1].Hash {
			return fmt.Errorf("%w: entry %s does not follow %s", ErrChainBroken, e.ID, entries[i-1].ID)
		}
	}
	return nil
}

// Oldest returns a copy of newest-first entries reordered oldest first.
func Oldest(newestFirst []*Entry) []*Entry {
	out := make([]*Entry, len(newestFirst))
	for i, e := range newestFirst {
		out[len(newestFirst)-1-i] = e
	}
	return out
}
