package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/constants"
)

// Entry is one dated count logged against a challenge
type Entry struct {
	ID          string            `json:"id"`
	ChallengeID string            `json:"challengeId"`
	Date        string            `json:"date"` // YYYY-MM-DD
	Count       int               `json:"count"`
	Note        string            `json:"note,omitempty"`
	Feeling     constants.Feeling `json:"feeling,omitempty"`
	Sets        []int             `json:"sets,omitempty"`
	CreatedAt   Timestamp         `json:"createdAt"`
}

// EntryPayload is the body of an entry create
type EntryPayload struct {
	ChallengeID string            `json:"challengeId" validate:"required"`
	Date        string            `json:"date" validate:"required,datetime=2006-01-02"`
	Count       int               `json:"count" validate:"gte=0"`
	Note        string            `json:"note,omitempty" validate:"max=1000"`
	Feeling     constants.Feeling `json:"feeling,omitempty" validate:"omitempty,oneof=great good okay tough very-easy easy moderate hard very-hard"`
	Sets        []int             `json:"sets,omitempty" validate:"omitempty,dive,gte=0"`
}

// EntryPatch is the body of an entry update; nil fields are left unchanged.
// A non-nil empty Sets clears the sets.
type EntryPatch struct {
	Date    *string            `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Count   *int               `json:"count,omitempty" validate:"omitempty,gte=0"`
	Note    *string            `json:"note,omitempty" validate:"omitempty,max=1000"`
	Feeling *constants.Feeling `json:"feeling,omitempty" validate:"omitempty,oneof=great good okay tough very-easy easy moderate hard very-hard"`
	Sets    *[]int             `json:"sets,omitempty" validate:"omitempty"`
}

// EntryFilter narrows an entry listing; empty fields match everything
type EntryFilter struct {
	ChallengeID string
	Date        string
}

// SumSets returns the total of the per-set counts
func SumSets(sets []int) int {
	total := 0
	for _, s := range sets {
		total += s
	}
	return total
}

// checkSets enforces the sets-sum invariant on a count/sets pair
func checkSets(count int, sets []int) error {
	if len(sets) == 0 {
		return nil
	}
	for i, s := range sets {
		if s < 0 {
			return fmt.Errorf("%w: sets[%d] must be at least 0", ErrValidation, i)
		}
	}
	if sum := SumSets(sets); sum != count {
		return fmt.Errorf("%w: %w (count %d, sets total %d)", ErrValidation, ErrSetsMismatch, count, sum)
	}
	return nil
}

// NormalizeEntryPayload applies entry defaults and validates the result.
// When sets are given and count is zero, count becomes the sum of the sets.
func NormalizeEntryPayload(p EntryPayload) (EntryPayload, error) {
	if len(p.Sets) > 0 && p.Count == 0 {
		p.Count = SumSets(p.Sets)
	}
	if err := p.Validate(); err != nil {
		return EntryPayload{}, err
	}
	return p, nil
}

// Validate checks field tags and the sets-sum invariant
func (p EntryPayload) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	return checkSets(p.Count, p.Sets)
}

// NormalizeEntryPatch fills count from sets when only sets are given and validates the patch
func NormalizeEntryPatch(p EntryPatch) (EntryPatch, error) {
	if p.Sets != nil && len(*p.Sets) > 0 && p.Count == nil {
		sum := SumSets(*p.Sets)
		p.Count = &sum
	}
	if err := validateStruct(p); err != nil {
		return EntryPatch{}, err
	}
	if p.Sets != nil && p.Count != nil {
		if err := checkSets(*p.Count, *p.Sets); err != nil {
			return EntryPatch{}, err
		}
	}
	return p, nil
}

// CheckSets validates the sets-sum invariant on a stored entry
func (e Entry) CheckSets() error {
	return checkSets(e.Count, e.Sets)
}

// NewEntry builds the local representation of an entry from a create payload
func NewEntry(id string, p EntryPayload, createdAt time.Time) Entry {
	return Entry{
		ID:          id,
		ChallengeID: p.ChallengeID,
		Date:        p.Date,
		Count:       p.Count,
		Note:        p.Note,
		Feeling:     p.Feeling,
		Sets:        append([]int(nil), p.Sets...),
		CreatedAt:   NewTimestamp(createdAt),
	}
}

// Apply returns a copy of e with every set field of p written over it
func (e Entry) Apply(p EntryPatch) Entry {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Count != nil {
		e.Count = *p.Count
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Feeling != nil {
		e.Feeling = *p.Feeling
	}
	if p.Sets != nil {
		e.Sets = append([]int(nil), (*p.Sets)...)
	}
	return e
}
