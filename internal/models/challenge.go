package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/constants"
)

// Challenge is a count goal over a timeframe, owned by the authenticated user
type Challenge struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Target        int                     `json:"target"`
	Color         string                  `json:"color"`
	Icon          string                  `json:"icon"`
	TimeframeUnit constants.TimeframeUnit `json:"timeframeUnit"`
	StartDate     string                  `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate       string                  `json:"endDate,omitempty"`   // YYYY-MM-DD
	Year          int                     `json:"year"`
	IsPublic      bool                    `json:"isPublic"`
	Archived      bool                    `json:"archived"`
	CreatedAt     Timestamp               `json:"createdAt"`
}

// ChallengePayload is the body of a challenge create
type ChallengePayload struct {
	Name          string                  `json:"name" validate:"required,max=120"`
	Target        int                     `json:"target" validate:"gt=0"`
	Color         string                  `json:"color,omitempty" validate:"max=32"`
	Icon          string                  `json:"icon,omitempty" validate:"max=64"`
	TimeframeUnit constants.TimeframeUnit `json:"timeframeUnit" validate:"oneof=year month custom"`
	StartDate     string                  `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate       string                  `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Year          int                     `json:"year" validate:"gte=1970,lte=9999"`
	IsPublic      bool                    `json:"isPublic"`
}

// ChallengePatch is the body of a challenge update; nil fields are left unchanged
type ChallengePatch struct {
	Name          *string                  `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Target        *int                     `json:"target,omitempty" validate:"omitempty,gt=0"`
	Color         *string                  `json:"color,omitempty" validate:"omitempty,max=32"`
	Icon          *string                  `json:"icon,omitempty" validate:"omitempty,max=64"`
	TimeframeUnit *constants.TimeframeUnit `json:"timeframeUnit,omitempty" validate:"omitempty,oneof=year month custom"`
	StartDate     *string                  `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate       *string                  `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Year          *int                     `json:"year,omitempty" validate:"omitempty,gte=1970,lte=9999"`
	IsPublic      *bool                    `json:"isPublic,omitempty"`
	Archived      *bool                    `json:"archived,omitempty"`
}

// ChallengeFilter narrows a challenge listing. Active=nil returns everything.
type ChallengeFilter struct {
	Active *bool
}

// Normalize fills defaults that depend on the current date and validates the payload
func (p ChallengePayload) Normalize(now time.Time) (ChallengePayload, error) {
	if p.TimeframeUnit == "" {
		p.TimeframeUnit = constants.TimeframeYear
	}
	if p.Year == 0 {
		p.Year = now.Year()
		if p.StartDate != "" {
			if start, err := time.Parse(constants.DateFormat, p.StartDate); err == nil {
				p.Year = start.Year()
			}
		}
	}
	if err := p.Validate(); err != nil {
		return ChallengePayload{}, err
	}
	return p, nil
}

// Validate checks field tags plus the custom timeframe window
func (p ChallengePayload) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	return validateTimeframe(p.TimeframeUnit, p.StartDate, p.EndDate)
}

// Validate checks the tags of every field that is set
func (p ChallengePatch) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	if p.StartDate != nil && p.EndDate != nil && *p.StartDate > *p.EndDate {
		return fmt.Errorf("%w: startDate must not be after endDate", ErrValidation)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing
func (p ChallengePatch) IsEmpty() bool {
	return p == ChallengePatch{}
}

// ValidateTimeframe checks that a custom window has ordered start and end dates
func (c Challenge) ValidateTimeframe() error {
	return validateTimeframe(c.TimeframeUnit, c.StartDate, c.EndDate)
}

func validateTimeframe(unit constants.TimeframeUnit, start, end string) error {
	if unit != constants.TimeframeCustom {
		return nil
	}
	if start == "" || end == "" {
		return fmt.Errorf("%w: custom timeframe requires startDate and endDate", ErrValidation)
	}
	// Both are validated YYYY-MM-DD, so lexical order is calendar order
	if start > end {
		return fmt.Errorf("%w: startDate must not be after endDate", ErrValidation)
	}
	return nil
}

// NewChallenge builds the local representation of a challenge from a create payload
func NewChallenge(id string, p ChallengePayload, createdAt time.Time) Challenge {
	return Challenge{
		ID:            id,
		Name:          p.Name,
		Target:        p.Target,
		Color:         p.Color,
		Icon:          p.Icon,
		TimeframeUnit: p.TimeframeUnit,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Year:          p.Year,
		IsPublic:      p.IsPublic,
		CreatedAt:     NewTimestamp(createdAt),
	}
}

// Apply returns a copy of c with every set field of p written over it
func (c Challenge) Apply(p ChallengePatch) Challenge {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Target != nil {
		c.Target = *p.Target
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.TimeframeUnit != nil {
		c.TimeframeUnit = *p.TimeframeUnit
	}
	if p.StartDate != nil {
		c.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		c.EndDate = *p.EndDate
	}
	if p.Year != nil {
		c.Year = *p.Year
	}
	if p.IsPublic != nil {
		c.IsPublic = *p.IsPublic
	}
	if p.Archived != nil {
		c.Archived = *p.Archived
	}
	return c
}

// Window returns the inclusive date range the challenge counts over
func (c Challenge) Window() (start, end time.Time, err error) {
	switch c.TimeframeUnit {
	case constants.TimeframeCustom:
		start, err = time.Parse(constants.DateFormat, c.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid startDate: %w", err)
		}
		end, err = time.Parse(constants.DateFormat, c.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid endDate: %w", err)
		}
		return start, end, nil
	case constants.TimeframeMonth:
		start = time.Date(c.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		if c.StartDate != "" {
			start, err = time.Parse(constants.DateFormat, c.StartDate)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid startDate: %w", err)
			}
			start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		return start, start.AddDate(0, 1, -1), nil
	default:
		start = time.Date(c.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, time.Date(c.Year, time.December, 31, 0, 0, 0, 0, time.UTC), nil
	}
}
