// Package stats derives progress figures for a challenge from its entries
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// Summary is the progress of one challenge as of a given day
type Summary struct {
	ChallengeID string
	Target      int
	Total       int
	Remaining   int
	Percent     float64

	WindowStart   time.Time
	WindowEnd     time.Time
	DaysTotal     int
	DaysElapsed   int // including today, 0 before the window opens
	DaysRemaining int // including today

	// RequiredPerDay is the daily count needed from today to hit the target
	RequiredPerDay float64
	// CurrentPace is the average per elapsed day
	CurrentPace float64
	OnTrack     bool

	CurrentStreak int
	LongestStreak int
	BestDay       string
	BestDayCount  int
	ActiveDays    int

	AvgPerActiveDay float64
	// AvgPerSet is 0 when no entry recorded sets
	AvgPerSet float64
}

// ForChallenge summarizes entries against c's target and window. Entries of
// other challenges and entries dated outside the window are ignored.
func ForChallenge(c models.Challenge, entries []models.Entry, today time.Time) (Summary, error) {
	start, end, err := c.Window()
	if err != nil {
		return Summary{}, err
	}
	today = normalizeToDate(today)

	s := Summary{
		ChallengeID: c.ID,
		Target:      c.Target,
		WindowStart: start,
		WindowEnd:   end,
		DaysTotal:   daysBetween(start, end) + 1,
	}

	perDay := map[string]int{}
	setTotal, setCount := 0, 0
	for _, e := range entries {
		if e.ChallengeID != c.ID {
			continue
		}
		day, err := time.Parse(constants.DateFormat, e.Date)
		if err != nil || day.Before(start) || day.After(end) {
			continue
		}
		s.Total += e.Count
		perDay[e.Date] += e.Count
		if len(e.Sets) > 0 {
			setTotal += models.SumSets(e.Sets)
			setCount += len(e.Sets)
		}
	}

	s.Remaining = max(0, s.Target-s.Total)
	if s.Target > 0 {
		s.Percent = math.Min(100, float64(s.Total)*100/float64(s.Target))
	}

	switch {
	case today.Before(start):
		s.DaysElapsed = 0
		s.DaysRemaining = s.DaysTotal
	case today.After(end):
		s.DaysElapsed = s.DaysTotal
		s.DaysRemaining = 0
	default:
		s.DaysElapsed = daysBetween(start, today) + 1
		s.DaysRemaining = daysBetween(today, end) + 1
	}

	if s.DaysRemaining > 0 {
		s.RequiredPerDay = float64(s.Remaining) / float64(s.DaysRemaining)
	}
	if s.DaysElapsed > 0 {
		s.CurrentPace = float64(s.Total) / float64(s.DaysElapsed)
	}
	expected := float64(s.Target) * float64(s.DaysElapsed) / float64(s.DaysTotal)
	s.OnTrack = float64(s.Total) >= expected

	days := make([]string, 0, len(perDay))
	for d, n := range perDay {
		if n > 0 {
			days = append(days, d)
		}
	}
	sort.Strings(days)
	s.ActiveDays = len(days)

	for _, d := range days {
		if perDay[d] > s.BestDayCount {
			s.BestDay, s.BestDayCount = d, perDay[d]
		}
	}
	if s.ActiveDays > 0 {
		s.AvgPerActiveDay = float64(s.Total) / float64(s.ActiveDays)
	}
	if setCount > 0 {
		s.AvgPerSet = float64(setTotal) / float64(setCount)
	}

	s.CurrentStreak, s.LongestStreak = calculateStreaks(days, today)
	return s, nil
}

// calculateStreaks walks sorted active days. The current streak must end
// today or yesterday to count.
func calculateStreaks(days []string, today time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	dates := make([]time.Time, 0, len(days))
	for _, d := range days {
		t, _ := time.Parse(constants.DateFormat, d)
		dates = append(dates, t)
	}

	longest = 1
	run := 1
	for i := 1; i < len(dates); i++ {
		if daysBetween(dates[i-1], dates[i]) == 1 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}

	last := dates[len(dates)-1]
	if gap := daysBetween(last, today); gap == 0 || gap == 1 {
		current = run
	}
	return current, longest
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
