package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/constants"
)

func TestChallengePayload_Normalize(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		payload  ChallengePayload
		wantYear int
		wantErr  bool
	}{
		{
			name:     "defaults year and unit",
			payload:  ChallengePayload{Name: "Pushups", Target: 10000},
			wantYear: 2025,
		},
		{
			name: "custom window takes year from start",
			payload: ChallengePayload{
				Name: "Reading", Target: 20, TimeframeUnit: constants.TimeframeCustom,
				StartDate: "2024-06-01", EndDate: "2024-08-31",
			},
			wantYear: 2024,
		},
		{
			name:    "custom without dates",
			payload: ChallengePayload{Name: "Reading", Target: 20, TimeframeUnit: constants.TimeframeCustom},
			wantErr: true,
		},
		{
			name: "custom with inverted dates",
			payload: ChallengePayload{
				Name: "Reading", Target: 20, TimeframeUnit: constants.TimeframeCustom,
				StartDate: "2024-08-31", EndDate: "2024-06-01",
			},
			wantErr: true,
		},
		{
			name:    "empty name",
			payload: ChallengePayload{Target: 5},
			wantErr: true,
		},
		{
			name:    "zero target",
			payload: ChallengePayload{Name: "Pushups"},
			wantErr: true,
		},
		{
			name:    "unknown timeframe",
			payload: ChallengePayload{Name: "Pushups", Target: 5, TimeframeUnit: "week"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.payload.Normalize(now)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Normalize() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() unexpected error: %v", err)
			}
			if got.Year != tt.wantYear {
				t.Errorf("Year = %d, want %d", got.Year, tt.wantYear)
			}
			if got.TimeframeUnit == "" {
				t.Error("TimeframeUnit was not defaulted")
			}
		})
	}
}

func TestChallengeApply(t *testing.T) {
	c := NewChallenge("c1", ChallengePayload{Name: "Pushups", Target: 100, Year: 2025, TimeframeUnit: constants.TimeframeYear}, time.Now())

	name := "Push-ups"
	archived := true
	got := c.Apply(ChallengePatch{Name: &name, Archived: &archived})

	if got.Name != name || !got.Archived {
		t.Errorf("Apply() = %+v, want name %q archived", got, name)
	}
	if got.Target != 100 {
		t.Errorf("Apply() changed Target to %d", got.Target)
	}
	if c.Name != "Pushups" {
		t.Error("Apply() mutated the receiver")
	}
}

func TestChallengeWindow(t *testing.T) {
	tests := []struct {
		name      string
		challenge Challenge
		wantStart string
		wantEnd   string
	}{
		{"year", Challenge{TimeframeUnit: constants.TimeframeYear, Year: 2024}, "2024-01-01", "2024-12-31"},
		{"month", Challenge{TimeframeUnit: constants.TimeframeMonth, Year: 2024, StartDate: "2024-02-14"}, "2024-02-01", "2024-02-29"},
		{"custom", Challenge{TimeframeUnit: constants.TimeframeCustom, StartDate: "2024-03-01", EndDate: "2024-03-10"}, "2024-03-01", "2024-03-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tt.challenge.Window()
			if err != nil {
				t.Fatalf("Window() error: %v", err)
			}
			if got := start.Format(constants.DateFormat); got != tt.wantStart {
				t.Errorf("start = %s, want %s", got, tt.wantStart)
			}
			if got := end.Format(constants.DateFormat); got != tt.wantEnd {
				t.Errorf("end = %s, want %s", got, tt.wantEnd)
			}
		})
	}
}

func TestChallengeDecodeIgnoresUnknownFields(t *testing.T) {
	raw := `{"id":"srv_1","name":"Pushups","target":100,"timeframeUnit":"year","year":2025,"createdAt":1735689600000,"ownerId":"u1","_extra":{"a":1}}`

	var c Challenge
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if c.ID != "srv_1" || c.Target != 100 {
		t.Errorf("decoded %+v", c)
	}
	want := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !c.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", c.CreatedAt.Time, want)
	}
}

func TestLocalIDs(t *testing.T) {
	id := NewLocalID()
	if !IsLocalID(id) {
		t.Errorf("IsLocalID(%q) = false", id)
	}
	if IsLocalID("srv_123") {
		t.Error("IsLocalID(srv_123) = true")
	}
	if NewLocalID() == id {
		t.Error("NewLocalID() returned a duplicate")
	}
}
