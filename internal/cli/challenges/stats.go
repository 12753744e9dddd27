package challenges

import (
	"context"
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/stats"
)

type StatsCmd struct {
	ID string `arg:"" help:"Challenge ID."`
}

func (c *StatsCmd) Run(ctx context.Context, app *cli.Context) error {
	ch, err := app.Repo.GetChallenge(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to find challenge with ID %s: %w", c.ID, err)
	}
	entries, err := app.Repo.ListEntries(ctx, models.EntryFilter{ChallengeID: ch.ID})
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	s, err := stats.ForChallenge(ch, entries, app.Now())
	if err != nil {
		return err
	}

	app.Println(cli.HeaderStyle.Render(ch.Name))
	app.Printf("  Progress:   %d / %d (%.1f%%), %d to go\n", s.Total, s.Target, s.Percent, s.Remaining)
	app.Printf("  Window:     %s → %s, day %d of %d\n",
		s.WindowStart.Format(constants.DateFormat), s.WindowEnd.Format(constants.DateFormat), s.DaysElapsed, s.DaysTotal)

	pace := cli.SuccessStyle.Render("on track")
	if !s.OnTrack {
		pace = cli.WarningStyle.Render("behind")
	}
	app.Printf("  Pace:       %.1f/day, need %.1f/day (%s)\n", s.CurrentPace, s.RequiredPerDay, pace)
	app.Printf("  Streak:     %d day(s), longest %d\n", s.CurrentStreak, s.LongestStreak)
	if s.BestDay != "" {
		app.Printf("  Best day:   %s (%d)\n", s.BestDay, s.BestDayCount)
	}
	app.Printf("  Active:     %d day(s), %.1f per active day\n", s.ActiveDays, s.AvgPerActiveDay)
	if s.AvgPerSet > 0 {
		app.Printf("  Per set:    %.1f\n", s.AvgPerSet)
	}
	return nil
}
