package entries

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

type AddCmd struct {
	Challenge string `arg:"" help:"Challenge ID to log against."`
	Count     int    `arg:"" optional:"" help:"Count to log. Defaults to the sum of --sets."`
	Date      string `help:"Date of the entry (YYYY-MM-DD). Defaults to today."`
	Sets      string `help:"Comma separated per-set counts, e.g. 20,15,10."`
	Note      string `help:"Free-form note."`
	Feeling   string `help:"How it felt: great, good, okay, tough or very-easy through very-hard."`
}

func (c *AddCmd) Run(ctx context.Context, app *cli.Context) error {
	sets, err := cli.ParseSets(c.Sets)
	if err != nil {
		return err
	}
	if c.Count == 0 && len(sets) == 0 {
		return errors.New("give a count or --sets")
	}
	date := c.Date
	if date == "" {
		date = app.Now().Format(constants.DateFormat)
	}

	res, err := app.Repo.CreateEntry(ctx, models.EntryPayload{
		ChallengeID: c.Challenge,
		Date:        date,
		Count:       c.Count,
		Sets:        sets,
		Note:        c.Note,
		Feeling:     constants.Feeling(c.Feeling),
	})
	if err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}
	app.Printf("Logged %d on %s (ID: %s) %s\n", res.Value.Count, res.Value.Date, res.Value.ID, cli.Outcome(res.Outcome))
	return nil
}

type ListCmd struct {
	Challenge string `help:"Only entries of this challenge."`
	Date      string `help:"Only entries on this date (YYYY-MM-DD)."`
}

func (c *ListCmd) Run(ctx context.Context, app *cli.Context) error {
	list, err := app.Repo.ListEntries(ctx, models.EntryFilter{ChallengeID: c.Challenge, Date: c.Date})
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	if len(list) == 0 {
		app.Println("No entries found.")
		return nil
	}

	t := cli.NewTable("ID", "DATE", "COUNT", "SETS", "FEELING", "NOTE")
	total := 0
	for _, e := range list {
		t.Row(e.ID, e.Date, strconv.Itoa(e.Count), formatSets(e.Sets), string(e.Feeling), e.Note)
		total += e.Count
	}
	app.Println(t.Render())
	app.Println(cli.DimStyle.Render(fmt.Sprintf("%d entries, %d total", len(list), total)))
	return nil
}

func formatSets(sets []int) string {
	parts := make([]string, len(sets))
	for i, s := range sets {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

type EditCmd struct {
	ID        string `arg:"" help:"Entry ID to edit."`
	Count     int    `help:"New count." default:"-1"`
	Date      string `help:"New date (YYYY-MM-DD)."`
	Sets      string `help:"New per-set counts; use 'none' to clear them."`
	Note      string `help:"New note."`
	ClearNote bool   `help:"Remove the note."`
	Feeling   string `help:"New feeling."`
}

func (c *EditCmd) Run(ctx context.Context, app *cli.Context) error {
	patch, err := c.patch()
	if err != nil {
		return err
	}
	if patch == (models.EntryPatch{}) {
		return errors.New("no changes given")
	}
	res, err := app.Repo.UpdateEntry(ctx, c.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	app.Printf("Updated entry: %s (%d on %s) %s\n", res.Value.ID, res.Value.Count, res.Value.Date, cli.Outcome(res.Outcome))
	return nil
}

func (c *EditCmd) patch() (models.EntryPatch, error) {
	var p models.EntryPatch
	if c.Count >= 0 {
		p.Count = &c.Count
	}
	if c.Date != "" {
		p.Date = &c.Date
	}
	switch c.Sets {
	case "":
	case "none":
		empty := []int{}
		p.Sets = &empty
	default:
		sets, err := cli.ParseSets(c.Sets)
		if err != nil {
			return models.EntryPatch{}, err
		}
		p.Sets = &sets
	}
	if c.ClearNote {
		empty := ""
		p.Note = &empty
	} else if c.Note != "" {
		p.Note = &c.Note
	}
	if c.Feeling != "" {
		feeling := constants.Feeling(c.Feeling)
		p.Feeling = &feeling
	}
	return p, nil
}

type DeleteCmd struct {
	ID string `arg:"" help:"Entry ID to delete."`
}

func (c *DeleteCmd) Run(ctx context.Context, app *cli.Context) error {
	res, err := app.Repo.DeleteEntry(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	app.Printf("Deleted entry: %s %s\n", res.Value, cli.Outcome(res.Outcome))
	return nil
}
