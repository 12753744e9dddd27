package challenges

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

type AddCmd struct {
	Name   string `arg:"" optional:"" help:"Challenge name. Opens a form when omitted."`
	Target int    `help:"Count to reach within the timeframe."`
	Unit   string `help:"Timeframe unit." enum:"year,month,custom" default:"year"`
	Year   int    `help:"Year the challenge counts in. Defaults to the current year."`
	Start  string `help:"Start date (YYYY-MM-DD), required for custom timeframes."`
	End    string `help:"End date (YYYY-MM-DD), required for custom timeframes."`
	Color  string `help:"Display color."`
	Icon   string `help:"Display icon name."`
	Public bool   `help:"Make the challenge visible to others."`
}

func (c *AddCmd) Run(ctx context.Context, app *cli.Context) error {
	payload := models.ChallengePayload{
		Name:          strings.TrimSpace(c.Name),
		Target:        c.Target,
		TimeframeUnit: constants.TimeframeUnit(c.Unit),
		Year:          c.Year,
		StartDate:     c.Start,
		EndDate:       c.End,
		Color:         c.Color,
		Icon:          c.Icon,
		IsPublic:      c.Public,
	}
	if payload.Name == "" {
		target := ""
		if payload.Target > 0 {
			target = strconv.Itoa(payload.Target)
		}
		if err := newChallengeForm(&payload, &target).Run(); err != nil {
			return err
		}
		n, err := strconv.Atoi(target)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		payload.Target = n
	}

	res, err := app.Repo.CreateChallenge(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to add challenge: %w", err)
	}
	app.Printf("Added challenge: %s (ID: %s) %s\n", res.Value.Name, res.Value.ID, cli.Outcome(res.Outcome))
	return nil
}

// newChallengeForm fills the fields a bare `challenge add` leaves empty
func newChallengeForm(p *models.ChallengePayload, target *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&p.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Target").
				Value(target).
				Validate(func(s string) error {
					i, err := strconv.Atoi(s)
					if err != nil {
						return err
					}
					if i <= 0 {
						return errors.New("target must be a positive number")
					}
					return nil
				}),
			huh.NewSelect[constants.TimeframeUnit]().
				Title("Timeframe").
				Options(
					huh.NewOption("Year", constants.TimeframeYear),
					huh.NewOption("Month", constants.TimeframeMonth),
					huh.NewOption("Custom", constants.TimeframeCustom),
				).
				Value(&p.TimeframeUnit),
			huh.NewConfirm().
				Title("Public").
				Value(&p.IsPublic),
		),
	).WithTheme(huh.ThemeDracula())
}

type ListCmd struct {
	Archived bool `help:"Show archived challenges instead of active ones."`
	All      bool `help:"Show active and archived challenges."`
}

func (c *ListCmd) Run(ctx context.Context, app *cli.Context) error {
	filter := models.ChallengeFilter{}
	if !c.All {
		active := !c.Archived
		filter.Active = &active
	}
	list, err := app.Repo.ListChallenges(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list challenges: %w", err)
	}
	if len(list) == 0 {
		app.Println("No challenges found.")
		return nil
	}

	t := cli.NewTable("ID", "NAME", "TARGET", "TIMEFRAME", "FLAGS")
	for _, ch := range list {
		t.Row(ch.ID, ch.Name, strconv.Itoa(ch.Target), timeframe(ch), flags(ch))
	}
	app.Println(t.Render())
	return nil
}

func timeframe(c models.Challenge) string {
	switch c.TimeframeUnit {
	case constants.TimeframeCustom:
		return c.StartDate + " → " + c.EndDate
	case constants.TimeframeMonth:
		if len(c.StartDate) >= 7 {
			return c.StartDate[:7]
		}
		return fmt.Sprintf("month of %d", c.Year)
	default:
		return strconv.Itoa(c.Year)
	}
}

func flags(c models.Challenge) string {
	var out []string
	if c.IsPublic {
		out = append(out, "public")
	}
	if c.Archived {
		out = append(out, "archived")
	}
	if models.IsLocalID(c.ID) {
		out = append(out, "unsynced")
	}
	return strings.Join(out, ",")
}

type EditCmd struct {
	ID      string `arg:"" help:"Challenge ID to edit."`
	Name    string `help:"New name."`
	Target  int    `help:"New target."`
	Unit    string `help:"New timeframe unit (year, month or custom)."`
	Year    int    `help:"New year."`
	Start   string `help:"New start date (YYYY-MM-DD)."`
	End     string `help:"New end date (YYYY-MM-DD)."`
	Color   string `help:"New color."`
	Icon    string `help:"New icon."`
	Public  bool   `help:"Make the challenge public." xor:"visibility"`
	Private bool   `help:"Make the challenge private." xor:"visibility"`
}

func (c *EditCmd) Run(ctx context.Context, app *cli.Context) error {
	patch := c.patch()
	if patch.IsEmpty() {
		return errors.New("no changes given")
	}
	res, err := app.Repo.UpdateChallenge(ctx, c.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	app.Printf("Updated challenge: %s (ID: %s) %s\n", res.Value.Name, res.Value.ID, cli.Outcome(res.Outcome))
	return nil
}

func (c *EditCmd) patch() models.ChallengePatch {
	var p models.ChallengePatch
	if c.Name != "" {
		p.Name = &c.Name
	}
	if c.Target != 0 {
		p.Target = &c.Target
	}
	if c.Unit != "" {
		unit := constants.TimeframeUnit(c.Unit)
		p.TimeframeUnit = &unit
	}
	if c.Year != 0 {
		p.Year = &c.Year
	}
	if c.Start != "" {
		p.StartDate = &c.Start
	}
	if c.End != "" {
		p.EndDate = &c.End
	}
	if c.Color != "" {
		p.Color = &c.Color
	}
	if c.Icon != "" {
		p.Icon = &c.Icon
	}
	if c.Public || c.Private {
		public := c.Public
		p.IsPublic = &public
	}
	return p
}

type ArchiveCmd struct {
	ID string `arg:"" help:"Challenge ID to archive."`
}

func (c *ArchiveCmd) Run(ctx context.Context, app *cli.Context) error {
	return setArchived(ctx, app, c.ID, true)
}

type UnarchiveCmd struct {
	ID string `arg:"" help:"Challenge ID to restore from the archive."`
}

func (c *UnarchiveCmd) Run(ctx context.Context, app *cli.Context) error {
	return setArchived(ctx, app, c.ID, false)
}

func setArchived(ctx context.Context, app *cli.Context, id string, archived bool) error {
	res, err := app.Repo.ArchiveChallenge(ctx, id, archived)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	verb := "Archived"
	if !archived {
		verb = "Unarchived"
	}
	app.Printf("%s challenge: %s %s\n", verb, res.Value.ID, cli.Outcome(res.Outcome))
	return nil
}

type DeleteCmd struct {
	ID  string `arg:"" help:"Challenge ID to delete."`
	Yes bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *DeleteCmd) Run(ctx context.Context, app *cli.Context) error {
	title := fmt.Sprintf("Delete challenge %s?", c.ID)
	if ch, err := app.Repo.GetChallenge(ctx, c.ID); err == nil {
		title = fmt.Sprintf("Delete challenge %q?", ch.Name)
	}
	ok, err := app.ConfirmOrSkip(c.Yes, title, "Its entries are deleted too. Archive it instead to keep them.")
	if err != nil {
		return err
	}
	if !ok {
		app.Println("Delete cancelled.")
		return nil
	}

	res, err := app.Repo.DeleteChallenge(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	app.Printf("Deleted challenge: %s %s\n", res.Value, cli.Outcome(res.Outcome))
	return nil
}
