package follows

import (
	"context"
	"fmt"
	"strconv"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

type FollowCmd struct {
	ChallengeID string `arg:"" help:"Public challenge ID to follow."`
}

func (c *FollowCmd) Run(ctx context.Context, app *cli.Context) error {
	res, err := app.Repo.FollowChallenge(ctx, models.FollowPayload{ChallengeID: c.ChallengeID})
	if err != nil {
		return fmt.Errorf("failed to follow challenge: %w", err)
	}
	app.Printf("Following challenge %s (ID: %s) %s\n", res.Value.ChallengeID, res.Value.ID, cli.Outcome(res.Outcome))
	return nil
}

type UnfollowCmd struct {
	ID string `arg:"" help:"Follow ID to remove (see 'tally follow list')."`
}

func (c *UnfollowCmd) Run(ctx context.Context, app *cli.Context) error {
	res, err := app.Repo.UnfollowChallenge(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to unfollow challenge: %w", err)
	}
	app.Printf("Unfollowed: %s %s\n", res.Value, cli.Outcome(res.Outcome))
	return nil
}

type ListCmd struct{}

func (c *ListCmd) Run(ctx context.Context, app *cli.Context) error {
	list, err := app.Repo.ListFollowed(ctx)
	if err != nil {
		return fmt.Errorf("failed to list follows: %w", err)
	}
	if len(list) == 0 {
		app.Println("Not following any challenges.")
		return nil
	}

	t := cli.NewTable("ID", "CHALLENGE", "SINCE")
	for _, f := range list {
		since := ""
		if !f.FollowedAt.IsZero() {
			since = f.FollowedAt.Local().Format(constants.DateFormat)
		}
		t.Row(f.ID, f.ChallengeID, since)
	}
	app.Println(t.Render())
	return nil
}

// PublicCmd lists challenges others have made public. It works signed out.
type PublicCmd struct{}

func (c *PublicCmd) Run(ctx context.Context, app *cli.Context) error {
	list, err := app.Repo.ListPublicChallenges(ctx)
	if err != nil {
		return fmt.Errorf("failed to list public challenges: %w", err)
	}
	if len(list) == 0 {
		app.Println("No public challenges found.")
		return nil
	}

	t := cli.NewTable("ID", "NAME", "TARGET", "YEAR")
	for _, ch := range list {
		t.Row(ch.ID, ch.Name, strconv.Itoa(ch.Target), strconv.Itoa(ch.Year))
	}
	app.Println(t.Render())
	return nil
}
