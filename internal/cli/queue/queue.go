package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

type ListCmd struct{}

func (c *ListCmd) Run(ctx context.Context, app *cli.Context) error {
	items, err := app.Repo.ListQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}
	if len(items) == 0 {
		app.Println("Queue is empty.")
		return nil
	}

	t := cli.NewTable("ID", "WRITE", "TARGET", "ATTEMPTS", "STATUS", "LAST ERROR")
	for _, item := range items {
		t.Row(item.ID, fmt.Sprintf("%s %s", item.Method, item.EntityType), item.EntityID,
			strconv.Itoa(item.Attempts), status(item), item.LastError)
	}
	app.Println(t.Render())
	return nil
}

func status(item models.QueueItem) string {
	if item.IsDead() {
		return cli.DangerStyle.Render(string(item.Status))
	}
	return string(item.Status)
}

type RetryCmd struct {
	ID  string `arg:"" optional:"" help:"Queue item ID to retry."`
	All bool   `help:"Retry every failed item."`
}

func (c *RetryCmd) Run(ctx context.Context, app *cli.Context) error {
	switch {
	case c.All:
		n, err := app.Repo.RetryDead(ctx)
		if err != nil {
			return err
		}
		app.Printf("Reset %d failed item(s). Run 'tally sync' to replay them.\n", n)
	case c.ID != "":
		if err := app.Repo.RetryQueueItem(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to retry %s: %w", c.ID, err)
		}
		app.Printf("Reset %s. Run 'tally sync' to replay it.\n", c.ID)
	default:
		return errors.New("give a queue item ID or --all")
	}
	return nil
}

type DropCmd struct {
	ID  string `arg:"" help:"Queue item ID to discard."`
	Yes bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *DropCmd) Run(ctx context.Context, app *cli.Context) error {
	ok, err := app.ConfirmOrSkip(c.Yes, fmt.Sprintf("Discard queued write %s?", c.ID),
		"The write is never sent to the server. This cannot be undone.")
	if err != nil {
		return err
	}
	if !ok {
		app.Println("Drop cancelled.")
		return nil
	}
	if err := app.Repo.DropQueueItem(ctx, c.ID); err != nil {
		return fmt.Errorf("failed to drop %s: %w", c.ID, err)
	}
	app.Printf("Dropped %s\n", c.ID)
	return nil
}
