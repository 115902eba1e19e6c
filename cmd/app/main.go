package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/incremental/internal"
	"github.com/starford/incremental/internal/interval"
	"github.com/starford/incremental/internal/models"
	pkgconfig "github.com/starford/incremental/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// withServices opens the application for a one-shot command. Logs go to
// stderr so command output stays clean.
func withServices(ctx context.Context, cmd *cli.Command, fn func(*internal.Services) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := internal.Open(internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func requireArgs(cmd *cli.Command, names ...string) error {
	if cmd.Args().Len() != len(names) {
		return fmt.Errorf("usage: %s %s", cmd.Name, cmd.ArgsUsage)
	}
	return nil
}

func setPriority(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, "id", "priority"); err != nil {
		return err
	}
	p, err := strconv.ParseFloat(cmd.Args().Get(1), 64)
	if err != nil {
		return fmt.Errorf("priority must be a number: %w", err)
	}
	return withServices(ctx, cmd, func(s *internal.Services) error {
		item, err := s.Engine.SetPriority(ctx, cmd.Args().Get(0), p)
		if err != nil {
			return err
		}
		label, _ := interval.Label(item.Priority)
		fmt.Fprintf(cmd.Root().Writer, "%s scheduled for %s (%s)\n",
			item.ID, item.NextReviewAt.Local().Format(time.DateTime), label)
		return nil
	})
}

func chooseInterval(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, "id", "days"); err != nil {
		return err
	}
	days, err := strconv.Atoi(cmd.Args().Get(1))
	if err != nil {
		return fmt.Errorf("days must be a whole number: %w", err)
	}
	return withServices(ctx, cmd, func(s *internal.Services) error {
		id := cmd.Args().Get(0)
		item, err := s.Engine.ChooseInterval(ctx, id, days)
		if err != nil {
			return err
		}
		if item == nil {
			fmt.Fprintf(cmd.Root().Writer, "%s is not scheduled, nothing to do\n", id)
			return nil
		}
		fmt.Fprintf(cmd.Root().Writer, "%s rescheduled for %s (%d reviews logged)\n",
			item.ID, item.NextReviewAt.Local().Format(time.DateTime), len(item.History))
		return nil
	})
}

func markDone(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, "id"); err != nil {
		return err
	}
	return withServices(ctx, cmd, func(s *internal.Services) error {
		if err := s.Engine.MarkDone(ctx, cmd.Args().Get(0)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().Writer, "%s done\n", cmd.Args().Get(0))
		return nil
	})
}

func listDue(ctx context.Context, cmd *cli.Command) error {
	return withServices(ctx, cmd, func(s *internal.Services) error {
		now := time.Now()
		var (
			items []models.Item
			err   error
		)
		if cmd.Bool("all") {
			items, err = s.Engine.Items(ctx)
		} else {
			items, err = s.Engine.Due(ctx, now)
		}
		if err != nil {
			return err
		}
		printItems(cmd.Root().Writer, items, now)
		return nil
	})
}

func printItems(w io.Writer, items []models.Item, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, color.GreenString("nothing due"))
		return
	}
	overdue := color.New(color.FgRed, color.Bold)
	due := color.New(color.FgYellow)
	later := color.New(color.FgCyan)
	for _, it := range items {
		c := later
		switch {
		case it.NextReviewAt.Before(now.Add(-interval.Day)):
			c = overdue
		case it.IsDue(now):
			c = due
		}
		c.Fprintf(w, "%5.1f  %s  ", it.Priority, it.NextReviewAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintln(w, it.ID)
	}
}

func reconcile(ctx context.Context, cmd *cli.Command) error {
	return withServices(ctx, cmd, func(s *internal.Services) error {
		stats, err := s.Engine.Reconcile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().Writer, "upserted %d, removed %d, skipped %d\n",
			stats.Upserted, stats.Removed, stats.Skipped)
		return nil
	})
}

func main() {
	cmd := &cli.Command{
		Name:    "incremental",
		Usage:   "Priority-driven incremental review over a Markdown vault",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "priority",
				Usage:     "Schedule a note from a priority (0-100)",
				ArgsUsage: "<id> <priority>",
				Action:    setPriority,
			},
			{
				Name:      "interval",
				Usage:     "Reschedule a note a number of days from now",
				ArgsUsage: "<id> <days>",
				Action:    chooseInterval,
			},
			{
				Name:      "done",
				Usage:     "Retire a note from review",
				ArgsUsage: "<id>",
				Action:    markDone,
			},
			{
				Name:  "due",
				Usage: "List items due for review",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "List every scheduled item"},
				},
				Action: listDue,
			},
			{
				Name:   "reconcile",
				Usage:  "Rebuild the item store from the vault",
				Action: reconcile,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
