package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/Corner-venturo/Corner-sub009/cmd/ledgerctl/cli"
	"github.com/Corner-venturo/Corner-sub009/internal/app"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/cache"
	"github.com/Corner-venturo/Corner-sub009/jobs"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  trigger <gl-integrity|report-warmup> [-workspace ID] [-as-of YYYY-MM-DD]
  stats
  scheduled [-size N]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	opts := cache.AsynqOpts(cache.Options{Addr: cfg.RedisAddr})
	client := asynq.NewClient(opts)
	defer client.Close()
	inspector := asynq.NewInspector(opts)
	defer inspector.Close()
	jobsCLI := cli.NewJobsCLI(client, inspector)

	if err := run(context.Background(), jobsCLI, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("ledgerctl", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.JobsCLI, command string, args []string) error {
	switch command {
	case "trigger":
		if len(args) < 1 {
			return fmt.Errorf("trigger: job name required")
		}
		fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
		workspace := fs.String("workspace", "", "limit the job to one workspace")
		asOf := fs.String("as-of", "", "evaluate as of this date")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		info, err := c.Trigger(ctx, args[0], jobs.ScopePayload{WorkspaceID: *workspace, AsOf: *asOf})
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		return cli.WriteStats(os.Stdout, stats)
	case "scheduled":
		fs := flag.NewFlagSet("scheduled", flag.ContinueOnError)
		size := fs.Int("size", 10, "page size")
		if err := fs.Parse(args); err != nil {
			return err
		}
		tasks, err := c.ListScheduled(*size)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			fmt.Printf("%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
		}
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
