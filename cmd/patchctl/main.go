package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/italolelis/asset_patcher/internal/config"
	"github.com/italolelis/asset_patcher/internal/delivery/backends"
	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/italolelis/asset_patcher/internal/patch"
)

var errDeclined = errors.New("patch declined")

type CheckCmd struct{}

type PatchCmd struct {
	Yes bool `arg:"-y,--yes" help:"download without asking for confirmation"`
}

type Args struct {
	Check *CheckCmd `arg:"subcommand:check" help:"report how much content needs to be downloaded"`
	Patch *PatchCmd `arg:"subcommand:patch" help:"download pending content for every group"`

	Groups  []string `arg:"-g,--group,separate" help:"patch group, repeatable; defaults to PATCH_GROUPS"`
	Verbose bool     `arg:"-v,--verbose" help:"log debug output to stderr"`
}

func (Args) Description() string {
	return "patchctl checks and downloads content patches using the service configuration from the environment."
}

func main() {
	var args Args
	p := arg.MustParse(&args)

	if args.Check == nil && args.Patch == nil {
		p.Fail("missing subcommand: check or patch")
	}

	level := slog.LevelWarn
	if args.Verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(logctx.NewTraceHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(logctx.WithLogger(ctx, logger), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args Args) error {
	cfg, err := loadConfig(args.Groups)
	if err != nil {
		return err
	}

	backend, err := backends.New(ctx, cfg, nil)
	if err != nil {
		return err
	}

	o := patch.NewOrchestrator(backend, cfg.Groups, patch.WithMaxParallel(cfg.MaxParallel))

	switch {
	case args.Check != nil:
		return check(ctx, o, os.Stdout)
	default:
		return download(ctx, o, cfg.TickInterval, args.Patch.Yes, os.Stdin, os.Stdout)
	}
}

// loadConfig reads the environment and applies --group overrides on top.
func loadConfig(groups []string) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	if len(groups) == 0 {
		return cfg, nil
	}

	cfg.Groups = append([]string(nil), groups...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid --group: %w", err)
	}

	return cfg, nil
}

func check(ctx context.Context, o *patch.Orchestrator, out io.Writer) error {
	snap, err := o.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for patches: %w", err)
	}

	if snap.Status == patch.StatusNoOpNeeded {
		fmt.Fprintln(out, "content is up to date")

		return nil
	}

	for _, group := range snap.Groups {
		if size := snap.PerGroup[group]; size > 0 {
			fmt.Fprintf(out, "%-16s %s\n", group, patch.FormatSize(size))
		}
	}

	fmt.Fprintf(out, "total %s pending\n", patch.FormatSize(snap.Total))

	return nil
}

func download(ctx context.Context, o *patch.Orchestrator, interval time.Duration, yes bool, in io.Reader, out io.Writer) error {
	snap, err := o.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for patches: %w", err)
	}

	if snap.Status == patch.StatusNoOpNeeded {
		fmt.Fprintln(out, "content is up to date")

		return nil
	}

	if !yes && !confirm(in, out, snap.Total) {
		o.Abort(ctx, errDeclined)
		fmt.Fprintln(out, "nothing downloaded")

		return nil
	}

	if err := o.Confirm(ctx); err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := -1

	for {
		select {
		case <-ctx.Done():
			o.Abort(context.WithoutCancel(ctx), ctx.Err())

			return ctx.Err()
		case <-ticker.C:
			snap, err := o.Tick(ctx)
			if err != nil {
				return fmt.Errorf("patch failed: %w", err)
			}

			if snap.Percent != last {
				last = snap.Percent
				fmt.Fprintf(out, "%d %%\n", snap.Percent)
			}

			if snap.Status == patch.StatusSucceeded {
				fmt.Fprintf(out, "patched %s\n", patch.FormatSize(snap.Total))

				return nil
			}
		}
	}
}

// confirm asks the user to accept a download of total bytes.
func confirm(in io.Reader, out io.Writer, total int64) bool {
	fmt.Fprintf(out, "Download %s of new content? [y/N] ", patch.FormatSize(total))

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

	return answer == "y" || answer == "yes"
}
