package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/chazu/asphalt/pkg/road"
	"github.com/chazu/asphalt/pkg/snapshot"
)

func (c *cli) runCmd() *cobra.Command {
	var out, base string
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Evaluate a road script and print a summary",
		Long: `Evaluates a road script, optionally on top of an existing snapshot.

Examples:
  asphalt run town.road
  asphalt run town.road --out town.snap
  asphalt run extension.road --base town.snap --out town2.snap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var g *road.Graph
			if base != "" {
				var err error
				if g, err = loadGraph(base); err != nil {
					return err
				}
			}
			res, err := c.evaluateFile(cmd.OutOrStdout(), args[0], g)
			if err != nil {
				return err
			}
			if out == "" {
				return nil
			}
			return c.writeSnapshot(cmd, out, res.Graph)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the resulting network as a snapshot file")
	cmd.Flags().StringVar(&base, "base", "", "snapshot file to start from")
	return cmd
}

func (c *cli) writeSnapshot(cmd *cobra.Command, path string, g *road.Graph) error {
	doc := snapshot.Encode(g)
	if err := snapshot.WriteFile(path, doc, snapshot.Options{Compress: c.cfg.Snapshot.Compress}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func (c *cli) watchCmd() *cobra.Command {
	var (
		out      string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <script>",
		Short: "Re-evaluate a road script whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := args[0]
			eval := func() {
				res, err := c.evaluateFile(cmd.OutOrStdout(), path, nil)
				if err != nil {
					c.log.Warn("evaluation failed", slog.String("script", path), slog.Any("error", err))
					return
				}
				if out != "" {
					if err := c.writeSnapshot(cmd, out, res.Graph); err != nil {
						c.log.Error("snapshot write failed", slog.String("path", out), slog.Any("error", err))
					}
				}
			}
			eval()
			c.log.Info("watching", slog.String("script", path), slog.Duration("debounce", debounce))
			err := watchFile(ctx, path, debounce, eval)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "rewrite this snapshot file after each successful evaluation")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "quiet period before re-evaluating")
	return cmd
}

// watchFile calls onChange once path has stopped changing for the debounce
// period. The parent directory is watched so that editors replacing the
// file by rename are followed. It returns when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
