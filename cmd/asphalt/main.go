// Command asphalt evaluates road scripts and manages road network
// snapshots without the desktop editor.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/asphalt/pkg/config"
	"github.com/chazu/asphalt/pkg/engine"
	"github.com/chazu/asphalt/pkg/road"
	"github.com/chazu/asphalt/pkg/snapshot"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by all commands once the root pre-run has
// loaded the configuration.
type cli struct {
	configPath string
	cfg        config.Config
	log        *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "asphalt",
		Short:        "Build and inspect road networks from scripts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.ResolvePath(c.configPath))
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $"+config.EnvPath+")")

	root.AddCommand(
		c.runCmd(),
		c.watchCmd(),
		c.snapshotCmd(),
		c.meshCmd(),
	)
	return root
}

func (c *cli) engine() *engine.Engine {
	return engine.NewEngine(
		engine.WithTimeout(c.cfg.Script.Timeout),
		engine.WithDefaultLanes(c.cfg.RoadType()),
		engine.WithLogger(c.log),
	)
}

// evaluateFile runs the script at path against base and prints a summary.
// Script errors are printed and reported as a single error.
func (c *cli) evaluateFile(w io.Writer, path string, base *road.Graph) (*engine.Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, evalErrs, err := c.engine().EvaluateOn(base, string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(w, "%s: %s\n", path, e)
		}
		return nil, fmt.Errorf("%s: %d script error(s)", path, len(evalErrs))
	}
	printSummary(w, res)
	return res, nil
}

func printSummary(w io.Writer, res *engine.Result) {
	g := res.Graph
	fmt.Fprintf(w, "nodes: %d  segments: %d  trees: %d  commands: %d\n",
		g.NodeCount(), g.SegmentCount(), g.TreeCount(), len(res.Commands))
	for _, v := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", v)
	}
}

// loadGraph reads and decodes a snapshot file.
func loadGraph(path string) (*road.Graph, error) {
	doc, err := snapshot.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(doc)
}
