package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/asphalt/pkg/kernel/sdfx"
	"github.com/chazu/asphalt/pkg/tessellate"
)

func (c *cli) meshCmd() *cobra.Command {
	var cells int
	cmd := &cobra.Command{
		Use:   "mesh <snapshot>",
		Short: "Tessellate a snapshot and print triangle counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			if cells <= 0 {
				cells = c.cfg.Kernel.MeshCells
			}
			start := time.Now()
			meshes, err := tessellate.Network(cmd.Context(), g, sdfx.New(sdfx.WithMeshCells(cells)), c.cfg.Editor.MeshWorkers)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OWNER\tTRIANGLES\tVERTICES")
			total := 0
			for _, m := range meshes {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", m.Owner, m.TriangleCount(), m.VertexCount())
				total += m.TriangleCount()
			}
			fmt.Fprintf(tw, "total\t%d\t\n", total)
			if err := tw.Flush(); err != nil {
				return err
			}
			c.log.Debug("tessellated", slog.Int("meshes", len(meshes)), slog.Duration("elapsed", time.Since(start)))
			return nil
		},
	}
	cmd.Flags().IntVar(&cells, "cells", 0, "marching cubes resolution (default from config)")
	return cmd
}
