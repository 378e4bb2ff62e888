package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chazu/asphalt/pkg/snapshot"
	"github.com/chazu/asphalt/pkg/snapshot/store"
)

func (c *cli) snapshotCmd() *cobra.Command {
	var storePath string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Validate snapshot files and manage the snapshot store",
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", "", "snapshot store database (default from config)")

	openStore := func(ctx context.Context) (*store.Store, error) {
		path := storePath
		if path == "" {
			path = c.cfg.Snapshot.StorePath
		}
		return store.Open(ctx, path)
	}

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a snapshot file against the schema and graph invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d nodes, %d segments, %d trees)\n",
				args[0], g.NodeCount(), g.SegmentCount(), g.TreeCount())
			return nil
		},
	}

	var name string
	save := &cobra.Command{
		Use:   "save <file>",
		Short: "Store a snapshot file under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}
			// Reject inconsistent graphs before they reach the store.
			if _, err := snapshot.Decode(doc); err != nil {
				return err
			}
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			id, err := st.Save(cmd.Context(), name, doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	save.Flags().StringVarP(&name, "name", "n", "", "snapshot name")
	_ = save.MarkFlagRequired("name")

	var (
		out  string
		byID string
	)
	load := &cobra.Command{
		Use:   "load [name]",
		Short: "Write the latest snapshot with a name, or the one with --id, to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (byID != "") {
				return fmt.Errorf("give either a name or --id")
			}
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			var doc snapshot.Document
			if byID != "" {
				id, perr := uuid.Parse(byID)
				if perr != nil {
					return fmt.Errorf("--id: %w", perr)
				}
				doc, err = st.LoadID(cmd.Context(), id)
			} else {
				doc, err = st.Load(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if err := snapshot.WriteFile(out, doc, snapshot.Options{Compress: c.cfg.Snapshot.Compress}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	load.Flags().StringVarP(&out, "out", "o", "", "destination file")
	load.Flags().StringVar(&byID, "id", "", "snapshot id")
	_ = load.MarkFlagRequired("out")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			entries, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED\tNODES\tSEGMENTS\tBYTES")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
					e.ID, e.Name, e.CreatedAt.Format(time.RFC3339), e.Nodes, e.Segments, e.Bytes)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(validate, save, load, list)
	return cmd
}
