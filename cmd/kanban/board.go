package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chepyr/go-kanban/internal/position"
	"github.com/chepyr/go-kanban/internal/snapshot"
	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/spf13/cobra"
)

func (a *app) boardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List your boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			boards, err := s.Boards(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(boards) == 0 {
				fmt.Fprintln(out, "No boards yet, create one with `kanban board create <title>`")
				return nil
			}
			for _, b := range boards {
				fmt.Fprintf(out, "%s  %s\n", shortID(b.ID), b.Title)
			}
			return nil
		},
	}
}

func (a *app) boardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Create, rename and delete boards",
	}

	create := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			b, err := s.CreateBoard(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created board %s  %s\n", shortID(b.ID), b.Title)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <board> <title>",
		Short: "Rename a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			s, b, err := a.openBoard(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.RenameBoard(ctx, b.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed board %s\n", shortID(b.ID))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <board>",
		Short: "Delete a board with its lists and cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			s, b, err := a.openBoard(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteBoard(ctx, b.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted board %s  %s\n", shortID(b.ID), b.Title)
			return nil
		},
	}

	cmd.AddCommand(create, rename, del)
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var fromSnapshot bool
	cmd := &cobra.Command{
		Use:   "show <board>",
		Short: "Print a board with its lists and cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if fromSnapshot {
				return a.showSnapshot(ctx, cmd.OutOrStdout(), args[0])
			}
			s, b, err := a.openBoard(ctx, args[0])
			if err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), b, s.View().Lists(), s.View().Cards())
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromSnapshot, "snapshot", false, "print the last exported snapshot from S3 instead")
	return cmd
}

func (a *app) showSnapshot(ctx context.Context, w io.Writer, ref string) error {
	st, sess, err := a.store()
	if err != nil {
		return err
	}
	boards, err := st.SelectBoards(ctx, store.User(sess.UserID))
	if err != nil {
		return err
	}
	b, err := findBoard(boards, ref)
	if err != nil {
		return err
	}
	objects, err := a.snapshots(ctx)
	if err != nil {
		return err
	}
	snap, err := objects.Load(ctx, b.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Snapshot taken %s\n", snap.TakenAt.Local().Format("2006-01-02 15:04"))
	printBoard(w, snap.Board, snap.Lists, snap.Cards)
	return nil
}

func printBoard(w io.Writer, b models.Board, lists []models.List, cards []models.Card) {
	fmt.Fprintf(w, "%s  (%s)\n", b.Title, shortID(b.ID))
	if len(lists) == 0 {
		fmt.Fprintln(w, "  no lists")
		return
	}
	for _, l := range lists {
		fmt.Fprintf(w, "\n[%d] %s  (%s)\n", l.Position, l.Title, shortID(l.ID))
		for _, c := range position.Siblings(cards, l.ID) {
			fmt.Fprintf(w, "    %d. %s  (%s)\n", c.Position, c.Title, shortID(c.ID))
			if c.Description != nil {
				fmt.Fprintf(w, "       %s\n", *c.Description)
			}
		}
	}
}

func (a *app) exportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <board>",
		Short: "Write a JSON snapshot of a board to S3, a file or stdout",
		Long: "Export writes a JSON snapshot of the board. When an s3 bucket is configured the\n" +
			"snapshot is uploaded there, otherwise it goes to --out or stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			st, sess, err := a.store()
			if err != nil {
				return err
			}
			boards, err := st.SelectBoards(ctx, store.User(sess.UserID))
			if err != nil {
				return err
			}
			b, err := findBoard(boards, args[0])
			if err != nil {
				return err
			}
			snap, err := snapshot.Take(ctx, st, b.ID)
			if err != nil {
				return err
			}

			if outPath == "" && a.cfg.S3.Enabled() {
				objects, err := a.snapshots(ctx)
				if err != nil {
					return err
				}
				key, err := objects.Save(ctx, snap)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to s3://%s/%s\n", a.cfg.S3.Bucket, key)
				return nil
			}

			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the snapshot to this file instead of S3 (- for stdout)")
	return cmd
}
