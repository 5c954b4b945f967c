package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chepyr/go-kanban/internal/kanban"
	"github.com/chepyr/go-kanban/internal/persist"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/spf13/cobra"
)

// boardCommand is a subcommand that runs against one selected board.
type boardCommand func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error

func (a *app) onBoard(board *string, run boardCommand) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		s, _, err := a.openBoard(ctx, *board)
		if err != nil {
			return err
		}
		return run(ctx, cmd, s, args)
	}
}

func reportMove(w io.Writer, what string, m *persist.Mutation) {
	if m == nil {
		fmt.Fprintf(w, "%s already in place\n", what)
		return
	}
	fmt.Fprintf(w, "Moved %s (%s %s)\n", what, m.Kind, m.Status)
}

// reportFailure names the lists and cards a failed move could not save.
func reportFailure(w io.Writer, err error, lists []models.List, cards []models.Card) {
	be, ok := persist.IsBatchError(err)
	if !ok {
		return
	}
	for _, l := range lists {
		if be.Failed(l.ID) {
			fmt.Fprintf(w, "  not saved: list %s  (%s)\n", l.Title, shortID(l.ID))
		}
	}
	for _, c := range cards {
		if be.Failed(c.ID) {
			fmt.Fprintf(w, "  not saved: card %s  (%s)\n", c.Title, shortID(c.ID))
		}
	}
	if !be.Compensated {
		fmt.Fprintln(w, "  some positions could not be restored, run `kanban show` to see the saved board")
	}
}

func (a *app) listCmd() *cobra.Command {
	var board string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage the lists of a board",
	}
	cmd.PersistentFlags().StringVarP(&board, "board", "b", "", "board id, id prefix or title")
	_ = cmd.MarkPersistentFlagRequired("board")

	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Append a list to the board",
		Args:  cobra.ExactArgs(1),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			l, err := s.AddList(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added list %s  %s\n", shortID(l.ID), l.Title)
			return nil
		}),
	}

	rename := &cobra.Command{
		Use:   "rename <list> <title>",
		Short: "Rename a list",
		Args:  cobra.ExactArgs(2),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			l, err := findList(s.View(), args[0])
			if err != nil {
				return err
			}
			return s.RenameList(ctx, l.ID, args[1])
		}),
	}

	del := &cobra.Command{
		Use:   "delete <list>",
		Short: "Delete a list and its cards",
		Args:  cobra.ExactArgs(1),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			l, err := findList(s.View(), args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteList(ctx, l.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted list %s  %s\n", shortID(l.ID), l.Title)
			return nil
		}),
	}

	move := &cobra.Command{
		Use:   "move <list> <over-list>",
		Short: "Move a list to the position of another list",
		Args:  cobra.ExactArgs(2),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			l, err := findList(s.View(), args[0])
			if err != nil {
				return err
			}
			over, err := findList(s.View(), args[1])
			if err != nil {
				return err
			}
			m, err := s.MoveList(ctx, l.ID, over.ID.String())
			if err != nil {
				reportFailure(cmd.ErrOrStderr(), err, s.View().Lists(), nil)
				return err
			}
			reportMove(cmd.OutOrStdout(), "list "+l.Title, m)
			return nil
		}),
	}

	cmd.AddCommand(add, rename, del, move)
	return cmd
}

func (a *app) cardCmd() *cobra.Command {
	var board string
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage the cards of a board",
	}
	cmd.PersistentFlags().StringVarP(&board, "board", "b", "", "board id, id prefix or title")
	_ = cmd.MarkPersistentFlagRequired("board")

	var description string
	add := &cobra.Command{
		Use:   "add <list> <title>",
		Short: "Append a card to a list",
		Args:  cobra.ExactArgs(2),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			l, err := findList(s.View(), args[0])
			if err != nil {
				return err
			}
			c, err := s.AddCard(ctx, l.ID, args[1], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added card %s  %s\n", shortID(c.ID), c.Title)
			return nil
		}),
	}
	add.Flags().StringVarP(&description, "description", "d", "", "card description")

	var title, newDescription string
	edit := &cobra.Command{
		Use:   "edit <card>",
		Short: "Change the title or description of a card",
		Long:  "Edit changes only the fields whose flags are given. An empty --description clears it.",
		Args:  cobra.ExactArgs(1),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			c, err := findCard(s.View(), args[0])
			if err != nil {
				return err
			}
			var t, d *string
			if cmd.Flags().Changed("title") {
				t = &title
			}
			if cmd.Flags().Changed("description") {
				d = &newDescription
			}
			if t == nil && d == nil {
				return errors.New("nothing to change, pass --title or --description")
			}
			return s.EditCard(ctx, c.ID, t, d)
		}),
	}
	edit.Flags().StringVarP(&title, "title", "t", "", "new title")
	edit.Flags().StringVarP(&newDescription, "description", "d", "", "new description")

	del := &cobra.Command{
		Use:   "delete <card>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			c, err := findCard(s.View(), args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteCard(ctx, c.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted card %s  %s\n", shortID(c.ID), c.Title)
			return nil
		}),
	}

	cmd.AddCommand(add, edit, del)
	return cmd
}

func (a *app) moveCmd() *cobra.Command {
	var board string
	cmd := &cobra.Command{
		Use:   "move <card> <target>",
		Short: "Drag a card onto another card, a list or the end of a list",
		Long: "Move drops the card the way a drag would. The target is a card, list:<list>\n" +
			"to drop onto a list, or end:<list> to drop after its last card.",
		Args: cobra.ExactArgs(2),
		RunE: a.onBoard(&board, func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
			c, err := findCard(s.View(), args[0])
			if err != nil {
				return err
			}
			over, err := dropTarget(s.View(), args[1])
			if err != nil {
				return err
			}
			m, err := s.MoveCard(ctx, c.ID, over)
			if err != nil {
				reportFailure(cmd.ErrOrStderr(), err, nil, s.View().Cards())
				return err
			}
			reportMove(cmd.OutOrStdout(), "card "+c.Title, m)
			if m != nil {
				moved, _ := s.View().Card(c.ID)
				printPlacement(cmd.OutOrStdout(), s, moved)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&board, "board", "b", "", "board id, id prefix or title")
	_ = cmd.MarkFlagRequired("board")
	return cmd
}

func printPlacement(w io.Writer, s *kanban.Session, c models.Card) {
	l, ok := s.View().List(c.ListID)
	if !ok {
		return
	}
	fmt.Fprintf(w, "Now %d of %d in %s\n", c.Position+1, len(s.View().CardsOf(l.ID)), l.Title)
}
