package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kanban-board/internal/board"
	"kanban-board/internal/boardsync"
	"kanban-board/internal/dnd"

	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("KANBAN_PASSWORD")
			}
			if err := c.syncer.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or KANBAN_PASSWORD)")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("KANBAN_PASSWORD")
			}
			if err := c.syncer.Register(cmd.Context(), email, password, name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password, 6 to 50 characters (or KANBAN_PASSWORD)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.syncer.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show every column and its cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), c.syncer.Store().Board())
			return nil
		},
	}
}

func (c *cli) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Find cards whose title or content contains the query",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireAuth(); err != nil {
				return err
			}
			cards, err := c.syncer.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, card := range cards {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d [%d] %s\n", card.ID, card.ColumnID, card.Title)
			}
			return nil
		},
	}
}

func (c *cli) columnCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "column", Short: "Manage columns"}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <title>",
		Short: "Append a column",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			col, err := c.syncer.CreateColumn(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created column %d\n", col.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a column",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			return c.syncer.UpdateColumn(cmd.Context(), id, board.ColumnPatch{Title: &title})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a column and its cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			return c.syncer.DeleteColumn(cmd.Context(), id)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "move <id> <onto-id>",
		Short: "Drop a column onto another column's position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			onto, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			ctrl := dnd.New(c.syncer.Store(), c.syncer, c.syncer)
			if err := ctrl.DragStart(dnd.Column(id)); err != nil {
				return err
			}
			ctrl.DragOver(dnd.Column(onto))
			return ctrl.DragEnd(cmd.Context(), dnd.Column(onto))
		},
	})
	return cmd
}

func (c *cli) cardCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "card", Short: "Manage cards"}

	var content string
	add := &cobra.Command{
		Use:   "add <column-id> <title>",
		Short: "Append a card to a column",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			columnID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			card, err := c.syncer.CreateCard(cmd.Context(), columnID, strings.Join(args[1:], " "), content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created card %d\n", card.ID)
			return nil
		},
	}
	add.Flags().StringVar(&content, "content", "", "card details")
	cmd.AddCommand(add)

	var title, details string
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a card's title or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch board.CardPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("content") {
				patch.Content = &details
			}
			if patch.IsEmpty() {
				return board.ErrEmptyPatch
			}
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			return c.syncer.UpdateCard(cmd.Context(), id, patch)
		},
	}
	edit.Flags().StringVar(&title, "title", "", "new title")
	edit.Flags().StringVar(&details, "content", "", "new content")
	cmd.AddCommand(edit)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			return c.syncer.DeleteCard(cmd.Context(), id)
		},
	})

	var toColumn, onto string
	move := &cobra.Command{
		Use:   "move <id>",
		Short: "Drag a card onto another card or a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var target dnd.Item
			switch {
			case onto != "":
				cardID, err := parseID(onto)
				if err != nil {
					return err
				}
				target = dnd.Card(cardID)
			case toColumn != "":
				columnID, err := parseID(toColumn)
				if err != nil {
					return err
				}
				target = dnd.Column(columnID)
			default:
				return fmt.Errorf("one of --onto or --column is required")
			}
			if err := c.loadBoard(cmd); err != nil {
				return err
			}

			ctrl := dnd.New(c.syncer.Store(), c.syncer, c.syncer)
			if err := ctrl.DragStart(dnd.Card(id)); err != nil {
				return err
			}
			ctrl.DragOver(target)
			return ctrl.DragEnd(cmd.Context(), target)
		},
	}
	move.Flags().StringVar(&toColumn, "column", "", "drop on this column's empty area")
	move.Flags().StringVar(&onto, "onto", "", "drop on this card")
	cmd.AddCommand(move)

	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the board whenever another client changes it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.loadBoard(cmd); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printBoard(out, c.syncer.Store().Board())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := c.syncer.Watch(ctx, func() {
				fmt.Fprintln(out, "---")
				printBoard(out, c.syncer.Store().Board())
			})
			if errors.Is(err, boardsync.ErrSessionExpired) {
				return errNotLoggedIn
			}
			return err
		},
	}
}
