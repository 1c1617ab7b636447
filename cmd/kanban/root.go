package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"kanban-board/internal/apiclient"
	"kanban-board/internal/board"
	"kanban-board/internal/boardsync"
	"kanban-board/internal/clientconfig"
	"kanban-board/internal/session"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run `kanban login` first")

// cli is built once per invocation by the root command's pre-run hook.
type cli struct {
	configPath string
	serverURL  string
	tokenPath  string
	verbose    bool

	cfg     clientconfig.Config
	session *session.State
	syncer  *boardsync.Syncer
}

// execute runs one CLI invocation. Notices are printed even when the command
// fails, since that is when they matter.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	c.teardown(stderr)
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "kanban",
		Short:        "Work with your kanban board from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&c.serverURL, "server", "", "board server URL")
	root.PersistentFlags().StringVar(&c.tokenPath, "token-path", "", "where the access token is stored")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log requests and sync decisions")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.boardCmd(),
		c.searchCmd(),
		c.columnCmd(),
		c.cardCmd(),
		c.watchCmd(),
	)
	return root
}

func (c *cli) setup() error {
	paths, err := clientconfig.DefaultPaths()
	if err != nil {
		return err
	}
	configPath := c.configPath
	if configPath == "" {
		configPath = paths.ConfigPath
	}

	cfg, err := clientconfig.Load(configPath, clientconfig.Default(paths.TokenPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if c.serverURL != "" {
		cfg.Server.URL = c.serverURL
	}
	if c.tokenPath != "" {
		cfg.Session.TokenPath = c.tokenPath
	}
	c.cfg = cfg

	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}
	if parsed, err := log.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}

	c.session, err = session.Open(cfg.Session.TokenPath)
	if err != nil {
		return err
	}
	api := apiclient.New(cfg.Server.URL, c.session, apiclient.WithTimeout(cfg.Server.RequestTimeout.Duration))
	c.syncer = boardsync.New(api, board.NewStore(), c.session, boardsync.WithEditDelay(cfg.Editing.Debounce.Duration))
	return nil
}

// teardown persists edits still waiting and prints the notices raised during
// the command.
func (c *cli) teardown(stderr io.Writer) {
	if c.syncer == nil {
		return
	}
	c.syncer.FlushEdits()
	c.syncer.Close()
	for _, n := range c.session.Drain() {
		fmt.Fprintf(stderr, "[%s] %s\n", n.Level, n.Message)
	}
}

func (c *cli) requireAuth() error {
	if !c.session.Authenticated() {
		return errNotLoggedIn
	}
	return nil
}

// loadBoard is the common start of every board command.
func (c *cli) loadBoard(cmd *cobra.Command) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	return c.syncer.Load(cmd.Context())
}

func parseID(arg string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return uint(n), nil
}

func printBoard(w io.Writer, columns []board.BoardColumn) {
	if len(columns) == 0 {
		fmt.Fprintln(w, "(empty board)")
		return
	}
	for _, col := range columns {
		fmt.Fprintf(w, "[%d] %s\n", col.ID, col.Title)
		for _, card := range col.Cards {
			fmt.Fprintf(w, "    #%d %s\n", card.ID, card.Title)
			if card.Content != "" {
				fmt.Fprintf(w, "        %s\n", card.Content)
			}
		}
	}
}
