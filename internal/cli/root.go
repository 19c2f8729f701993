// Package cli is the tada command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/api"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/session"
	"github.com/Makepad-fr/tada/internal/todolist"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/validation"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Streams are the process's standard streams.
type Streams struct {
	In       io.Reader
	Out, Err io.Writer
}

// usageError is a mistake on the command line; it exits with ExitUsage.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// app is the state shared by every command once the root pre-run loaded it.
type app struct {
	streams Streams

	configPath string
	theme      string
	logLevel   string

	cfg    *config.Config
	logger *log.Logger
	store  *session.Store
	cache  *query.Client
}

// Run executes args and returns the exit code (0 ok, 1 error, 2 usage).
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return RunContext(ctx, args, Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
}

// RunContext is Run with explicit streams.
func RunContext(ctx context.Context, args []string, s Streams) int {
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	a := &app{streams: s}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(s.In)
	root.SetOut(s.Out)
	root.SetErr(s.Err)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	a.report(err)

	var (
		ue *usageError
		ve validation.Errors
	)
	if errors.As(err, &ue) || errors.As(err, &ve) || strings.HasPrefix(err.Error(), "unknown command") {
		return ExitUsage
	}
	return ExitError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tada",
		Short: "A terminal client for your to-do list",
		Long: `tada keeps your to-do list on a remote API and lets you browse and edit it
from the terminal.

Examples:
  tada auth login -i alice@example.com
  tada ls
  tada add Buy milk -d 2%
  tada edit 3 -t "Buy oat milk"
  tada rm 3`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return &usageError{}
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.config/tada/config.yaml)")
	pf.StringVar(&a.theme, "theme", "", "output theme: "+strings.Join(ui.Themes, ", "))
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(a.lsCmd(), a.addCmd(), a.editCmd(), a.rmCmd(), a.authCmd())
	return root
}

// setup loads configuration and builds the shared services.
func (a *app) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath, ".env")
	if err != nil {
		return err
	}
	if a.theme != "" {
		cfg.UI.Theme = a.theme
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := ui.SetTheme(cfg.UI.Theme); err != nil {
		return &usageError{msg: err.Error()}
	}
	logger, err := logging.New(a.streams.Err, logging.Options{Level: cfg.Log.Level, Prefix: "tada"})
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	store, err := session.NewStore(cfg.Session.Dir)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.store = cfg, logger, store
	a.cache = query.NewClient(cfg.Cache.TTL, logger)
	return nil
}

func (a *app) client() (*api.Client, error) {
	return api.New(api.Options{
		BaseURL:      a.cfg.API.BaseURL,
		Timeout:      a.cfg.API.Timeout,
		AcceptAny2xx: a.cfg.API.AcceptAny2xx,
		Logger:       a.logger,
	})
}

// requireSession refuses to go on without a usable session.
func (a *app) requireSession() (*session.Record, error) {
	rec, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.JWT == "" {
		return nil, usagef("no session found. Set %s or run `tada auth login`", session.EnvToken)
	}
	if rec.User.ID == 0 {
		return nil, usagef("session has no user id. Set %s or run `tada auth login`", session.EnvUserID)
	}
	return rec, nil
}

// report prints err the way the user should see it.
func (a *app) report(err error) {
	w := a.streams.Err
	var (
		ue *usageError
		me *todolist.MutationError
		ve validation.Errors
		se *api.StatusError
	)
	switch {
	case errors.As(err, &ue):
		if ue.msg != "" {
			ui.Fail(w, ue.msg)
		}
	case errors.As(err, &ve):
		fields := make([]string, 0, len(ve))
		for f := range ve {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			ui.Fail(w, ve[f])
		}
	case errors.As(err, &me):
		ui.Fail(w, me.Message())
	case errors.As(err, &se) && se.Message != "":
		ui.Fail(w, se.Message)
	default:
		ui.Fail(w, err.Error())
	}
}
