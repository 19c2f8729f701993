package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todolist"
	"github.com/Makepad-fr/tada/internal/tui"
	"github.com/Makepad-fr/tada/internal/ui"
)

// settle runs cmd and every follow-up the view-model returns, outside a
// tea.Program.
func settle(vm *todolist.ViewModel, cmd tea.Cmd) {
	for cmd != nil {
		cmd = vm.Update(cmd())
	}
}

// mutate delivers the result of a create, update or delete. The list
// refetch the view-model starts on success is dropped: the command exits
// right after.
func mutate(vm *todolist.ViewModel, cmd tea.Cmd) error {
	if cmd != nil {
		vm.Update(cmd())
	}
	if e := vm.LastError(); e != nil {
		return e
	}
	return nil
}

// viewModel builds the to-do view-model for the stored session.
func (a *app) viewModel(ctx context.Context) (*todolist.ViewModel, error) {
	rec, err := a.requireSession()
	if err != nil {
		return nil, err
	}
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	return todolist.New(ctx, todolist.Options{
		Backend: c.WithToken(rec.JWT),
		Session: &rec.Session,
		Cache:   a.cache,
		Logger:  a.logger,
	})
}

// loaded returns a view-model whose list has been fetched.
func (a *app) loaded(ctx context.Context) (*todolist.ViewModel, error) {
	vm, err := a.viewModel(ctx)
	if err != nil {
		return nil, err
	}
	settle(vm, vm.Init())
	if err := vm.LoadErr(); err != nil {
		return nil, fmt.Errorf("load todos: %w", err)
	}
	return vm, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, usagef("not a todo id: %s", s)
	}
	return id, nil
}

func (a *app) find(vm *todolist.ViewModel, id int) (model.Todo, error) {
	t, ok := vm.Find(id)
	if !ok {
		ui.Muted(a.streams.Err, "Hint: run `tada ls --plain` to see valid ids")
		return model.Todo{}, usagef("no todo with id %d", id)
	}
	return t, nil
}

func (a *app) lsCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Browse your todos",
		Long: `Open the interactive list. Keys: a add, e edit, d remove, r refresh, q quit.
With --plain the list is printed once and the command exits.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if plain {
				return a.printList(cmd.Context())
			}
			return a.interactive(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the list instead of opening the interactive view")
	return cmd
}

func (a *app) interactive(ctx context.Context) error {
	// The program owns the terminal: logs go to the file.
	if a.cfg.Log.File != "" {
		f, err := logging.RedirectToFile(a.logger, a.cfg.Log.File)
		if err != nil {
			return err
		}
		defer f.Close()
	}
	vm, err := a.viewModel(ctx)
	if err != nil {
		return err
	}
	return tui.Run(ctx, vm)
}

func (a *app) printList(ctx context.Context) error {
	vm, err := a.loaded(ctx)
	if err != nil {
		return err
	}
	t := ui.Current()
	todos := vm.Todos()
	s := vm.Session()

	who := s.User.Username
	if who == "" {
		who = fmt.Sprintf("user %d", s.User.ID)
	}
	lines := []string{
		fmt.Sprintf("%s  %s  %s %d", ui.C(t.Title, "Todos"), ui.C(t.Muted, who), ui.C(t.Accent, "Total"), len(todos)),
		"",
	}
	if len(todos) == 0 {
		lines = append(lines, ui.C(t.Muted, tui.EmptyText))
	}
	for _, td := range todos {
		lines = append(lines, fmt.Sprintf("%s %s", ui.C(t.Accent, t.Bullet), ui.Truncate(fmt.Sprintf("%d - %s", td.ID, td.Title), 80)))
		if d := strings.TrimSpace(td.Description); d != "" {
			lines = append(lines, "  "+ui.Dim(ui.Truncate(d, 78)))
		}
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: add with `tada add Buy milk`"))
	ui.Panel(a.streams.Out, lines)
	return nil
}

func (a *app) addCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a todo (the title can be several words)",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return usagef("add: empty title")
			}
			vm, err := a.viewModel(cmd.Context())
			if err != nil {
				return err
			}
			vm.OpenAdd()
			vm.SetDraftField(todolist.FieldTitle, title)
			vm.SetDraftField(todolist.FieldDescription, desc)
			if err := mutate(vm, vm.SubmitAdd()); err != nil {
				return err
			}
			ui.OK(a.streams.Out, "added")
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "description")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title or description of a todo",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			titleSet, descSet := cmd.Flags().Changed("title"), cmd.Flags().Changed("description")
			if !titleSet && !descSet {
				return usagef("edit: nothing to change; pass --title or --description")
			}
			if titleSet && strings.TrimSpace(title) == "" {
				return usagef("edit: empty title")
			}
			vm, err := a.loaded(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.find(vm, id)
			if err != nil {
				return err
			}
			vm.OpenEdit(t)
			if titleSet {
				vm.SetEditField(todolist.FieldTitle, strings.TrimSpace(title))
			}
			if descSet {
				vm.SetEditField(todolist.FieldDescription, desc)
			}
			if err := mutate(vm, vm.SubmitEdit()); err != nil {
				return err
			}
			ui.OK(a.streams.Out, "updated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&desc, "description", "d", "", "new description")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a todo",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			vm, err := a.loaded(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.find(vm, id)
			if err != nil {
				return err
			}
			vm.OpenConfirmDelete(t)
			if err := mutate(vm, vm.ConfirmRemove()); err != nil {
				return err
			}
			ui.OK(a.streams.Out, "removed")
			return nil
		},
	}
}

// Argument validators that report usage errors.

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("usage: %s", cmd.UseLine())
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: %s", cmd.UseLine())
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usagef("usage: %s", cmd.UseLine())
		}
		return nil
	}
}
