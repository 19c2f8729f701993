// Package todolist is the view-model behind the to-do screen: it loads the
// list through the query cache, keeps modal and form state, and runs the
// create/update/delete requests.
//
// All methods must be called from the Bubble Tea loop. Requests run inside
// the returned tea.Cmd and come back as messages passed to Update.
package todolist

import (
	"context"
	"errors"
	"io"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
)

// ListKey is the first element of the list's cache key.
const ListKey = "todoList"

// Backend is the part of the API the view-model uses.
type Backend interface {
	Todos(ctx context.Context) ([]model.Todo, error)
	CreateTodo(ctx context.Context, d model.Draft, userID int) error
	UpdateTodo(ctx context.Context, t model.Todo) error
	DeleteTodo(ctx context.Context, id int) error
}

// Options wire a ViewModel.
type Options struct {
	Backend Backend
	Session *model.Session
	Cache   *query.Client
	Logger  *log.Logger
}

// MutationMsg reports the end of a create, update or delete.
type MutationMsg struct {
	Op     Op
	Target model.Todo
	Err    *MutationError // nil on success
}

// ViewModel holds the state of the to-do screen.
type ViewModel struct {
	ctx     context.Context
	backend Backend
	session model.Session
	logger  *log.Logger
	list    *query.Query[[]model.Todo]

	listVersion   int
	add           Modal
	edit          Modal
	confirmDelete Modal
	draft         model.Draft
	editBuffer    model.Todo
	isMutating    bool
	lastErr       *MutationError
}

// New builds a view-model for the given session. It fails with
// ErrNoSession when the session has no token or no user.
func New(ctx context.Context, opts Options) (*ViewModel, error) {
	if !opts.Session.Valid() {
		return nil, ErrNoSession
	}
	if opts.Backend == nil {
		return nil, errors.New("todolist: nil backend")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cache := opts.Cache
	if cache == nil {
		cache = query.NewClient(0, logger)
	}
	vm := &ViewModel{
		ctx:         ctx,
		backend:     opts.Backend,
		session:     *opts.Session,
		logger:      logger.WithPrefix("todolist"),
		listVersion: 1,
	}
	vm.list = query.New(ctx, cache, opts.Backend.Todos)
	return vm, nil
}

func (vm *ViewModel) key() query.Key {
	return query.Key{ListKey, strconv.Itoa(vm.listVersion)}
}

// Init starts the first list fetch.
func (vm *ViewModel) Init() tea.Cmd { return vm.list.Evaluate(vm.key()) }

// Update applies list results and mutation results.
func (vm *ViewModel) Update(msg tea.Msg) tea.Cmd {
	if vm.list.Update(msg) {
		if r, ok := msg.(query.ResultMsg[[]model.Todo]); ok && r.Err != nil {
			vm.logger.Error("load todos", "key", []string(r.Key), "err", r.Err)
		}
		return nil
	}
	m, ok := msg.(MutationMsg)
	if !ok {
		return nil
	}
	vm.isMutating = false
	current := vm.showing(m)
	if m.Err != nil {
		if current {
			vm.lastErr = m.Err
		}
		vm.logger.Error("mutation failed", "op", m.Op, "id", m.Target.ID,
			"kind", m.Err.Kind, "status", m.Err.Status, "err", m.Err.Err)
		return nil
	}
	// The user may have closed the modal, or moved on to another one,
	// while the request was in flight.
	if current {
		switch m.Op {
		case OpCreate:
			vm.CloseAdd()
		case OpUpdate:
			vm.CloseEdit()
		case OpDelete:
			vm.CloseConfirmDelete()
		}
	}
	vm.listVersion++
	vm.logger.Debug("mutation ok", "op", m.Op, "id", m.Target.ID, "version", vm.listVersion)
	return vm.list.Evaluate(vm.key())
}

// showing reports whether the modal that started m is still open on the
// same todo.
func (vm *ViewModel) showing(m MutationMsg) bool {
	switch m.Op {
	case OpCreate:
		return vm.add.IsOpen()
	case OpUpdate:
		return vm.edit.IsOpen() && vm.editBuffer.ID == m.Target.ID
	case OpDelete:
		return vm.confirmDelete.IsOpen() && vm.editBuffer.ID == m.Target.ID
	}
	return false
}

// Refresh drops the cached list and fetches it again.
func (vm *ViewModel) Refresh() tea.Cmd { return vm.list.Refetch() }

// Todos returns the last loaded list, in server order.
func (vm *ViewModel) Todos() []model.Todo { return vm.list.Result().Data }

// Loading reports whether the list fetch is pending.
func (vm *ViewModel) Loading() bool { return vm.list.Result().IsLoading }

// LoadErr is the error of the last list fetch, if it failed.
func (vm *ViewModel) LoadErr() error { return vm.list.Result().Err }

func (vm *ViewModel) Version() int              { return vm.listVersion }
func (vm *ViewModel) Session() model.Session    { return vm.session }
func (vm *ViewModel) AddModal() Modal           { return vm.add }
func (vm *ViewModel) EditModal() Modal          { return vm.edit }
func (vm *ViewModel) ConfirmDeleteModal() Modal { return vm.confirmDelete }
func (vm *ViewModel) Draft() model.Draft        { return vm.draft }
func (vm *ViewModel) EditBuffer() model.Todo    { return vm.editBuffer }
func (vm *ViewModel) IsMutating() bool          { return vm.isMutating }
func (vm *ViewModel) LastError() *MutationError { return vm.lastErr }

// Find returns the loaded todo with the given id.
func (vm *ViewModel) Find(id int) (model.Todo, bool) {
	for _, t := range vm.Todos() {
		if t.ID == id {
			return t, true
		}
	}
	return model.Todo{}, false
}

// --- modal transitions ---

func (vm *ViewModel) OpenAdd() {
	vm.lastErr = nil
	vm.add = Open
}

// CloseAdd hides the add form and clears the draft.
func (vm *ViewModel) CloseAdd() {
	vm.draft = model.Draft{}
	vm.lastErr = nil
	vm.add = Closed
}

// OpenEdit copies t into the edit buffer.
func (vm *ViewModel) OpenEdit(t model.Todo) {
	vm.editBuffer = t
	vm.lastErr = nil
	vm.edit = Open
}

// CloseEdit hides the edit form and resets the buffer to the empty item.
func (vm *ViewModel) CloseEdit() {
	vm.editBuffer = model.Todo{}
	vm.lastErr = nil
	vm.edit = Closed
}

// OpenConfirmDelete selects t as the delete target.
func (vm *ViewModel) OpenConfirmDelete(t model.Todo) {
	vm.editBuffer = t
	vm.lastErr = nil
	vm.confirmDelete = Open
}

func (vm *ViewModel) CloseConfirmDelete() {
	vm.editBuffer = model.Todo{}
	vm.lastErr = nil
	vm.confirmDelete = Closed
}

// --- form input ---

func (vm *ViewModel) SetDraftField(f Field, v string) {
	switch f {
	case FieldTitle:
		vm.draft.Title = v
	case FieldDescription:
		vm.draft.Description = v
	}
}

func (vm *ViewModel) SetEditField(f Field, v string) {
	switch f {
	case FieldTitle:
		vm.editBuffer.Title = v
	case FieldDescription:
		vm.editBuffer.Description = v
	}
}

// --- mutations ---

// SubmitAdd creates the draft for the session user.
func (vm *ViewModel) SubmitAdd() tea.Cmd {
	if vm.isMutating {
		return nil
	}
	backend, draft, userID := vm.backend, vm.draft, vm.session.User.ID
	target := model.Todo{Title: draft.Title, Description: draft.Description}
	return vm.mutate(OpCreate, target, func(ctx context.Context) error {
		return backend.CreateTodo(ctx, draft, userID)
	})
}

// SubmitEdit sends the edit buffer. It does nothing without a selection.
func (vm *ViewModel) SubmitEdit() tea.Cmd {
	if vm.isMutating {
		return nil
	}
	target := vm.editBuffer
	if target.ID == 0 {
		vm.logger.Warn("submit edit without a selected todo")
		return nil
	}
	backend := vm.backend
	return vm.mutate(OpUpdate, target, func(ctx context.Context) error {
		return backend.UpdateTodo(ctx, target)
	})
}

// ConfirmRemove deletes the selected todo.
func (vm *ViewModel) ConfirmRemove() tea.Cmd {
	if vm.isMutating {
		return nil
	}
	target := vm.editBuffer
	if target.ID == 0 {
		vm.logger.Warn("remove without a selected todo")
		return nil
	}
	backend := vm.backend
	return vm.mutate(OpDelete, target, func(ctx context.Context) error {
		return backend.DeleteTodo(ctx, target.ID)
	})
}

func (vm *ViewModel) mutate(op Op, target model.Todo, call func(context.Context) error) tea.Cmd {
	vm.isMutating = true
	vm.lastErr = nil
	ctx := vm.ctx
	return func() tea.Msg {
		return MutationMsg{Op: op, Target: target, Err: classify(op, call(ctx))}
	}
}
