package todolist

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/api"
	"github.com/Makepad-fr/tada/internal/api/apitest"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
)

// drain runs cmd and every follow-up command the view-model returns.
func drain(vm *ViewModel, cmd tea.Cmd) {
	for cmd != nil {
		cmd = vm.Update(cmd())
	}
}

func newViewModel(t *testing.T, srv *apitest.Server) *ViewModel {
	t.Helper()
	c, err := api.New(api.Options{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	vm, err := New(context.Background(), Options{
		Backend: c.WithToken(apitest.Token),
		Session: &model.Session{JWT: apitest.Token, User: srv.User()},
		Cache:   query.NewClient(time.Minute, nil),
	})
	require.NoError(t, err)
	drain(vm, vm.Init())
	return vm
}

func TestNew_RequiresSession(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: &stubBackend{}})
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = New(context.Background(), Options{Backend: &stubBackend{}, Session: &model.Session{JWT: "x"}})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadList_ServerOrder(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 9, Title: "z"}, model.Todo{ID: 3, Title: "a"})
	vm := newViewModel(t, srv)

	assert.False(t, vm.Loading())
	assert.NoError(t, vm.LoadErr())
	assert.Equal(t, []model.Todo{{ID: 9, Title: "z"}, {ID: 3, Title: "a"}}, vm.Todos())
	assert.Equal(t, 1, vm.Version())
}

func TestLoadList_PendingUntilResult(t *testing.T) {
	vm, err := New(context.Background(), Options{
		Backend: &stubBackend{todos: []model.Todo{{ID: 1, Title: "a"}}},
		Session: &model.Session{JWT: "t", User: model.User{ID: 1}},
	})
	require.NoError(t, err)

	cmd := vm.Init()
	require.NotNil(t, cmd)
	assert.True(t, vm.Loading())
	assert.Empty(t, vm.Todos())

	vm.Update(cmd())
	assert.False(t, vm.Loading())
	assert.Len(t, vm.Todos(), 1)
}

func TestSubmitAdd_Success(t *testing.T) {
	srv := apitest.New(t)
	vm := newViewModel(t, srv)

	vm.OpenAdd()
	vm.SetDraftField(FieldTitle, "Buy milk")
	vm.SetDraftField(FieldDescription, "2%")

	cmd := vm.SubmitAdd()
	require.NotNil(t, cmd)
	assert.True(t, vm.IsMutating())

	drain(vm, cmd)

	assert.False(t, vm.IsMutating())
	assert.Equal(t, Closed, vm.AddModal())
	assert.Equal(t, model.Draft{}, vm.Draft())
	assert.Equal(t, 2, vm.Version())
	assert.Nil(t, vm.LastError())
	assert.Equal(t, []model.Todo{{ID: 1, Title: "Buy milk", Description: "2%"}}, vm.Todos())
}

func TestSubmitAdd_FailureKeepsModal(t *testing.T) {
	srv := apitest.New(t)
	srv.SetStatus("POST /todos", http.StatusInternalServerError)
	vm := newViewModel(t, srv)

	vm.OpenAdd()
	vm.SetDraftField(FieldTitle, "Buy milk")
	drain(vm, vm.SubmitAdd())

	assert.False(t, vm.IsMutating())
	assert.Equal(t, Open, vm.AddModal())
	assert.Equal(t, model.Draft{Title: "Buy milk"}, vm.Draft())
	assert.Equal(t, 1, vm.Version())
	require.NotNil(t, vm.LastError())
	assert.Equal(t, KindStatus, vm.LastError().Kind)
	assert.Equal(t, http.StatusInternalServerError, vm.LastError().Status)
}

func TestSubmitAdd_Non200SuccessIsFailure(t *testing.T) {
	srv := apitest.New(t)
	srv.SetStatus("POST /todos", http.StatusCreated)
	vm := newViewModel(t, srv)

	vm.OpenAdd()
	drain(vm, vm.SubmitAdd())

	assert.Equal(t, Open, vm.AddModal())
	assert.Equal(t, 1, vm.Version())
	require.NotNil(t, vm.LastError())
	assert.Equal(t, http.StatusCreated, vm.LastError().Status)
}

func TestSubmitEdit(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 7, Title: "old", Description: "d"})
	vm := newViewModel(t, srv)

	vm.OpenEdit(vm.Todos()[0])
	assert.Equal(t, model.Todo{ID: 7, Title: "old", Description: "d"}, vm.EditBuffer())
	vm.SetEditField(FieldTitle, "new")
	drain(vm, vm.SubmitEdit())

	assert.Equal(t, Closed, vm.EditModal())
	assert.Equal(t, model.Todo{}, vm.EditBuffer())
	assert.Equal(t, 2, vm.Version())
	assert.Equal(t, []model.Todo{{ID: 7, Title: "new", Description: "d"}}, vm.Todos())
}

func TestSubmitEdit_WithoutSelection(t *testing.T) {
	vm := newViewModel(t, apitest.New(t))
	assert.Nil(t, vm.SubmitEdit())
	assert.False(t, vm.IsMutating())
}

func TestCloseEdit_AlwaysResets(t *testing.T) {
	vm := newViewModel(t, apitest.New(t))
	vm.OpenEdit(model.Todo{ID: 3, Title: "x", Description: "y"})
	vm.SetEditField(FieldDescription, "changed")
	vm.CloseEdit()
	assert.Equal(t, model.Todo{ID: 0, Title: "", Description: ""}, vm.EditBuffer())
	assert.Equal(t, Closed, vm.EditModal())

	vm.CloseEdit()
	assert.Equal(t, model.Todo{}, vm.EditBuffer())
}

func TestOpenEditThenClose_NoMutation(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 1, Title: "keep"})
	vm := newViewModel(t, srv)
	before := len(srv.Requests())

	vm.OpenEdit(vm.Todos()[0])
	vm.SetEditField(FieldTitle, "discarded")
	vm.CloseEdit()

	assert.Len(t, srv.Requests(), before)
	assert.Equal(t, []model.Todo{{ID: 1, Title: "keep"}}, srv.Todos())
}

func TestConfirmRemove_Success(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 42, Title: "gone"})
	vm := newViewModel(t, srv)

	vm.OpenConfirmDelete(vm.Todos()[0])
	drain(vm, vm.ConfirmRemove())

	assert.Equal(t, Closed, vm.ConfirmDeleteModal())
	assert.Equal(t, 2, vm.Version())
	assert.Empty(t, vm.Todos())
}

func TestConfirmRemove_NotFound(t *testing.T) {
	srv := apitest.New(t)
	vm := newViewModel(t, srv)

	vm.OpenConfirmDelete(model.Todo{ID: 42, Title: "ghost"})
	drain(vm, vm.ConfirmRemove())

	assert.Equal(t, Open, vm.ConfirmDeleteModal())
	assert.Equal(t, 1, vm.Version())
	assert.Equal(t, 42, vm.EditBuffer().ID)
	require.NotNil(t, vm.LastError())
	assert.Equal(t, http.StatusNotFound, vm.LastError().Status)
	assert.Contains(t, vm.LastError().Message(), "404")
}

func TestLateResultKeepsOtherModal(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 1, Title: "one"}, model.Todo{ID: 2, Title: "two"})
	vm := newViewModel(t, srv)

	vm.OpenConfirmDelete(vm.Todos()[0])
	pending := vm.ConfirmRemove()
	require.NotNil(t, pending)
	vm.CloseConfirmDelete()

	vm.OpenEdit(vm.Todos()[1])
	vm.SetEditField(FieldTitle, "two edited")

	drain(vm, pending)

	assert.Equal(t, Open, vm.EditModal())
	assert.Equal(t, model.Todo{ID: 2, Title: "two edited"}, vm.EditBuffer())
	assert.Equal(t, 2, vm.Version())
	assert.Equal(t, []model.Todo{{ID: 2, Title: "two"}}, vm.Todos())

	drain(vm, vm.SubmitEdit())
	assert.Equal(t, Closed, vm.EditModal())
	assert.Equal(t, []model.Todo{{ID: 2, Title: "two edited"}}, srv.Todos())
}

func TestLateFailureNotShownInOtherModal(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 1, Title: "one"})
	srv.SetStatus("DELETE /todos", http.StatusInternalServerError)
	vm := newViewModel(t, srv)

	vm.OpenConfirmDelete(vm.Todos()[0])
	pending := vm.ConfirmRemove()
	vm.CloseConfirmDelete()
	vm.OpenAdd()

	drain(vm, pending)
	assert.Equal(t, Open, vm.AddModal())
	assert.Nil(t, vm.LastError())
	assert.False(t, vm.IsMutating())
}

func TestVersionAndRefetchPerSuccess(t *testing.T) {
	srv := apitest.New(t)
	vm := newViewModel(t, srv)
	require.Equal(t, 1, srv.Count(http.MethodGet, "/users/me"))

	vm.OpenAdd()
	vm.SetDraftField(FieldTitle, "one")
	drain(vm, vm.SubmitAdd())

	vm.OpenAdd()
	vm.SetDraftField(FieldTitle, "two")
	drain(vm, vm.SubmitAdd())

	vm.OpenEdit(vm.Todos()[0])
	vm.SetEditField(FieldTitle, "uno")
	drain(vm, vm.SubmitEdit())

	vm.OpenConfirmDelete(vm.Todos()[1])
	drain(vm, vm.ConfirmRemove())

	assert.Equal(t, 5, vm.Version())
	assert.Equal(t, 5, srv.Count(http.MethodGet, "/users/me"))
	assert.Equal(t, []model.Todo{{ID: 1, Title: "uno"}}, vm.Todos())
}

func TestSubmitIgnoredWhileMutating(t *testing.T) {
	srv := apitest.New(t)
	vm := newViewModel(t, srv)
	vm.OpenAdd()

	first := vm.SubmitAdd()
	require.NotNil(t, first)
	assert.Nil(t, vm.SubmitAdd())
	assert.Nil(t, vm.ConfirmRemove())

	drain(vm, first)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "/todos"))
}

func TestMutation_ErrorKinds(t *testing.T) {
	srv := apitest.New(t)
	c, err := api.New(api.Options{BaseURL: srv.BaseURL()})
	require.NoError(t, err)

	vm, err := New(context.Background(), Options{
		Backend: c.WithToken("expired"),
		Session: &model.Session{JWT: "expired", User: model.User{ID: 1}},
	})
	require.NoError(t, err)
	drain(vm, vm.Init())
	assert.Error(t, vm.LoadErr())

	vm.OpenConfirmDelete(model.Todo{ID: 1})
	drain(vm, vm.ConfirmRemove())
	require.NotNil(t, vm.LastError())
	assert.Equal(t, KindSession, vm.LastError().Kind)

	vm2, err := New(context.Background(), Options{
		Backend: &stubBackend{err: api.ErrTransport},
		Session: &model.Session{JWT: "t", User: model.User{ID: 1}},
	})
	require.NoError(t, err)
	vm2.OpenAdd()
	drain(vm2, vm2.SubmitAdd())
	require.NotNil(t, vm2.LastError())
	assert.Equal(t, KindTransport, vm2.LastError().Kind)
	assert.ErrorIs(t, vm2.LastError(), api.ErrTransport)
}

func TestRefresh(t *testing.T) {
	srv := apitest.New(t)
	vm := newViewModel(t, srv)
	srv.Seed(model.Todo{ID: 1, Title: "late"})

	// the cached list is still served for the same key
	assert.Empty(t, vm.Todos())

	drain(vm, vm.Refresh())
	assert.Equal(t, []model.Todo{{ID: 1, Title: "late"}}, vm.Todos())
	assert.Equal(t, 1, vm.Version())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(OpCreate, nil))
	assert.Equal(t, KindMalformed, classify(OpCreate, api.ErrMalformedResponse).Kind)
	assert.Equal(t, KindTransport, classify(OpCreate, errors.New("x")).Kind)
	me := classify(OpDelete, &api.StatusError{Code: 403})
	assert.Equal(t, KindSession, me.Kind)
	assert.Equal(t, 403, me.Status)
}

type stubBackend struct {
	todos []model.Todo
	err   error
}

func (s *stubBackend) Todos(context.Context) ([]model.Todo, error) {
	return s.todos, s.err
}

func (s *stubBackend) CreateTodo(context.Context, model.Draft, int) error {
	return s.err
}

func (s *stubBackend) UpdateTodo(context.Context, model.Todo) error {
	return s.err
}

func (s *stubBackend) DeleteTodo(context.Context, int) error {
	return s.err
}
