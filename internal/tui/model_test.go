package tui

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/api"
	"github.com/Makepad-fr/tada/internal/api/apitest"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/query"
	"github.com/Makepad-fr/tada/internal/todolist"
)

func newModel(t *testing.T, srv *apitest.Server) (Model, tea.Cmd) {
	t.Helper()
	c, err := api.New(api.Options{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	vm, err := todolist.New(context.Background(), todolist.Options{
		Backend: c.WithToken(apitest.Token),
		Session: &model.Session{JWT: apitest.Token, User: srv.User()},
		Cache:   query.NewClient(time.Minute, nil),
	})
	require.NoError(t, err)
	m := New(vm)
	return m, m.Init()
}

// drain runs cmd and the follow-ups it produces. Spinner ticks are dropped
// so nothing sleeps.
func drain(m Model, cmd tea.Cmd) Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			next, follow := m.Update(msg)
			m = next.(Model)
			queue = append(queue, follow)
		}
	}
	return m
}

// press feeds keys without running the commands they return (cursor
// blinks), except for submit and confirm which are drained by the caller.
func press(m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = press(m, runes(string(r)))
	}
	return m
}

func placeholders(v string) int {
	n := 0
	for _, line := range strings.Split(v, "\n") {
		if strings.Contains(line, "░") {
			n++
		}
	}
	return n
}

func TestView_LoadingShowsThreePlaceholders(t *testing.T) {
	cases := []struct {
		name  string
		todos []model.Todo
	}{
		{"empty", nil},
		{"one", []model.Todo{{ID: 1, Title: "Buy milk"}}},
		{"many", []model.Todo{
			{ID: 1, Title: "Buy milk"}, {ID: 2, Title: "Walk dog"}, {ID: 3, Title: "Call mum"},
			{ID: 4, Title: "Pay rent"}, {ID: 5, Title: "Water plants"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := apitest.New(t)
			srv.Seed(tc.todos...)
			m, cmd := newModel(t, srv)
			require.NotNil(t, cmd)

			v := m.View()
			assert.Equal(t, placeholderRows, placeholders(v))
			assert.NotContains(t, v, EmptyText)
			for _, td := range tc.todos {
				assert.NotContains(t, v, td.Title)
			}

			m = drain(m, cmd)
			assert.Zero(t, placeholders(m.View()))
		})
	}
}

func TestView_PlaceholdersWhileRefetchingAfterSave(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 1, Title: "Buy milk"})
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	m, _ = press(m, runes("a"))
	m = typeText(m, "Walk dog")
	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)

	// Deliver only the save result; the refetch it starts is held back.
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	var saved tea.Msg
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(todolist.MutationMsg); ok {
			saved = msg
		}
	}
	require.NotNil(t, saved)
	next, refetch := m.Update(saved)
	m = next.(Model)
	require.NotNil(t, refetch)

	v := m.View()
	assert.True(t, m.vm.Loading())
	assert.Equal(t, placeholderRows, placeholders(v))
	assert.NotContains(t, v, "1 - Buy milk")

	m = drain(m, refetch)
	v = m.View()
	assert.Zero(t, placeholders(v))
	assert.Contains(t, v, "1 - Buy milk")
	assert.Contains(t, v, "2 - Walk dog")
}

func TestListKeysWaitForLoad(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 1, Title: "Buy milk"})
	m, cmd := newModel(t, srv)

	m, _ = press(m, runes("a"), runes("e"), runes("d"))
	assert.False(t, m.vm.AddModal().IsOpen())
	assert.False(t, m.vm.EditModal().IsOpen())
	assert.False(t, m.vm.ConfirmDeleteModal().IsOpen())
	v := m.View()
	assert.NotContains(t, v, "New todo")
	assert.Equal(t, placeholderRows, placeholders(v))

	m = drain(m, cmd)
	m, _ = press(m, runes("a"))
	assert.True(t, m.vm.AddModal().IsOpen())
}

func TestListKeysIgnoredOnLoadError(t *testing.T) {
	srv := apitest.New(t)
	srv.SetStatus("GET /users/me", http.StatusInternalServerError)
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	m, _ = press(m, runes("a"))
	assert.False(t, m.vm.AddModal().IsOpen())
	assert.Contains(t, m.View(), "Could not load todos")
}

func TestView_EmptyList(t *testing.T) {
	srv := apitest.New(t)
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	v := m.View()
	assert.Equal(t, 1, strings.Count(v, EmptyText))
	assert.NotContains(t, v, " - ")
	assert.NotContains(t, v, "░")
}

func TestView_Rows(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 7, Title: "Buy milk"}, model.Todo{ID: 3, Title: "Walk dog"})
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	v := m.View()
	assert.Contains(t, v, "7 - Buy milk")
	assert.Contains(t, v, "3 - Walk dog")
	assert.Less(t, strings.Index(v, "7 - Buy milk"), strings.Index(v, "3 - Walk dog"))
	assert.NotContains(t, v, EmptyText)
}

func TestView_LoadError(t *testing.T) {
	srv := apitest.New(t)
	srv.SetStatus("GET /users/me", http.StatusInternalServerError)
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	assert.Contains(t, m.View(), "Could not load todos")

	srv.SetStatus("GET /users/me", 0)
	m, cmd = press(m, runes("r"))
	m = drain(m, cmd)
	assert.NotContains(t, m.View(), "Could not load todos")
	assert.Contains(t, m.View(), EmptyText)
}

func TestAdd_TypeAndSubmit(t *testing.T) {
	srv := apitest.New(t)
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	m, _ = press(m, runes("a"))
	require.True(t, m.vm.AddModal().IsOpen())
	assert.Contains(t, m.View(), "New todo")

	m = typeText(m, "Buy milk")
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(m, "2%")
	assert.Equal(t, model.Draft{Title: "Buy milk", Description: "2%"}, m.vm.Draft())

	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	assert.True(t, m.vm.IsMutating())
	assert.Contains(t, m.View(), "Saving...")

	m = drain(m, cmd)
	assert.False(t, m.vm.AddModal().IsOpen())
	assert.Equal(t, model.Draft{}, m.vm.Draft())
	assert.Equal(t, 2, m.vm.Version())
	assert.Contains(t, m.View(), "1 - Buy milk")
}

func TestAdd_EmptyTitleIsNotSent(t *testing.T) {
	srv := apitest.New(t)
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	m, _ = press(m, runes("a"))
	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Title cannot be empty")
	assert.Zero(t, srv.Count(http.MethodPost, "/todos"))

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.vm.AddModal().IsOpen())
}

func TestEdit_FailureStaysOpenWithMessage(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 5, Title: "Old"})
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	m, _ = press(m, runes("e"))
	require.True(t, m.vm.EditModal().IsOpen())
	assert.Equal(t, 5, m.vm.EditBuffer().ID)
	m = typeText(m, "er")
	assert.Equal(t, "Older", m.vm.EditBuffer().Title)

	srv.SetStatus("PUT /todos", http.StatusInternalServerError)
	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m = drain(m, cmd)

	assert.True(t, m.vm.EditModal().IsOpen())
	assert.Equal(t, 1, m.vm.Version())
	assert.Contains(t, m.View(), "Could not update the todo")

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.vm.EditModal().IsOpen())
	assert.Equal(t, model.Todo{}, m.vm.EditBuffer())
}

func TestRemove_ConfirmAndDeny(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(model.Todo{ID: 1, Title: "a"}, model.Todo{ID: 2, Title: "b"})
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	m, _ = press(m, runes("d"))
	require.True(t, m.vm.ConfirmDeleteModal().IsOpen())
	assert.Contains(t, m.View(), `Delete "a"?`)
	m, _ = press(m, runes("n"))
	assert.False(t, m.vm.ConfirmDeleteModal().IsOpen())
	assert.Zero(t, srv.Count(http.MethodDelete, "/todos"))

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown}, runes("d"))
	require.Equal(t, 2, m.vm.EditBuffer().ID)
	m, cmd = press(m, runes("y"))
	m = drain(m, cmd)

	assert.False(t, m.vm.ConfirmDeleteModal().IsOpen())
	assert.Equal(t, []model.Todo{{ID: 1, Title: "a"}}, srv.Todos())
	assert.NotContains(t, m.View(), "2 - b")
}

func TestQuitKeys(t *testing.T) {
	srv := apitest.New(t)
	m, cmd := newModel(t, srv)
	m = drain(m, cmd)

	for _, k := range []tea.KeyMsg{runes("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := press(m, k)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}

	// q types into an open form instead of quitting.
	m, _ = press(m, runes("a"), runes("q"))
	assert.True(t, m.vm.AddModal().IsOpen())
	assert.Equal(t, "q", m.vm.Draft().Title)
}
