// Package tui renders the to-do view-model as a Bubble Tea program.
package tui

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todolist"
	"github.com/Makepad-fr/tada/internal/ui"
)

// EmptyText is shown instead of rows when the user has no todos.
const EmptyText = "No Todos Yet!"

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// row adapts model.Todo to list.Item.
type row struct{ model.Todo }

func (r row) Title() string       { return fmt.Sprintf("%d - %s", r.ID, r.Todo.Title) }
func (r row) Description() string { return r.Todo.Description }
func (r row) FilterValue() string { return r.Todo.Title }

// Custom delegate: one line per todo.
type rowDelegate struct{}

func (d rowDelegate) Height() int                               { return 1 }
func (d rowDelegate) Spacing() int                              { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+ui.Truncate(r.Title(), m.Width()-2))
}

type keyMap struct {
	Add, Edit, Remove, Refresh, Quit, ForceQuit key.Binding
	NextField, Submit, Cancel                   key.Binding
	Confirm, Deny                               key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Remove:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:      key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
		NextField: key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		Submit:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Confirm:   key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "delete")),
		Deny:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "keep")),
	}
}

// Model is the Bubble Tea model for the to-do screen.
type Model struct {
	vm      *todolist.ViewModel
	keys    keyMap
	help    help.Model
	list    list.Model
	title   textinput.Model
	desc    textarea.Model
	spinner spinner.Model
	focus   todolist.Field
	formErr string // local check, before any request is made
	shown   []model.Todo
	width   int
	height  int
}

// New wraps vm. Call Init (or let tea.Program do it) to start loading.
func New(vm *todolist.ViewModel) Model {
	l := list.New(nil, rowDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(true)
	l.SetStatusBarItemName("todo", "todos")
	l.Styles.PaginationStyle = helpStyle

	ti := textinput.New()
	ti.Prompt = "Title > "
	ti.Placeholder = "What needs doing?"
	ti.CharLimit = 200

	ta := textarea.New()
	ta.Placeholder = "Description (optional)"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))

	m := Model{
		vm:      vm,
		keys:    defaultKeys(),
		help:    help.New(),
		list:    l,
		title:   ti,
		desc:    ta,
		spinner: sp,
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w-4, max(h-7, 1))
	m.title.Width = w - 16
	m.desc.SetWidth(w - 8)
	m.help.Width = w - 4
}

// syncItems copies the loaded todos into the list when they changed.
func (m *Model) syncItems() {
	todos := m.vm.Todos()
	if slices.Equal(todos, m.shown) && len(m.list.Items()) == len(todos) {
		return
	}
	items := make([]list.Item, 0, len(todos))
	for _, t := range todos {
		items = append(items, row{t})
	}
	m.list.SetItems(items)
	m.shown = slices.Clone(todos)
}

func (m Model) selected() (model.Todo, bool) {
	r, ok := m.list.SelectedItem().(row)
	if !ok {
		return model.Todo{}, false
	}
	return m.vm.Find(r.ID)
}

func (m Model) Init() tea.Cmd { return m.vm.Init() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.syncItems()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		if !m.vm.IsMutating() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		switch {
		case m.vm.AddModal().IsOpen():
			return m.updateForm(msg, m.vm.SubmitAdd, m.vm.CloseAdd, m.vm.SetDraftField)
		case m.vm.EditModal().IsOpen():
			return m.updateForm(msg, m.vm.SubmitEdit, m.vm.CloseEdit, m.vm.SetEditField)
		case m.vm.ConfirmDeleteModal().IsOpen():
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}

	cmds := []tea.Cmd{m.vm.Update(msg)}
	if m.vm.AddModal().IsOpen() || m.vm.EditModal().IsOpen() {
		// cursor blinks
		var cmd tea.Cmd
		m.title, cmd = m.title.Update(msg)
		cmds = append(cmds, cmd)
		m.desc, cmd = m.desc.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.title.Blur()
		m.desc.Blur()
	}
	m.syncItems()
	return m, tea.Batch(cmds...)
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		return m, m.vm.Refresh()
	}
	// Nothing to act on until the list is in.
	if m.vm.Loading() || m.vm.LoadErr() != nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Add):
		m.vm.OpenAdd()
		m.openForm(model.Todo{})
		return m, nil
	case key.Matches(msg, m.keys.Edit):
		if t, ok := m.selected(); ok {
			m.vm.OpenEdit(t)
			m.openForm(t)
		}
		return m, nil
	case key.Matches(msg, m.keys.Remove):
		if t, ok := m.selected(); ok {
			m.vm.OpenConfirmDelete(t)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// openForm fills the inputs from t and focuses the title. The cursor does
// not blink until the first keystroke.
func (m *Model) openForm(t model.Todo) {
	m.formErr = ""
	m.focus = todolist.FieldTitle
	m.title.SetValue(t.Title)
	m.title.CursorEnd()
	m.desc.SetValue(t.Description)
	m.desc.Blur()
	m.title.Focus()
}

func (m *Model) switchField() {
	if m.focus == todolist.FieldTitle {
		m.focus = todolist.FieldDescription
		m.title.Blur()
		m.desc.Focus()
		return
	}
	m.focus = todolist.FieldTitle
	m.desc.Blur()
	m.title.Focus()
}

func (m Model) updateForm(msg tea.KeyMsg, submit func() tea.Cmd, closeForm func(), set func(todolist.Field, string)) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		closeForm()
		m.title.Blur()
		m.desc.Blur()
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		m.switchField()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if strings.TrimSpace(m.title.Value()) == "" {
			m.formErr = "Title cannot be empty"
			return m, nil
		}
		m.formErr = ""
		cmd := submit()
		if cmd == nil {
			return m, nil
		}
		return m, tea.Batch(cmd, m.spinner.Tick)
	}

	var cmd tea.Cmd
	if m.focus == todolist.FieldTitle {
		m.title, cmd = m.title.Update(msg)
		set(todolist.FieldTitle, m.title.Value())
	} else {
		m.desc, cmd = m.desc.Update(msg)
		set(todolist.FieldDescription, m.desc.Value())
	}
	m.formErr = ""
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		cmd := m.vm.ConfirmRemove()
		if cmd == nil {
			return m, nil
		}
		return m, tea.Batch(cmd, m.spinner.Tick)
	case key.Matches(msg, m.keys.Deny):
		m.vm.CloseConfirmDelete()
	}
	return m, nil
}

func (m Model) View() string {
	m.syncItems()

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch {
	case m.vm.Loading():
		rows := make([]string, placeholderRows)
		for i := range rows {
			rows[i] = "  " + skeletonRow(m.width/2)
		}
		b.WriteString(strings.Join(rows, "\n"))
	case m.vm.LoadErr() != nil:
		b.WriteString(errorStyle.Render("Could not load todos: " + m.vm.LoadErr().Error()))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Refresh, m.keys.Quit}))
	case len(m.vm.Todos()) == 0:
		b.WriteString(mutedStyle.Render(EmptyText))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Add, m.keys.Refresh, m.keys.Quit}))
	default:
		b.WriteString(m.list.View())
		b.WriteString("\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Add, m.keys.Edit, m.keys.Remove, m.keys.Refresh, m.keys.Quit}))
	}

	if modal := m.modalView(); modal != "" {
		b.WriteString("\n")
		b.WriteString(modal)
	}
	return frameStyle.Render(b.String())
}

func (m Model) header() string {
	s := m.vm.Session()
	who := s.User.Username
	if who == "" {
		who = fmt.Sprintf("user %d", s.User.ID)
	}
	return titleStyle.Render("Todos") + "  " + accentStyle.Render(who)
}

func (m Model) modalView() string {
	var (
		lines []string
		style = modalStyle
	)
	switch {
	case m.vm.AddModal().IsOpen():
		lines = append(lines, titleStyle.Render("New todo"), m.title.View(), m.desc.View())
	case m.vm.EditModal().IsOpen():
		lines = append(lines, titleStyle.Render(fmt.Sprintf("Edit todo %d", m.vm.EditBuffer().ID)), m.title.View(), m.desc.View())
	case m.vm.ConfirmDeleteModal().IsOpen():
		style = dangerStyle
		lines = append(lines, fmt.Sprintf("Delete %q?", m.vm.EditBuffer().Title))
	default:
		return ""
	}

	if m.formErr != "" {
		lines = append(lines, errorStyle.Render(m.formErr))
	}
	if e := m.vm.LastError(); e != nil {
		lines = append(lines, errorStyle.Render(e.Message()))
	}

	switch {
	case m.vm.IsMutating():
		lines = append(lines, m.spinner.View()+" Saving...")
	case m.vm.ConfirmDeleteModal().IsOpen():
		lines = append(lines, m.help.ShortHelpView([]key.Binding{m.keys.Confirm, m.keys.Deny}))
	default:
		lines = append(lines, m.help.ShortHelpView([]key.Binding{m.keys.NextField, m.keys.Submit, m.keys.Cancel}))
	}
	return style.Width(m.width - 8).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Run starts the program on the alternate screen and blocks until the user
// quits or ctx is done.
func Run(ctx context.Context, vm *todolist.ViewModel, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(New(vm), opts...).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
