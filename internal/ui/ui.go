package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nissyi-gh/taskr/internal/auth"
	"github.com/nissyi-gh/taskr/internal/connectivity"
	"github.com/nissyi-gh/taskr/internal/importer"
	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/prompt"
	"github.com/nissyi-gh/taskr/internal/service"
	"github.com/nissyi-gh/taskr/internal/status"
)

type appState int

const (
	stateList appState = iota
	stateAdd
	stateRename
	stateConfirm
	stateDueDate
	stateEditDesc
	stateImport
)

var (
	appStyle     = lipgloss.NewStyle().Padding(1, 2)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	detailStyle  = lipgloss.NewStyle().
			Padding(1, 2).
			BorderLeft(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241"))
	descBoxStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241"))

	indicatorColors = map[status.Sync]string{
		status.Synced:   "42",
		status.Syncing:  "39",
		status.Unsynced: "214",
		status.Error:    "196",
	}
)

// Tasks is the access service surface the TUI drives.
type Tasks interface {
	GetTasks(ctx context.Context) ([]model.Task, error)
	SaveTask(ctx context.Context, d model.Draft) (service.Result, error)
	UpdateTask(ctx context.Context, id string, p model.Patch) (service.Result, error)
	DeleteTask(ctx context.Context, id string) (bool, service.Outcome, error)
	ForceSyncWithCloud(ctx context.Context) ([]model.Task, error)
	GetSyncStatus() status.Sync
}

// Connectivity reports the reachability of the remote store.
type Connectivity interface {
	Online() bool
	Status() status.Sync
}

// Session reports the signed-in user.
type Session interface {
	CurrentUser() *auth.User
}

type extraKeyMap struct {
	Add      key.Binding
	SubAdd   key.Binding
	Next     key.Binding
	Toggle   key.Binding
	Rename   key.Binding
	Delete   key.Binding
	DueDate  key.Binding
	EditDesc key.Binding
	Import   key.Binding
	Copy     key.Binding
	Prompt   key.Binding
	Sync     key.Binding
}

func newExtraKeyMap() extraKeyMap {
	return extraKeyMap{
		Add: key.NewBinding(
			key.WithKeys("a", "n"),
			key.WithHelp("a/n", "add"),
		),
		SubAdd: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sub-task"),
		),
		Next: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "next status"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", "x"),
			key.WithHelp("enter/x", "done"),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rename"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		DueDate: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "due date"),
		),
		EditDesc: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit desc"),
		),
		Import: key.NewBinding(
			key.WithKeys("i", "I"),
			key.WithHelp("i/I", "import yaml"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y/Y", "copy yaml"),
		),
		Prompt: key.NewBinding(
			key.WithKeys("p", "P"),
			key.WithHelp("p/P", "copy prompt"),
		),
		Sync: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "sync"),
		),
	}
}

func (k extraKeyMap) bindings() []key.Binding {
	return []key.Binding{k.Add, k.SubAdd, k.Next, k.Toggle, k.Rename, k.Delete, k.DueDate, k.EditDesc, k.Import, k.Copy, k.Prompt, k.Sync}
}

// Model is the top-level BubbleTea model for the taskr TUI.
type Model struct {
	ctx         context.Context
	state       appState
	list        list.Model
	input       textinput.Model
	dateInput   dateInput
	descInput   textarea.Model
	importInput textarea.Model
	tasks       Tasks
	net         Connectivity
	session     Session
	keys        extraKeyMap
	copy        func(string) error

	loaded   []model.Task
	parentID *string
	targetID string
	online   bool
	sync     status.Sync
	notice   string
	err      error
	width    int
	height   int
}

type tasksLoadedMsg struct {
	tasks  []model.Task
	notice string
}
type errMsg struct{ error }
type connMsg connectivity.Event
type syncMsg status.Sync

// NewModel creates a new TUI model.
func NewModel(ctx context.Context, tasks Tasks, net Connectivity, session Session) Model {
	ti := textinput.New()
	ti.Placeholder = "Task title..."
	ti.CharLimit = 256

	keys := newExtraKeyMap()

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetHeight(1)
	delegate.SetSpacing(0)
	l := list.New(nil, delegate, 0, 0)
	l.Title = "taskr"
	l.Styles.Title = titleStyle
	l.SetShowHelp(true)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("task", "tasks")
	l.AdditionalShortHelpKeys = keys.bindings
	l.AdditionalFullHelpKeys = keys.bindings

	ta := textarea.New()
	ta.Placeholder = "Task description..."
	ta.CharLimit = 4096

	imp := textarea.New()
	imp.Placeholder = "tasks:\n  - title: ..."
	imp.CharLimit = 65536

	return Model{
		ctx:         ctx,
		state:       stateList,
		list:        l,
		input:       ti,
		dateInput:   newDateInput(),
		descInput:   ta,
		importInput: imp,
		tasks:       tasks,
		net:         net,
		session:     session,
		keys:        keys,
		copy:        clipboard.WriteAll,
		online:      net.Online(),
		sync:        net.Status(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadTasks
}

func (m Model) loadTasks() tea.Msg {
	tasks, err := m.tasks.GetTasks(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return tasksLoadedMsg{tasks: tasks}
}

// run performs op off the UI loop and reloads the task list afterwards.
// op returns an optional notice shown under the list.
func (m Model) run(op func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		notice, err := op(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		tasks, err := m.tasks.GetTasks(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks: tasks, notice: notice}
	}
}

func outcomeNotice(o service.Outcome) string {
	if o == service.FailedRemotely {
		return "saved on this device; it will sync when the remote store is reachable"
	}
	return ""
}

func (m Model) selected() (TaskItem, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	return item, ok
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h, v := appStyle.GetFrameSize()
		contentWidth := msg.Width - h
		leftWidth := contentWidth * 60 / 100
		rightWidth := contentWidth - leftWidth
		m.list.SetSize(leftWidth, msg.Height-v-1)
		m.descInput.SetWidth(rightWidth - 6)
		m.descInput.SetHeight(msg.Height - v - 10)
		m.importInput.SetWidth(contentWidth - 4)
		m.importInput.SetHeight(msg.Height - v - 8)
		return m, nil

	case tasksLoadedMsg:
		m.loaded = msg.tasks
		treeItems := BuildTree(msg.tasks)
		items := make([]list.Item, len(treeItems))
		for i, ti := range treeItems {
			items[i] = ti
		}
		m.list.SetItems(items)
		m.notice = msg.notice
		m.err = nil
		m.sync = m.tasks.GetSyncStatus()
		return m, nil

	case errMsg:
		m.err = msg.error
		m.sync = m.tasks.GetSyncStatus()
		return m, nil

	case connMsg:
		wasOnline := m.online
		m.online = msg.Online
		m.sync = msg.Status
		if !wasOnline && m.online {
			return m, m.loadTasks
		}
		return m, nil

	case syncMsg:
		m.sync = status.Sync(msg)
		return m, nil
	}

	switch m.state {
	case stateList:
		return m.updateList(msg)
	case stateAdd, stateRename:
		return m.updateInput(msg)
	case stateConfirm:
		return m.updateConfirm(msg)
	case stateDueDate:
		return m.updateDueDate(msg)
	case stateEditDesc:
		return m.updateEditDesc(msg)
	case stateImport:
		return m.updateImport(msg)
	}

	return m, nil
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.list.SettingFilter() {
		switch keyMsg.String() {
		case "a", "n":
			m.state = stateAdd
			m.parentID = nil
			m.input.Reset()
			cmd := m.input.Focus()
			return m, cmd
		case "s":
			if item, ok := m.selected(); ok {
				if item.Task.IsSubtask {
					m.err = errors.New("subtasks cannot have subtasks")
					return m, nil
				}
				m.state = stateAdd
				id := item.Task.ID
				m.parentID = &id
				m.input.Reset()
				cmd := m.input.Focus()
				return m, cmd
			}
		case "r":
			if item, ok := m.selected(); ok {
				m.state = stateRename
				m.targetID = item.Task.ID
				m.input.Reset()
				m.input.SetValue(item.Task.Title)
				cmd := m.input.Focus()
				return m, cmd
			}
		case " ":
			if item, ok := m.selected(); ok {
				return m, m.setStatus(item.Task.ID, item.Task.Status.Next())
			}
		case "enter", "x":
			if item, ok := m.selected(); ok {
				next := model.StatusCompleted
				if item.Task.Status == model.StatusCompleted {
					next = model.StatusToDo
				}
				return m, m.setStatus(item.Task.ID, next)
			}
		case "D":
			if item, ok := m.selected(); ok {
				m.state = stateDueDate
				m.targetID = item.Task.ID
				m.dateInput = newDateInput()
				if item.Task.DueDate != nil {
					m.dateInput.SetValue(*item.Task.DueDate)
				}
				cmd := m.dateInput.Focus()
				return m, cmd
			}
		case "e":
			if item, ok := m.selected(); ok {
				m.state = stateEditDesc
				m.targetID = item.Task.ID
				m.descInput.Reset()
				m.descInput.SetValue(item.Task.DescriptionText())
				cmd := m.descInput.Focus()
				return m, cmd
			}
		case "i", "I":
			m.state = stateImport
			m.parentID = nil
			if item, ok := m.selected(); ok && keyMsg.String() == "I" {
				if item.Task.IsSubtask {
					m.state = stateList
					m.err = errors.New("subtasks cannot have subtasks")
					return m, nil
				}
				id := item.Task.ID
				m.parentID = &id
			}
			m.importInput.Reset()
			cmd := m.importInput.Focus()
			return m, cmd
		case "y":
			if item, ok := m.selected(); ok {
				if tree, ok := findTree(m.loaded, item.Task.ID); ok {
					return m.copyYAML([]model.Task{tree})
				}
			}
		case "Y":
			return m.copyYAML(m.loaded)
		case "p":
			if item, ok := m.selected(); ok {
				if tree, ok := findTree(m.loaded, item.Task.ID); ok {
					return m.copyText(prompt.GenerateFromTask(tree), "copied a breakdown prompt for "+tree.Title)
				}
			}
			return m.copyText(prompt.GenerateNew(), "copied a new-task prompt")
		case "P":
			return m.copyText(prompt.GenerateNew(), "copied a new-task prompt")
		case "S":
			// The indicator is inert while offline or mid-sync.
			if !m.online || m.sync == status.Syncing {
				return m, nil
			}
			m.sync = status.Syncing
			return m, m.forceSync
		case "d":
			if m.list.SelectedItem() != nil {
				m.state = stateConfirm
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) setStatus(id string, s model.Status) tea.Cmd {
	return m.run(func(ctx context.Context) (string, error) {
		res, err := m.tasks.UpdateTask(ctx, id, model.Patch{Status: &s})
		if err != nil {
			return "", err
		}
		return outcomeNotice(res.Outcome), nil
	})
}

func (m Model) forceSync() tea.Msg {
	if m.session.CurrentUser() == nil {
		return errMsg{errors.New("sign in with `taskr login` to sync")}
	}
	tasks, err := m.tasks.ForceSyncWithCloud(m.ctx)
	if err != nil {
		return errMsg{fmt.Errorf("sync: %w", err)}
	}
	return tasksLoadedMsg{tasks: tasks, notice: "synced"}
}

func (m Model) copyYAML(tasks []model.Task) (tea.Model, tea.Cmd) {
	out, err := importer.Export(tasks)
	if err != nil {
		m.err = err
		return m, nil
	}
	return m.copyText(out, fmt.Sprintf("copied %d task(s) as YAML", len(tasks)))
}

func (m Model) copyText(s, notice string) (tea.Model, tea.Cmd) {
	if err := m.copy(s); err != nil {
		m.err = fmt.Errorf("copy to clipboard: %w", err)
		return m, nil
	}
	m.err = nil
	m.notice = notice
	return m, nil
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			title := strings.TrimSpace(m.input.Value())
			var cmd tea.Cmd
			if title != "" {
				if m.state == stateRename {
					id := m.targetID
					cmd = m.run(func(ctx context.Context) (string, error) {
						res, err := m.tasks.UpdateTask(ctx, id, model.Patch{Title: &title})
						return outcomeNotice(res.Outcome), err
					})
				} else {
					d := model.Draft{Title: title, ParentID: m.parentID}
					cmd = m.run(func(ctx context.Context) (string, error) {
						res, err := m.tasks.SaveTask(ctx, d)
						return outcomeNotice(res.Outcome), err
					})
				}
			}
			m.state = stateList
			m.parentID = nil
			return m, cmd
		case "esc":
			m.state = stateList
			m.parentID = nil
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateEditDesc(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			val := m.descInput.Value()
			id := m.targetID
			m.state = stateList
			return m, m.run(func(ctx context.Context) (string, error) {
				res, err := m.tasks.UpdateTask(ctx, id, model.Patch{Description: &val})
				return outcomeNotice(res.Outcome), err
			})
		case "ctrl+c":
			m.state = stateList
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.descInput, cmd = m.descInput.Update(msg)
	return m, cmd
}

func (m Model) updateImport(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+s":
			src := m.importInput.Value()
			parent := m.parentID
			if _, err := importer.Parse(src, parent); err != nil {
				m.err = err
				return m, nil
			}
			m.state = stateList
			m.parentID = nil
			return m, m.run(func(ctx context.Context) (string, error) {
				n, err := importer.Import(ctx, m.tasks, src, parent)
				return fmt.Sprintf("imported %d task(s)", n), err
			})
		case "esc":
			m.state = stateList
			m.parentID = nil
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.importInput, cmd = m.importInput.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "y":
			m.state = stateList
			if item, ok := m.selected(); ok {
				id := item.Task.ID
				return m, m.run(func(ctx context.Context) (string, error) {
					deleted, outcome, err := m.tasks.DeleteTask(ctx, id)
					if err != nil {
						return "", err
					}
					if !deleted && outcome == service.FailedRemotely {
						return "", errors.New("the remote store rejected the delete; try again when online")
					}
					return "", nil
				})
			}
			return m, nil
		case "n", "esc":
			m.state = stateList
			return m, nil
		}
	}
	return m, nil
}

func (m Model) updateDueDate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			val := ""
			if !m.dateInput.IsEmpty() {
				v, err := m.dateInput.Value()
				if err != nil {
					m.err = err
					return m, nil
				}
				val = v
			}
			id := m.targetID
			m.state = stateList
			return m, m.run(func(ctx context.Context) (string, error) {
				res, err := m.tasks.UpdateTask(ctx, id, model.Patch{DueDate: &val})
				return outcomeNotice(res.Outcome), err
			})
		case "esc":
			m.state = stateList
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.dateInput, cmd = m.dateInput.Update(msg)
	return m, cmd
}

// indicator renders the sync state. Signed-out sessions show "local".
func (m Model) indicator() string {
	switch {
	case m.session.CurrentUser() == nil:
		return statusStyle.Render("● local")
	case !m.online:
		return statusStyle.Render("○ offline")
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(indicatorColors[m.sync])).
		Render("● " + m.sync.String())
}

func (m Model) renderDetail() string {
	item, ok := m.selected()
	if !ok {
		return ""
	}
	descContent := statusStyle.Render("(no description)")
	if d := item.Task.DescriptionText(); d != "" {
		descContent = d
	}
	desc := descBoxStyle.Render(descContent)

	dueLine := ""
	if item.Task.DueDate != nil {
		label := "due_date:   " + *item.Task.DueDate
		if item.Task.IsOverdue() {
			label = errorStyle.Render("⚠️ " + label)
		} else if item.Task.IsDueToday() {
			label = "📅 " + label
		}
		dueLine = "\n" + label
	}
	return fmt.Sprintf("%s\n\n%s\n\nstatus:     %s\ncreated_at: %s\nupdated_at: %s%s\n\n%s",
		item.Task.Title,
		desc,
		item.Task.Status,
		item.Task.CreatedAt.Local().Format("2006-01-02 15:04"),
		item.Task.UpdatedAt.Local().Format("2006-01-02 15:04"),
		dueLine,
		statusStyle.Render("e: edit description  D: due date  r: rename"),
	)
}

func (m Model) View() string {
	var errView string
	if m.err != nil {
		errView = "\n" + errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case stateEditDesc:
		return appStyle.Render(
			titleStyle.Render("Edit Description") + "\n\n" +
				m.descInput.View() + "\n\n" +
				statusStyle.Render("esc: save • ctrl+c: cancel") +
				errView,
		)
	case stateAdd, stateRename:
		header := "New Task"
		switch {
		case m.state == stateRename:
			header = "Rename Task"
		case m.parentID != nil:
			header = "New Sub-task"
		}
		return appStyle.Render(
			titleStyle.Render(header) + "\n\n" +
				m.input.View() + "\n\n" +
				statusStyle.Render("enter: save • esc: cancel") +
				errView,
		)
	case stateDueDate:
		return appStyle.Render(
			titleStyle.Render("Set Due Date") + "\n\n" +
				m.dateInput.View() + "\n\n" +
				statusStyle.Render("tab/→: next field • ctrl+t: today • ctrl+w: in a week • ctrl+u: clear • enter: save • esc: cancel") +
				errView,
		)
	case stateImport:
		header := "Import YAML"
		if m.parentID != nil {
			header = "Import YAML as sub-tasks"
		}
		return appStyle.Render(
			titleStyle.Render(header) + "\n\n" +
				m.importInput.View() + "\n\n" +
				statusStyle.Render("ctrl+s: import • esc: cancel") +
				errView,
		)
	case stateConfirm:
		item, _ := m.selected()
		msg := item.Task.Title
		if len(item.Task.Subtasks) > 0 {
			msg = fmt.Sprintf("%s\n  (its %d sub-task(s) will be deleted too)", item.Task.Title, len(item.Task.Subtasks))
		}
		return appStyle.Render(
			confirmStyle.Render("Delete Task?") + "\n\n" +
				"  " + msg + "\n\n" +
				statusStyle.Render("y: delete • n/esc: cancel") +
				errView,
		)
	default:
		h, v := appStyle.GetFrameSize()
		contentWidth := m.width - h
		contentHeight := m.height - v - 1
		leftWidth := contentWidth * 60 / 100
		rightWidth := contentWidth - leftWidth

		leftPane := m.list.View()
		rightPane := detailStyle.
			Width(rightWidth).
			Height(contentHeight).
			Render(m.renderDetail())
		content := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
		footer := m.indicator()
		if m.notice != "" {
			footer += "  " + noticeStyle.Render(m.notice)
		}
		return appStyle.Render(content + "\n" + footer + errView)
	}
}
