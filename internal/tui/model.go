// Package tui renders the JAR service list in the terminal and drives the
// start, stop and delete actions from the keyboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"jarconsole/internal/models"
	"jarconsole/internal/poller"
)

const defaultActionTimeout = 15 * time.Second

// Actions are the panel operations reachable from the keyboard.
type Actions interface {
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type listMsg []models.ServiceItem

type actionDoneMsg struct {
	verb string
	item models.ServiceItem
	err  error
}

// Model is the bubbletea model of the JAR service page. Init mounts the page
// (polling starts) and quitting unmounts it (polling stops).
type Model struct {
	poller  *poller.Poller
	actions Actions
	timeout time.Duration

	updates     <-chan []models.ServiceItem
	unsubscribe func()

	table   table.Model
	spinner spinner.Model
	items   []models.ServiceItem

	status        string
	statusErr     bool
	busy          bool
	pendingDelete *models.ServiceItem
	quitting      bool
}

// New builds the model. The poller is not started until Init.
func New(p *poller.Poller, actions Actions) *Model {
	updates, unsubscribe := p.List().Subscribe()

	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.SetStyles(tableStyles())

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		poller:      p,
		actions:     actions,
		timeout:     defaultActionTimeout,
		updates:     updates,
		unsubscribe: unsubscribe,
		table:       t,
		spinner:     sp,
	}
	m.setItems(p.List().Items())
	return m
}

// Init starts polling and listens for list replacements.
func (m *Model) Init() tea.Cmd {
	m.poller.Start()
	return tea.Batch(m.waitForList(), m.spinner.Tick)
}

// Update handles keys, list replacements and finished actions.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case listMsg:
		m.setItems(msg)
		return m, m.waitForList()

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("%s %s failed: %v", msg.verb, msg.item.Name, msg.err), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("%s %s: done", msg.verb, msg.item.Name), false)
		m.poller.Refresh()
		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetColumns(columns(msg.Width - 4))
		if h := msg.Height - 10; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.pendingDelete != nil {
		item := *m.pendingDelete
		m.pendingDelete = nil
		if key == "y" || key == "Y" {
			return m, m.runAction("delete", item, m.actions.Delete)
		}
		m.setStatus("delete cancelled", false)
		return m, nil
	}

	switch key {
	case "q", "ctrl+c", "esc":
		m.shutdown()
		return m, tea.Quit
	case "r":
		if m.poller.Refresh() {
			m.setStatus("refreshing", false)
		} else {
			m.setStatus("polling is stopped", true)
		}
		return m, nil
	case "s":
		if item, ok := m.selected(); ok {
			return m, m.runAction("start", item, m.actions.Start)
		}
		return m, nil
	case "x":
		if item, ok := m.selected(); ok {
			return m, m.runAction("stop", item, m.actions.Stop)
		}
		return m, nil
	case "d":
		if item, ok := m.selected(); ok {
			m.pendingDelete = &item
			m.setStatus(fmt.Sprintf("delete %s? (y/n)", item.Name), false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// runAction issues one panel call off the UI goroutine. The list is never
// touched here; the next poll reflects the outcome.
func (m *Model) runAction(verb string, item models.ServiceItem, action func(context.Context, string) error) tea.Cmd {
	if m.busy {
		m.setStatus("another action is still running", true)
		return nil
	}
	m.busy = true
	m.setStatus(fmt.Sprintf("%s %s", verb, item.Name), false)
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return actionDoneMsg{verb: verb, item: item, err: action(ctx, item.ID)}
	}
}

func (m *Model) waitForList() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		items, ok := <-updates
		if !ok {
			return nil
		}
		return listMsg(items)
	}
}

func (m *Model) shutdown() {
	if m.quitting {
		return
	}
	m.quitting = true
	m.poller.Stop()
	m.unsubscribe()
}

func (m *Model) selected() (models.ServiceItem, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.items) {
		return models.ServiceItem{}, false
	}
	return m.items[idx], true
}

func (m *Model) setItems(items []models.ServiceItem) {
	m.items = items
	rows := make([]table.Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, table.Row{
			item.Name,
			statusLabel(item.Status),
			item.CurrentVersion,
			item.DeployTime,
			strings.TrimSpace(item.PrefixArgs + " " + item.SuffixArgs),
		})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// View renders the page.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("JAR services"))
	b.WriteString("\n")
	b.WriteString(frameStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(m.summary())
	b.WriteString("\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " " + infoStyle.Render(m.status))
	case m.statusErr:
		b.WriteString(errorStyle.Render(m.status))
	default:
		b.WriteString(infoStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s start • x stop • d delete • r refresh • q quit"))
	return b.String()
}

func (m *Model) summary() string {
	running, stopped := 0, 0
	for _, item := range m.items {
		if item.Running() {
			running++
		} else {
			stopped++
		}
	}
	return runningStyle.Render(fmt.Sprintf("%d running", running)) +
		infoStyle.Render("  ·  ") +
		stoppedStyle.Render(fmt.Sprintf("%d stopped", stopped))
}

func statusLabel(status models.ServiceStatus) string {
	if status == models.StatusRunning {
		return "● running"
	}
	return "○ stopped"
}

func columns(width int) []table.Column {
	if width < 60 {
		width = 60
	}
	name := width * 30 / 100
	args := width - name - 12 - 14 - 20 - 10
	if args < 8 {
		args = 8
	}
	return []table.Column{
		{Title: "Name", Width: name},
		{Title: "Status", Width: 12},
		{Title: "Version", Width: 14},
		{Title: "Deployed", Width: 20},
		{Title: "Args", Width: args},
	}
}
