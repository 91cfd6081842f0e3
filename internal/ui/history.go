package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"

	"github.com/aviellagerev/shareterm/internal/app"
	"github.com/aviellagerev/shareterm/internal/history"
)

type historyModel struct {
	app *app.App

	width  int
	height int

	Done bool

	list list.Model
	err  error
}

type historyItem struct {
	entry history.Entry
}

func (i historyItem) Title() string {
	status := ""
	if !i.entry.Succeeded {
		status = " (failed)"
	}
	return fmt.Sprintf("%s %s%s", i.entry.Action, i.entry.Filename, status)
}

func (i historyItem) Description() string {
	desc := i.entry.CreatedAt.Format("2006-01-02 15:04")
	if i.entry.Actor != "" {
		desc += " • " + i.entry.Actor
	}
	if i.entry.Detail != "" {
		desc += " • " + i.entry.Detail
	}
	return desc
}

func (i historyItem) FilterValue() string { return i.entry.Filename }

func newHistoryModel(a *app.App) *historyModel {
	m := &historyModel{app: a}
	m.reload()
	return m
}

func (m *historyModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *historyModel) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "esc":
			m.Done = true
			return nil
		case "r":
			m.reload()
			return nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

// reload rebuilds the list. The list is initialized even when the query
// fails: SetSize and View must stay safe to call in the error state.
func (m *historyModel) reload() {
	entries, err := m.app.History.Recent(200)
	m.err = err

	items := make([]list.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{entry: e})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = "Transfer history"
}

func (m *historyModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("History error: %v\n\nPress Esc to go back.", m.err)
	}
	return m.list.View() + "\n(r refresh, esc back)"
}
