package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/aviellagerev/shareterm/internal/app"
	"github.com/aviellagerev/shareterm/internal/history"
	"github.com/aviellagerev/shareterm/internal/reconcile"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

// leave tells the root model where the files screen wants to go.
type leave int

const (
	leaveNone leave = iota
	leaveUsers
	leaveHistory
	leaveQuit
)

type filesState int

const (
	filesStateList filesState = iota
	filesStateUpload
	filesStateConfirmDelete
)

// uploadDoneMsg carries the outcome of a batch upload.
type uploadDoneMsg struct {
	result string
}

// actionDoneMsg carries the outcome of a delete or download.
type actionDoneMsg struct {
	notice string
	err    error
}

type filesModel struct {
	app *app.App

	width  int
	height int

	Leave leave

	state filesState
	list  list.Model
	sort  sharefile.SortKey

	form *huh.Form

	uploadPaths  string
	uploadGo     bool
	deleteTarget string
	deleteGo     bool

	notice    string
	highlight string // most recently arrived filename
	err       error
}

type fileItem struct {
	rec       sharefile.Record
	highlight bool
}

func (i fileItem) Title() string {
	if i.highlight {
		return "* " + i.rec.Filename
	}
	return i.rec.Filename
}

func (i fileItem) Description() string {
	when := ""
	if !i.rec.UploadTime.IsZero() {
		when = " • " + i.rec.UploadTime.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s • %s%s", i.rec.Uploader, formatSize(i.rec.Size), when)
}

func (i fileItem) FilterValue() string { return i.rec.Filename }

func newFilesModel(a *app.App) *filesModel {
	m := &filesModel{app: a, sort: sharefile.DefaultSort}
	m.reload()
	return m
}

func (m *filesModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

// Refresh re-renders the list after a reconciled change and surfaces
// other users' activity as a notice. The session's own actions are
// already reported by their command results.
func (m *filesModel) Refresh(c reconcile.Change) {
	switch c.Kind {
	case reconcile.ChangeSnapshot:
		m.reload()
	case reconcile.ChangeFileAdded:
		if !c.Self && !c.Refreshed {
			m.notice = fmt.Sprintf("%s uploaded %s", uploaderOf(c), c.Filename)
			m.highlight = c.Filename
		}
		m.reload()
	case reconcile.ChangeFileRemoved:
		if !c.Self {
			m.notice = fmt.Sprintf("%s was deleted", c.Filename)
		}
		if m.highlight == c.Filename {
			m.highlight = ""
		}
		m.reload()
	case reconcile.ChangeOwnPermission:
		m.notice = fmt.Sprintf("your role is now %s", c.Permission)
	}
}

func uploaderOf(c reconcile.Change) string {
	if c.File.Uploader != "" {
		return c.File.Uploader
	}
	return "someone"
}

func (m *filesModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc", "q", "enter":
				m.err = nil
				m.state = filesStateList
				m.form = nil
			}
		}
		return nil
	}

	switch msg := msg.(type) {
	case uploadDoneMsg:
		m.notice = msg.result
		m.state = filesStateList
		m.form = nil
		return nil
	case actionDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.notice = msg.notice
		}
		m.state = filesStateList
		m.form = nil
		return nil
	}

	switch m.state {
	case filesStateUpload, filesStateConfirmDelete:
		return m.updateForm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q":
			m.Leave = leaveQuit
			return nil
		case "s":
			m.cycleSort()
			return nil
		case "u":
			if m.app.Guard.Permission().CanUpload() {
				m.startUpload()
			} else {
				m.notice = "your role cannot upload"
			}
			return nil
		case "x":
			if it, ok := m.list.SelectedItem().(fileItem); ok {
				if m.app.Guard.Permission().CanDelete() {
					m.startConfirmDelete(it.rec.Filename)
				} else {
					m.notice = "your role cannot delete"
				}
			}
			return nil
		case "d":
			if it, ok := m.list.SelectedItem().(fileItem); ok {
				return m.download(it.rec)
			}
			return nil
		case "a":
			m.Leave = leaveUsers
			return nil
		case "h":
			m.Leave = leaveHistory
			return nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *filesModel) updateForm(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.state = filesStateList
		m.form = nil
		return nil
	}

	var cmd tea.Cmd
	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.err = fmt.Errorf("internal error: unexpected form model type")
		return nil
	}
	m.form = f
	if m.form.State != huh.StateCompleted {
		return cmd
	}

	switch m.state {
	case filesStateUpload:
		if !m.uploadGo {
			m.state = filesStateList
			m.form = nil
			return nil
		}
		return m.upload(splitPaths(m.uploadPaths))
	case filesStateConfirmDelete:
		target := m.deleteTarget
		if !m.deleteGo {
			m.state = filesStateList
			m.form = nil
			return nil
		}
		return m.delete(target)
	}
	return cmd
}

// upload runs the batch in a command; the list itself is updated only
// when the resulting events come back through the stream.
func (m *filesModel) upload(paths []string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		res := a.Dispatcher.Upload(ctx, paths)
		for _, f := range res.Uploaded {
			a.History.Record(history.Entry{
				Action: history.ActionUpload, Filename: f.Name,
				Size: f.Record.Size, Actor: a.Guard.Username(), Succeeded: true,
			})
		}
		for _, f := range res.Failed {
			a.History.Record(history.Entry{
				Action: history.ActionUpload, Filename: f.Name,
				Actor: a.Guard.Username(), Detail: f.Err.Error(),
			})
		}
		return uploadDoneMsg{result: res.Summary()}
	}
}

func (m *filesModel) delete(filename string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := a.Dispatcher.Delete(ctx, filename); err != nil {
			a.History.Record(history.Entry{
				Action: history.ActionDelete, Filename: filename,
				Actor: a.Guard.Username(), Detail: err.Error(),
			})
			return actionDoneMsg{err: err}
		}
		a.History.Record(history.Entry{
			Action: history.ActionDelete, Filename: filename,
			Actor: a.Guard.Username(), Succeeded: true,
		})
		return actionDoneMsg{notice: fmt.Sprintf("deleted %s", filename)}
	}
}

func (m *filesModel) download(rec sharefile.Record) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		dest, err := a.Dispatcher.Download(ctx, rec.Filename)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		a.History.Record(history.Entry{
			Action: history.ActionDownload, Filename: rec.Filename,
			Size: rec.Size, Actor: a.Guard.Username(), Succeeded: true,
		})
		return actionDoneMsg{notice: fmt.Sprintf("saved to %s", dest)}
	}
}

func (m *filesModel) startUpload() {
	m.state = filesStateUpload
	m.uploadPaths = ""
	m.uploadGo = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Files to upload (separate with commas)").
				Value(&m.uploadPaths).
				Validate(nonEmpty("path")),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Upload?").Value(&m.uploadGo),
		),
	)
}

func (m *filesModel) startConfirmDelete(filename string) {
	m.state = filesStateConfirmDelete
	m.deleteTarget = filename
	m.deleteGo = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s?", filename)).
				Description("This removes the file for everyone.").
				Value(&m.deleteGo),
		),
	)
}

func (m *filesModel) cycleSort() {
	order := []sharefile.SortKey{
		sharefile.SortByDate, sharefile.SortByName, sharefile.SortByUploader,
		sharefile.SortBySize, sharefile.SortByType,
	}
	for i, k := range order {
		if k == m.sort {
			m.sort = order[(i+1)%len(order)]
			m.reload()
			return
		}
	}
	m.sort = sharefile.DefaultSort
	m.reload()
}

func (m *filesModel) reload() {
	records := m.app.Files.SortedView(m.sort)
	items := make([]list.Item, 0, len(records))
	for _, r := range records {
		items = append(items, fileItem{rec: r, highlight: r.Filename == m.highlight})
	}

	selected := m.list.Index()
	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = fmt.Sprintf("Shared files • sort: %s", m.sort)
	if selected < len(items) {
		m.list.Select(selected)
	}
}

func (m *filesModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("File error: %v\n\nPress Enter/Esc to go back.", m.err)
	}

	switch m.state {
	case filesStateUpload, filesStateConfirmDelete:
		return m.form.View() + "\n\n(esc to cancel)"
	default:
		s := m.list.View() + "\n(u upload, d download, x delete, s sort, h history, a admin, q quit)"
		if m.notice != "" {
			s += "\n" + noticeStyle.Render(m.notice)
		}
		return s
	}
}

func splitPaths(s string) []string {
	parts := strings.Split(s, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
