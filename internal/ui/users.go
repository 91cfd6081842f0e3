package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/app"
	"github.com/aviellagerev/shareterm/internal/reconcile"
)

type usersState int

const (
	usersStateList usersState = iota
	usersStateSetPermission
	usersStateConfirmDelete
)

// rosterLoadedMsg carries the admin user listing from the server.
type rosterLoadedMsg struct {
	users []account.User
	err   error
}

// adminActionMsg reports the outcome of a permission change or user
// deletion request.
type adminActionMsg struct {
	notice string
	err    error
}

type usersModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state usersState
	list  list.Model

	selected account.User
	form     *huh.Form

	permChoice string
	permGo     bool
	deleteGo   bool

	notice  string
	warning string
	err     error
}

type rosterItem struct {
	user account.User
}

func (i rosterItem) Title() string { return i.user.Username }
func (i rosterItem) Description() string {
	return fmt.Sprintf("#%d • %s", i.user.ID, i.user.Permission.Describe())
}
func (i rosterItem) FilterValue() string { return i.user.Username }

func newUsersModel(a *app.App) *usersModel {
	m := &usersModel{app: a, state: usersStateList}
	m.reload()
	return m
}

// Init fetches the roster; the store then stays current through
// user_registered, user_deleted and permission_updated events.
func (m *usersModel) Init() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		users, err := a.Client.ListUsers(ctx)
		return rosterLoadedMsg{users: users, err: err}
	}
}

func (m *usersModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

// Refresh re-renders after a reconciled roster change.
func (m *usersModel) Refresh(c reconcile.Change) {
	switch c.Kind {
	case reconcile.ChangeUserAdded:
		m.notice = fmt.Sprintf("%s registered", c.User.Username)
		m.reload()
	case reconcile.ChangeUserRemoved, reconcile.ChangeUserPermission:
		m.reload()
	}
}

// noteDemotion shows the countdown warning before the forced return
// to the files screen.
func (m *usersModel) noteDemotion(p account.Permission) {
	m.warning = fmt.Sprintf("admin access revoked (now %s), returning to files", p)
}

func (m *usersModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case rosterLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return nil
		}
		m.app.Users.Replace(msg.users)
		m.reload()
		return nil
	case adminActionMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.notice = msg.notice
		}
		m.state = usersStateList
		m.form = nil
		return nil
	}

	if m.err != nil {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc", "q", "enter":
				m.err = nil
				m.state = usersStateList
				m.form = nil
			}
		}
		return nil
	}

	switch m.state {
	case usersStateSetPermission, usersStateConfirmDelete:
		return m.updateForm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "esc":
			m.Done = true
			return nil
		case "enter", "p":
			if it, ok := m.list.SelectedItem().(rosterItem); ok {
				m.startSetPermission(it.user)
			}
			return nil
		case "x":
			if it, ok := m.list.SelectedItem().(rosterItem); ok {
				m.startConfirmDelete(it.user)
			}
			return nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *usersModel) updateForm(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.state = usersStateList
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
	case usersStateSetPermission:
		if !m.permGo {
			m.state = usersStateList
			m.form = nil
			return nil
		}
		return m.setPermission(m.selected, account.ParsePermission(m.permChoice))
	case usersStateConfirmDelete:
		if !m.deleteGo {
			m.state = usersStateList
			m.form = nil
			return nil
		}
		return m.deleteUser(m.selected)
	}
	return cmd
}

// setPermission sends the change; the roster itself updates when the
// permission_updated event comes back.
func (m *usersModel) setPermission(u account.User, p account.Permission) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := a.Client.UpdatePermission(ctx, u.ID, p); err != nil {
			return adminActionMsg{err: fmt.Errorf("update %s: %w", u.Username, err)}
		}
		return adminActionMsg{notice: fmt.Sprintf("%s is now %s", u.Username, p)}
	}
}

func (m *usersModel) deleteUser(u account.User) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := a.Client.DeleteUser(ctx, u.ID); err != nil {
			return adminActionMsg{err: fmt.Errorf("delete %s: %w", u.Username, err)}
		}
		return adminActionMsg{notice: fmt.Sprintf("deleted %s", u.Username)}
	}
}

func (m *usersModel) startSetPermission(u account.User) {
	m.state = usersStateSetPermission
	m.selected = u
	m.permChoice = string(u.Permission)
	m.permGo = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Role for %s", u.Username)).
				Options(
					huh.NewOption("Read only", string(account.PermRead)),
					huh.NewOption("Read and upload", string(account.PermWrite)),
					huh.NewOption("Upload and delete", string(account.PermDelete)),
					huh.NewOption("Administrator", string(account.PermAdmin)),
				).
				Value(&m.permChoice),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Apply role?").Value(&m.permGo),
		),
	)
}

func (m *usersModel) startConfirmDelete(u account.User) {
	m.state = usersStateConfirmDelete
	m.selected = u
	m.deleteGo = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete account %s?", u.Username)).
				Description("Their files remain shared.").
				Value(&m.deleteGo),
		),
	)
}

func (m *usersModel) reload() {
	users := m.app.Users.SortedView()
	items := make([]list.Item, 0, len(users))
	for _, u := range users {
		items = append(items, rosterItem{user: u})
	}

	selected := m.list.Index()
	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = "Users"
	if selected < len(items) {
		m.list.Select(selected)
	}
}

func (m *usersModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Admin error: %v\n\nPress Enter/Esc to go back.", m.err)
	}

	switch m.state {
	case usersStateSetPermission, usersStateConfirmDelete:
		return m.form.View() + "\n\n(esc to cancel)"
	default:
		s := m.list.View() + "\n(enter change role, x delete, esc back)"
		if m.warning != "" {
			s += "\n" + errStyle.Render(m.warning)
		} else if m.notice != "" {
			s += "\n" + noticeStyle.Render(m.notice)
		}
		return s
	}
}
