package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/app"
	"github.com/aviellagerev/shareterm/internal/notify"
	"github.com/aviellagerev/shareterm/internal/reconcile"
	"github.com/aviellagerev/shareterm/internal/stream"
)

type screen int

const (
	screenLogin screen = iota
	screenFiles
	screenUsers
	screenHistory
)

// changeMsg carries one reconciled change from the event stream.
type changeMsg struct {
	change reconcile.Change
}

// statusMsg carries an event stream connection state transition.
type statusMsg struct {
	status stream.Status
}

// streamFailedMsg means the stream terminated because the session is
// no longer valid.
type streamFailedMsg struct {
	err error
}

// adminRedirectMsg fires after the grace period that follows losing
// the admin role while on the users screen.
type adminRedirectMsg struct{}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	footerStyle = lipgloss.NewStyle().Faint(true)
)

type rootModel struct {
	app *app.App
	ctx context.Context

	width  int
	height int

	active screen

	login   *loginModel
	files   *filesModel
	users   *usersModel
	history *historyModel

	// session lifetime; cancelled on logout
	sessionCancel context.CancelFunc
	statusCh      chan stream.Status
	streamErrs    <-chan error
	sub           *notify.Subscriber

	streamStatus stream.Status
	loginNotice  string
	err          error
}

// NewRootModel creates the top-level program model. ctx bounds the
// whole UI; closing it tears down any active session.
func NewRootModel(ctx context.Context, a *app.App) tea.Model {
	return &rootModel{
		app:    a,
		ctx:    ctx,
		active: screenLogin,
		login:  newLoginModel(a),
	}
}

func (m *rootModel) Init() tea.Cmd {
	return m.login.Init()
}

func (m *rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.files != nil {
			m.files.SetSize(msg.Width, msg.Height-1)
		}
		if m.users != nil {
			m.users.SetSize(msg.Width, msg.Height-1)
		}
		if m.history != nil {
			m.history.SetSize(msg.Width, msg.Height-1)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.endSession()
			return m, tea.Quit
		}

	case loginResultMsg:
		if msg.err != nil {
			return m, m.login.fail(msg.err)
		}
		return m, m.startSession(msg.username, msg.permission)

	case changeMsg:
		return m, tea.Batch(m.applyChange(msg.change), m.waitForChange())

	case statusMsg:
		m.streamStatus = msg.status
		return m, m.waitForStatus()

	case streamFailedMsg:
		// The server no longer recognizes the session. Drop
		// everything and return to login.
		m.endSession()
		m.active = screenLogin
		m.login = newLoginModel(m.app)
		m.loginNotice = fmt.Sprintf("session expired: %v", msg.err)
		return m, m.login.Init()

	case adminRedirectMsg:
		if m.active == screenUsers && m.app.Guard != nil && !m.app.Guard.Permission().CanAdmin() {
			m.activateFiles()
		}
		return m, nil
	}

	switch m.active {
	case screenLogin:
		return m, m.login.Update(msg)
	case screenFiles:
		cmd := m.files.Update(msg)
		switch m.files.Leave {
		case leaveUsers:
			m.files.Leave = leaveNone
			if m.app.Guard.Permission().CanAdmin() {
				m.activateUsers()
				return m, m.users.Init()
			}
			m.files.notice = "admin access required"
		case leaveHistory:
			m.files.Leave = leaveNone
			m.activateHistory()
		case leaveQuit:
			m.endSession()
			return m, tea.Quit
		}
		return m, cmd
	case screenUsers:
		cmd := m.users.Update(msg)
		if m.users.Done {
			m.users = nil
			m.activateFiles()
		}
		return m, cmd
	case screenHistory:
		cmd := m.history.Update(msg)
		if m.history.Done {
			m.history = nil
			m.activateFiles()
		}
		return m, cmd
	default:
		return m, nil
	}
}

// startSession wires the session-scoped machinery after a successful
// login and switches to the files screen.
func (m *rootModel) startSession(username string, perm account.Permission) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.sessionCancel = cancel
	m.statusCh = make(chan stream.Status, 8)

	errc, err := m.app.StartSession(ctx, username, perm, func(s stream.Status) {
		select {
		case m.statusCh <- s:
		default:
		}
	})
	if err != nil {
		cancel()
		m.err = err
		return tea.Quit
	}
	m.streamErrs = errc
	m.sub = m.app.Broker.Subscribe("ui")

	m.loginNotice = ""
	m.activateFiles()
	return tea.Batch(m.waitForChange(), m.waitForStatus(), m.waitForStreamErr())
}

func (m *rootModel) endSession() {
	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCancel = nil
	}
	if m.sub != nil {
		m.app.Broker.Unsubscribe(m.sub.ID)
		m.sub = nil
	}
	m.files = nil
	m.users = nil
	m.history = nil
}

// applyChange routes a reconciled change to the visible screens and
// schedules the forced redirect when the admin role is lost.
func (m *rootModel) applyChange(c reconcile.Change) tea.Cmd {
	if m.files != nil {
		m.files.Refresh(c)
	}
	if m.users != nil {
		m.users.Refresh(c)
	}

	if c.Kind == reconcile.ChangeOwnPermission {
		cmds := []tea.Cmd{m.confirmPermission()}
		if m.active == screenUsers && !c.Permission.CanAdmin() {
			m.users.noteDemotion(c.Permission)
			delay := m.app.Config.Server.AdminRedirectDelay
			cmds = append(cmds, tea.Tick(delay, func(time.Time) tea.Msg { return adminRedirectMsg{} }))
		}
		return tea.Batch(cmds...)
	}
	return nil
}

// confirmPermission re-verifies authorization with the server after an
// own-permission event. A failed refresh means the UI can no longer
// trust its session state, so it forces a logout.
func (m *rootModel) confirmPermission() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if _, err := a.Guard.Refresh(ctx, a.Client); err != nil {
			return streamFailedMsg{err: err}
		}
		return nil
	}
}

// The wait commands select on the subscription's Done channel so they
// return instead of blocking forever once the session is torn down.

func (m *rootModel) waitForChange() tea.Cmd {
	sub := m.sub
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case c := <-sub.Ch:
			return changeMsg{change: c}
		case <-sub.Done():
			return nil
		}
	}
}

func (m *rootModel) waitForStatus() tea.Cmd {
	sub, ch := m.sub, m.statusCh
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case s := <-ch:
			return statusMsg{status: s}
		case <-sub.Done():
			return nil
		}
	}
}

func (m *rootModel) waitForStreamErr() tea.Cmd {
	sub, errc := m.sub, m.streamErrs
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case err := <-errc:
			return streamFailedMsg{err: err}
		case <-sub.Done():
			return nil
		}
	}
}

func (m *rootModel) activateFiles() {
	m.active = screenFiles
	if m.files == nil {
		m.files = newFilesModel(m.app)
		m.files.SetSize(m.width, m.height-1)
	}
}

func (m *rootModel) activateUsers() {
	m.active = screenUsers
	if m.users == nil {
		m.users = newUsersModel(m.app)
		m.users.SetSize(m.width, m.height-1)
	}
}

func (m *rootModel) activateHistory() {
	m.active = screenHistory
	m.history = newHistoryModel(m.app)
	m.history.SetSize(m.width, m.height-1)
}

func (m *rootModel) View() string {
	if m.err != nil {
		return errStyle.Render("Error: ") + m.err.Error()
	}

	var body string
	switch m.active {
	case screenLogin:
		body = m.login.View()
		if m.loginNotice != "" {
			body = noticeStyle.Render(m.loginNotice) + "\n" + body
		}
		return body
	case screenFiles:
		body = m.files.View()
	case screenUsers:
		body = m.users.View()
	case screenHistory:
		body = m.history.View()
	}
	return body + "\n" + m.footer()
}

func (m *rootModel) footer() string {
	g := m.app.Guard
	if g == nil {
		return ""
	}
	return footerStyle.Render(fmt.Sprintf("%s (%s) • stream: %s",
		g.Username(), g.Permission(), m.streamStatus))
}
