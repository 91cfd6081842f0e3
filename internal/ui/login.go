package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/api"
	"github.com/aviellagerev/shareterm/internal/app"
)

// loginResultMsg reports the outcome of a login attempt.
type loginResultMsg struct {
	username   string
	permission account.Permission
	err        error
}

// registerResultMsg reports the outcome of a registration attempt.
type registerResultMsg struct {
	username string
	err      error
}

type loginModel struct {
	app *app.App

	form *huh.Form

	mode     string // "login" or "register"
	username string
	password string

	notice string
	busy   bool
}

func newLoginModel(a *app.App) *loginModel {
	m := &loginModel{app: a, mode: "login"}
	m.form = m.buildForm()
	return m
}

func (m *loginModel) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Shareterm").
				Options(
					huh.NewOption("Log in", "login"),
					huh.NewOption("Register", "register"),
				).
				Value(&m.mode),
			huh.NewInput().Title("Username").Value(&m.username).Validate(nonEmpty("username")),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&m.password).Validate(nonEmpty("password")),
		),
	)
}

func (m *loginModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m *loginModel) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(registerResultMsg); ok {
		if msg.err != nil {
			return m.fail(msg.err)
		}
		// Registration submitted; the account starts with the read
		// role, so log straight in with the same credentials.
		return m.attemptLogin(msg.username, m.password)
	}
	if m.busy {
		return nil
	}

	updated, cmd := m.form.Update(msg)
	if f, ok := updated.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		m.busy = true
		if m.mode == "register" {
			return m.attemptRegister(m.username, m.password)
		}
		return m.attemptLogin(m.username, m.password)
	}
	return cmd
}

func (m *loginModel) attemptLogin(username, password string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := a.Client.Login(ctx, username, password); err != nil {
			if errors.Is(err, api.ErrInvalidCredentials) {
				return loginResultMsg{err: fmt.Errorf("invalid username or password")}
			}
			return loginResultMsg{err: err}
		}
		perm, err := a.Client.RefreshSession(ctx)
		if err != nil {
			return loginResultMsg{err: fmt.Errorf("verify session: %w", err)}
		}
		return loginResultMsg{username: username, permission: perm}
	}
}

func (m *loginModel) attemptRegister(username, password string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := a.Client.Register(ctx, username, password); err != nil {
			return registerResultMsg{err: err}
		}
		return registerResultMsg{username: username}
	}
}

// fail re-arms the form after a failed attempt.
func (m *loginModel) fail(err error) tea.Cmd {
	m.busy = false
	m.notice = err.Error()
	m.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *loginModel) View() string {
	s := titleStyle.Render("Shareterm") + "\n\n"
	if m.notice != "" {
		s += errStyle.Render(m.notice) + "\n\n"
	}
	if m.busy {
		return s + "Signing in..."
	}
	return s + m.form.View()
}

func nonEmpty(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
