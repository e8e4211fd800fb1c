package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/config"
	"taskdeck/internal/controller"
	"taskdeck/internal/form"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

type screen int

const (
	screenAuth screen = iota
	screenTasks
)

type (
	signedInMsg struct {
		user task.User
		err  error
	}
	signedUpMsg struct {
		email string
		err   error
	}
	signedOutMsg struct{ err error }
	startedMsg   struct{ err error }
	mutationMsg  struct {
		op     string
		taskID string
		err    error
	}
)

type Model struct {
	ctx     context.Context
	backend store.Backend
	cfg     config.Config
	log     *logrus.Entry

	screen   screen
	auth     *form.AuthForm
	authBusy bool

	ctrl   *controller.Controller
	editor *form.TaskForm
	cursor int

	input  textinput.Model
	status string
}

func Run(ctx context.Context, backend store.Backend, cfg config.Config, log *logrus.Entry) error {
	program := tea.NewProgram(New(ctx, backend, cfg, log))
	_, err := program.Run()
	return err
}

// New builds the root model. A backend that already holds a session skips
// straight to the task list.
func New(ctx context.Context, backend store.Backend, cfg config.Config, log *logrus.Entry) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		ctx:     ctx,
		backend: backend,
		cfg:     cfg,
		log:     log,
		input:   ti,
	}
	if u, ok := backend.CurrentUser(ctx); ok {
		m.enterTasks(u)
		return m
	}
	m.enterAuth(form.SignIn)
	return m
}

func (m Model) Init() tea.Cmd {
	if m.screen == screenTasks {
		return m.startCmd()
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.screen == screenAuth {
			return m.updateAuth(msg)
		}
		return m.updateTasks(msg)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	case signedInMsg:
		m.authBusy = false
		if msg.err != nil {
			m.status = "Sign in failed: " + task.UserMessage(msg.err)
			return m, nil
		}
		m.enterTasks(msg.user)
		return m, m.startCmd()
	case signedUpMsg:
		m.authBusy = false
		if msg.err != nil {
			m.status = "Sign up failed: " + task.UserMessage(msg.err)
			return m, nil
		}
		m.enterAuth(form.SignIn)
		m.auth.Set(form.AuthEmail, msg.email)
		m.loadAuthInput()
		m.status = "Account created. Sign in to continue."
	case signedOutMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("sign out")
		}
		m.enterAuth(form.SignIn)
		m.status = "Signed out"
	case startedMsg:
		if errors.Is(msg.err, controller.ErrAlreadyStarted) {
			return m, nil
		}
		if msg.err != nil {
			m.status = fmt.Sprintf("Load failed: %s (press %s to retry)", task.UserMessage(msg.err), m.cfg.Keys.Refresh)
			return m, nil
		}
		m.cursor = clampCursor(m.cursor, len(m.ctrl.Snapshot().Tasks))
		m.status = fmt.Sprintf("Press '%s' to add a task.", m.cfg.Keys.Add)
	case mutationMsg:
		return m.applyMutation(msg)
	}
	return m, nil
}

func (m *Model) enterAuth(mode form.AuthMode) {
	m.screen = screenAuth
	m.ctrl = nil
	m.editor = nil
	m.cursor = 0
	m.auth = form.NewAuth(mode)
	m.loadAuthInput()
	m.input.Focus()
}

func (m *Model) enterTasks(u task.User) {
	m.screen = screenTasks
	m.auth = nil
	m.ctrl = controller.New(m.backend, u, m.log, controller.Options{
		EnableEdit:   m.cfg.Features.Edit,
		EnableDelete: m.cfg.Features.Delete,
	})
	m.input.Blur()
	m.input.EchoMode = textinput.EchoNormal
	m.status = "Loading..."
}

func (m Model) startCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return startedMsg{err: ctrl.Start(ctx)}
	}
}

func (m Model) signOutCmd() tea.Cmd {
	backend, ctx := m.backend, m.ctx
	return func() tea.Msg {
		return signedOutMsg{err: backend.SignOut(ctx)}
	}
}
