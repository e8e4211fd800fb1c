package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskdeck/internal/form"
	"taskdeck/internal/task"
)

func (m Model) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", m.cfg.Keys.Cancel:
		return m, tea.Quit
	case m.cfg.Keys.SwitchForm:
		m.auth.Toggle()
		m.loadAuthInput()
		m.status = "Switched to " + m.auth.Mode().String()
	case m.cfg.Keys.NextField, "down":
		m.auth.NextField()
		m.loadAuthInput()
	case m.cfg.Keys.PrevField, "up":
		m.auth.PrevField()
		m.loadAuthInput()
	case m.cfg.Keys.Confirm:
		fields := m.auth.Fields()
		if m.auth.Focus() != fields[len(fields)-1] {
			m.auth.NextField()
			m.loadAuthInput()
			return m, nil
		}
		return m.submitAuth()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.auth.Set(m.auth.Focus(), m.input.Value())
		return m, cmd
	}
	return m, nil
}

func (m Model) submitAuth() (tea.Model, tea.Cmd) {
	if m.authBusy {
		m.status = "Please wait..."
		return m, nil
	}
	backend, ctx := m.backend, m.ctx

	if m.auth.Mode() == form.SignUp {
		req, err := m.auth.SubmitSignUp()
		if err != nil {
			m.status = task.UserMessage(err)
			return m, nil
		}
		m.authBusy = true
		m.status = "Creating account..."
		return m, func() tea.Msg {
			_, err := backend.SignUp(ctx, req)
			return signedUpMsg{email: req.Email, err: err}
		}
	}

	email, password, err := m.auth.SubmitSignIn()
	if err != nil {
		m.status = task.UserMessage(err)
		return m, nil
	}
	m.authBusy = true
	m.status = "Signing in..."
	return m, func() tea.Msg {
		sess, err := backend.SignIn(ctx, email, password)
		return signedInMsg{user: sess.User, err: err}
	}
}

func (m *Model) loadAuthInput() {
	field := m.auth.Focus()
	m.input.SetValue(m.auth.Value(field))
	m.input.Placeholder = field
	m.input.CursorEnd()
	if field == form.AuthPassword {
		m.input.EchoMode = textinput.EchoPassword
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
}

func (m Model) renderAuth() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("taskdeck: " + m.auth.Mode().String()))
	b.WriteString("\n\n")
	for _, field := range m.auth.Fields() {
		prefix := " "
		if field == m.auth.Focus() {
			prefix = ">"
		}
		val := m.auth.Value(field)
		if field == form.AuthPassword {
			val = strings.Repeat("*", utf8.RuneCountInString(val))
		}
		b.WriteString(prefix + " " + padLabel(field) + " : " + val + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}
