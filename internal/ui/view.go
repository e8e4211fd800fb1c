package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskdeck/internal/config"
	"taskdeck/internal/controller"
	"taskdeck/internal/form"
	"taskdeck/internal/task"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	modalStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	priorityStyles = map[task.Priority]lipgloss.Style{
		task.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		task.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		task.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
	}
)

func (m Model) View() string {
	var b strings.Builder
	if m.screen == screenAuth {
		b.WriteString(m.renderAuth())
		b.WriteString("\n\n")
		b.WriteString(m.status)
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(renderAuthHelp(m.cfg.Keys)))
		return b.String()
	}

	v := m.ctrl.Snapshot()
	b.WriteString(headerStyle.Render(greeting(v.Profile)))
	b.WriteString("\n\n")

	switch {
	case v.State != controller.Ready:
		b.WriteString("Loading tasks...")
	case len(v.Tasks) == 0:
		b.WriteString(fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add))
	default:
		b.WriteString(m.renderTaskList(v))
	}
	b.WriteString("\n")

	if m.editor != nil && (v.Modal == controller.CreateModalOpen || v.Modal == controller.EditModalOpen) {
		b.WriteString(modalStyle.Render(m.renderEditor()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(renderHelp(m.cfg.Keys, v)))
	return b.String()
}

func greeting(p task.Profile) string {
	if name := p.DisplayName(); name != "" {
		return "Tasks for " + name
	}
	return "Tasks"
}

func (m Model) renderTaskList(v controller.View) string {
	var b strings.Builder
	for i, t := range v.Tasks {
		cursor := " "
		if m.cursor == i && v.Modal == controller.Idle {
			cursor = ">"
		}
		style, ok := priorityStyles[t.Priority]
		if !ok {
			style = dimStyle
		}
		b.WriteString(fmt.Sprintf("%s %s %-8s %s\n",
			cursor, task.FormatDeadline(t.Deadline), style.Render(string(t.Priority)), t.Title))
	}
	return b.String()
}

func (m Model) renderEditor() string {
	var b strings.Builder
	heading := "New task"
	if m.editor.Variant() == form.Edit {
		heading = "Edit task"
	}
	b.WriteString(headerStyle.Render(heading))
	b.WriteString("\n")
	for _, f := range form.Fields() {
		prefix := " "
		if f == m.editor.Focus() {
			prefix = ">"
		}
		val := m.editor.Value(f)
		if strings.TrimSpace(val) == "" {
			val = "(empty)"
		}
		b.WriteString(fmt.Sprintf("%s %-10s : %s\n", prefix, padLabel(fieldName(f)), val))
	}
	b.WriteString(m.input.View())
	return b.String()
}

func fieldName(f form.Field) string {
	switch f {
	case form.FieldTitle:
		return "title"
	case form.FieldDeadline:
		return "deadline"
	}
	return "priority"
}

func padLabel(s string) string {
	return fmt.Sprintf("%-10s", s)
}

func renderHelp(k config.Keymap, v controller.View) string {
	switch v.Modal {
	case controller.CreateModalOpen, controller.EditModalOpen:
		return fmt.Sprintf("%s/%s field • %s priority • %s next/save • %s cancel",
			k.NextField, k.PrevField, k.Priority, k.Confirm, k.Cancel)
	case controller.DeleteConfirmOpen:
		return "y confirm • n cancel"
	}
	help := fmt.Sprintf("%s/%s move • %s add", k.Up, k.Down, k.Add)
	if v.EditEnabled {
		help += fmt.Sprintf(" • %s edit", k.Edit)
	}
	if v.DeleteEnabled {
		help += fmt.Sprintf(" • %s delete", k.Delete)
	}
	return help + fmt.Sprintf(" • %s refresh • %s sign out • %s quit", k.Refresh, k.SignOut, k.Quit)
}

func renderAuthHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s field • %s next/submit • %s sign in/up • %s quit",
		k.NextField, k.PrevField, k.Confirm, k.SwitchForm, k.Cancel)
}
