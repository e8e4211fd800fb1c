package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"taskdeck/internal/controller"
	"taskdeck/internal/form"
	"taskdeck/internal/task"
)

func (m Model) updateTasks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	v := m.ctrl.Snapshot()
	switch v.Modal {
	case controller.CreateModalOpen, controller.EditModalOpen:
		return m.updateEditor(msg)
	case controller.DeleteConfirmOpen:
		return m.updateDeleteConfirm(msg.String())
	}
	return m.updateListMode(msg.String(), v)
}

func (m Model) updateListMode(key string, v controller.View) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		if len(v.Tasks) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(v.Tasks))
	case m.cfg.Keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(v.Tasks))
		}
	case m.cfg.Keys.Refresh:
		if v.State != controller.Ready {
			m.status = "Retrying..."
			return m, m.startCmd()
		}
		m.status = "Refreshing..."
		return m, m.mutationCmd("refresh", "", m.ctrl.Refresh)
	case m.cfg.Keys.Add:
		f, err := m.ctrl.OpenCreate()
		if err != nil {
			m.status = describe(err)
			return m, nil
		}
		m.openEditor(f)
		m.status = "New task: enter to advance, " + m.cfg.Keys.Cancel + " to cancel"
	case m.cfg.Keys.Edit:
		if len(v.Tasks) == 0 {
			m.status = "No tasks to edit"
			return m, nil
		}
		f, err := m.ctrl.OpenEdit(v.Tasks[clampCursor(m.cursor, len(v.Tasks))].ID)
		if err != nil {
			m.status = describe(err)
			return m, nil
		}
		m.openEditor(f)
		m.status = "Edit task: enter to advance, " + m.cfg.Keys.Cancel + " to cancel"
	case m.cfg.Keys.Delete:
		if len(v.Tasks) == 0 {
			return m, nil
		}
		t := v.Tasks[clampCursor(m.cursor, len(v.Tasks))]
		if err := m.ctrl.OpenDelete(t.ID); err != nil {
			m.status = describe(err)
			return m, nil
		}
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Title)
	case m.cfg.Keys.SignOut:
		m.status = "Signing out..."
		return m, m.signOutCmd()
	}
	return m, nil
}

func (m *Model) openEditor(f *form.TaskForm) {
	m.editor = f
	m.loadEditorInput()
	m.input.Focus()
}

func (m *Model) closeEditor() {
	m.editor = nil
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) loadEditorInput() {
	field := m.editor.Focus()
	m.input.SetValue(m.editor.Value(field))
	m.input.Placeholder = field.Label()
	m.input.CursorEnd()
}

// commitPriority validates typed priority text before focus leaves it.
func (m *Model) commitPriority() error {
	if m.editor.Focus() != form.FieldPriority {
		return nil
	}
	return m.editor.SetField(form.FieldPriority, m.input.Value())
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case m.cfg.Keys.Cancel:
		if err := m.ctrl.CloseModal(); err != nil {
			m.status = describe(err)
			return m, nil
		}
		m.closeEditor()
		m.status = "Cancelled"
	case m.cfg.Keys.NextField, m.cfg.Keys.PrevField:
		if err := m.commitPriority(); err != nil {
			m.status = task.UserMessage(err)
			return m, nil
		}
		if key == m.cfg.Keys.NextField {
			m.editor.NextField()
		} else {
			m.editor.PrevField()
		}
		m.loadEditorInput()
		m.status = m.editorPrompt()
	case m.cfg.Keys.Priority:
		m.editor.CyclePriority()
		if m.editor.Focus() == form.FieldPriority {
			m.loadEditorInput()
		}
	case m.cfg.Keys.Confirm:
		if err := m.commitPriority(); err != nil {
			m.status = task.UserMessage(err)
			return m, nil
		}
		if m.editor.Focus() != form.FieldPriority {
			m.editor.NextField()
			m.loadEditorInput()
			m.status = m.editorPrompt()
			return m, nil
		}
		return m.submitEditor()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.editor.Focus() != form.FieldPriority {
			_ = m.editor.SetField(m.editor.Focus(), m.input.Value())
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) submitEditor() (tea.Model, tea.Cmd) {
	if m.ctrl.Snapshot().Busy {
		m.status = "Saving..."
		return m, nil
	}
	ctrl := m.ctrl
	if m.editor.Variant() == form.Edit {
		id, patch, err := m.editor.SubmitEdit()
		if err != nil {
			m.status = task.UserMessage(err)
			return m, nil
		}
		m.status = "Saving..."
		return m, m.mutationCmd("update", id, func(ctx context.Context) error { return ctrl.SubmitEdit(ctx, patch) })
	}
	p, err := m.editor.SubmitCreate()
	if err != nil {
		m.status = task.UserMessage(err)
		return m, nil
	}
	m.status = "Saving..."
	return m, m.mutationCmd("create", "", func(ctx context.Context) error { return ctrl.SubmitCreate(ctx, p) })
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", m.cfg.Keys.Cancel:
		if err := m.ctrl.CancelDelete(); err != nil {
			m.status = describe(err)
			return m, nil
		}
		m.status = "Delete cancelled"
	case "y", "Y", m.cfg.Keys.Confirm:
		id := m.ctrl.Snapshot().PendingDelete
		m.status = "Deleting..."
		return m, m.mutationCmd("delete", id, m.ctrl.ConfirmDelete)
	}
	return m, nil
}

func (m Model) mutationCmd(op, taskID string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return mutationMsg{op: op, taskID: taskID, err: fn(ctx)}
	}
}

func (m Model) applyMutation(msg mutationMsg) (tea.Model, tea.Cmd) {
	v := m.ctrl.Snapshot()
	if v.Modal == controller.Idle {
		m.closeEditor()
	}
	if msg.err != nil {
		if errors.Is(msg.err, controller.ErrBusy) {
			m.status = "Still working on the previous request"
			return m, nil
		}
		m.status = fmt.Sprintf("%s failed: %s", msg.op, task.UserMessage(msg.err))
		return m, nil
	}

	switch msg.op {
	case "create":
		m.cursor = 0
		m.status = "Added task"
	case "update":
		for i, t := range v.Tasks {
			if t.ID == msg.taskID {
				m.cursor = i
				break
			}
		}
		m.status = "Task saved"
	case "delete":
		m.status = "Deleted task"
	default:
		m.status = fmt.Sprintf("%d tasks", len(v.Tasks))
	}
	m.cursor = clampCursor(m.cursor, len(v.Tasks))
	return m, nil
}

func (m Model) editorPrompt() string {
	if m.editor == nil {
		return ""
	}
	f := m.editor.Focus()
	msg := fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, %s to cancel.",
		f.Label(), int(f)+1, len(form.Fields()), m.cfg.Keys.Cancel)
	if f == form.FieldPriority {
		msg += fmt.Sprintf(" %s cycles, enter saves.", m.cfg.Keys.Priority)
	}
	return msg
}

// describe turns controller refusals into status text.
func describe(err error) string {
	switch {
	case errors.Is(err, controller.ErrFeatureDisabled):
		return "Not available in this build"
	case errors.Is(err, controller.ErrBusy):
		return "Still working on the previous request"
	case errors.Is(err, controller.ErrNotReady):
		return "Tasks are still loading"
	}
	return task.UserMessage(err)
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
