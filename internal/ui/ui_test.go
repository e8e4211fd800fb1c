package ui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"taskdeck/internal/config"
	"taskdeck/internal/controller"
	"taskdeck/internal/form"
	"taskdeck/internal/logging"
	"taskdeck/internal/task"
	"taskdeck/internal/testutil"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadOrCreate(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	return cfg
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// send delivers keys and drops whatever commands they return.
func send(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

// run delivers key and then executes the resulting command chain.
func run(t *testing.T, m Model, key string) Model {
	t.Helper()
	next, cmd := m.Update(keyMsg(key))
	if cmd == nil {
		t.Fatalf("key %q produced no command; status %q", key, next.(Model).status)
	}
	return drain(next.(Model), cmd)
}

func drain(m Model, cmd tea.Cmd) Model {
	for cmd != nil {
		var next tea.Model
		next, cmd = m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func started(t *testing.T, fs *testutil.FakeStore, cfg config.Config) Model {
	t.Helper()
	m := New(context.Background(), fs, cfg, logging.Discard())
	if m.screen != screenTasks {
		t.Fatal("expected a signed-in backend to open the task list")
	}
	m = drain(m, m.Init())
	if v := m.ctrl.Snapshot(); v.State != controller.Ready {
		t.Fatalf("state = %v, status %q", v.State, m.status)
	}
	return m
}

func seeded(t *testing.T) *testutil.FakeStore {
	t.Helper()
	fs := testutil.NewFakeStore()
	fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	fs.AddTask("u-1", "Pay rent", time.Date(2025, 2, 1, 0, 0, 0, 0, time.Local), task.PriorityHigh)
	return fs
}

func TestSignInLoadsTaskList(t *testing.T) {
	fs := seeded(t)
	if err := fs.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	m := New(context.Background(), fs, testConfig(t), logging.Discard())
	if m.screen != screenAuth || m.Init() != nil {
		t.Fatal("expected the auth screen without a session")
	}

	m = send(m, "ann@x.com", "enter", "secret1")
	m = run(t, m, "enter")

	if m.screen != screenTasks {
		t.Fatalf("screen = %v, status %q", m.screen, m.status)
	}
	view := m.View()
	for _, want := range []string{"Tasks for Ann Lee", "Pay rent", "2025-02-01"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSignInValidationMakesNoCall(t *testing.T) {
	fs := testutil.NewFakeStore()
	m := New(context.Background(), fs, testConfig(t), logging.Discard())

	m = send(m, "not-an-email", "enter", "secret1", "enter")
	if m.status != "Please enter a valid email" {
		t.Errorf("status = %q", m.status)
	}
	if fs.TotalCalls() != 0 {
		t.Errorf("store called %d times", fs.TotalCalls())
	}
}

func TestSignUpThenSignIn(t *testing.T) {
	fs := testutil.NewFakeStore()
	m := New(context.Background(), fs, testConfig(t), logging.Discard())

	m = send(m, "ctrl+s")
	if m.auth.Mode() != form.SignUp {
		t.Fatal("ctrl+s did not switch to sign up")
	}
	m = send(m, "Ann", "enter", "Lee", "enter", "ann@x.com", "enter", "secret1")
	m = run(t, m, "enter")

	if fs.Calls("SignUp") != 1 {
		t.Fatalf("SignUp called %d times; status %q", fs.Calls("SignUp"), m.status)
	}
	if m.auth.Mode() != form.SignIn || m.auth.Value(form.AuthEmail) != "ann@x.com" {
		t.Fatalf("after sign up: mode %v email %q", m.auth.Mode(), m.auth.Value(form.AuthEmail))
	}

	m = send(m, "enter", "secret1")
	m = run(t, m, "enter")
	if m.screen != screenTasks {
		t.Fatalf("screen = %v, status %q", m.screen, m.status)
	}
	if got := m.ctrl.Snapshot().Profile.FirstName; got != "Ann" {
		t.Errorf("profile first name = %q", got)
	}
}

func TestCreateTaskFlow(t *testing.T) {
	fs := testutil.NewFakeStore()
	fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	m := started(t, fs, testConfig(t))

	m = send(m, "a")
	if m.ctrl.Snapshot().Modal != controller.CreateModalOpen {
		t.Fatal("create modal not open")
	}
	m = send(m, "Pay rent", "enter", "enter", "ctrl+p")
	m = run(t, m, "enter")

	if n := fs.Calls("CreateTask"); n != 1 {
		t.Fatalf("CreateTask called %d times; status %q", n, m.status)
	}
	v := m.ctrl.Snapshot()
	if v.Modal != controller.Idle || m.editor != nil {
		t.Errorf("modal still open: %v", v.Modal)
	}
	if len(v.Tasks) != 1 || v.Tasks[0].Title != "Pay rent" || v.Tasks[0].Priority != task.PriorityHigh {
		t.Errorf("tasks = %+v", v.Tasks)
	}
	if m.status != "Added task" {
		t.Errorf("status = %q", m.status)
	}
}

func TestCreateWithBlankTitleStaysOpen(t *testing.T) {
	fs := testutil.NewFakeStore()
	fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	m := started(t, fs, testConfig(t))

	m = send(m, "a", "enter", "enter", "enter")
	if m.status != "Please enter a task title" {
		t.Errorf("status = %q", m.status)
	}
	if fs.Calls("CreateTask") != 0 {
		t.Error("invalid form reached the store")
	}
	if m.ctrl.Snapshot().Modal != controller.CreateModalOpen {
		t.Error("modal closed on a validation error")
	}

	m = send(m, "esc")
	if m.ctrl.Snapshot().Modal != controller.Idle || m.editor != nil {
		t.Error("esc did not close the modal")
	}
}

func TestEditTaskFlow(t *testing.T) {
	fs := seeded(t)
	m := started(t, fs, testConfig(t))

	m = send(m, "e", " today", "enter", "enter")
	if d := m.ctrl.Snapshot().Draft; d == nil || d.Title != "Pay rent today" {
		t.Fatalf("draft = %+v", d)
	}
	if got := m.ctrl.Snapshot().Tasks[0].Title; got != "Pay rent" {
		t.Errorf("list changed before save: %q", got)
	}
	m = run(t, m, "enter")

	if n := fs.Calls("UpdateTask"); n != 1 {
		t.Fatalf("UpdateTask called %d times; status %q", n, m.status)
	}
	if got := m.ctrl.Snapshot().Tasks[0]; got.Title != "Pay rent today" || got.Priority != task.PriorityHigh {
		t.Errorf("after save = %+v", got)
	}
}

func TestDeleteCancelThenConfirm(t *testing.T) {
	fs := seeded(t)
	m := started(t, fs, testConfig(t))

	m = send(m, "d")
	if m.ctrl.Snapshot().Modal != controller.DeleteConfirmOpen {
		t.Fatal("delete confirm not open")
	}
	if !strings.Contains(m.status, `Delete "Pay rent"?`) {
		t.Errorf("status = %q", m.status)
	}
	before := fs.TotalCalls()
	m = send(m, "n")
	if fs.TotalCalls() != before {
		t.Error("cancel reached the store")
	}
	if v := m.ctrl.Snapshot(); v.Modal != controller.Idle || len(v.Tasks) != 1 {
		t.Errorf("after cancel: %+v", v)
	}

	m = send(m, "d")
	m = run(t, m, "y")
	if fs.Calls("DeleteTask") != 1 {
		t.Fatalf("DeleteTask called %d times", fs.Calls("DeleteTask"))
	}
	if v := m.ctrl.Snapshot(); len(v.Tasks) != 0 || v.Modal != controller.Idle {
		t.Errorf("after delete: %+v", v)
	}
}

func TestDisabledFeatures(t *testing.T) {
	fs := seeded(t)
	cfg := testConfig(t)
	cfg.Features = config.Features{}
	m := started(t, fs, cfg)

	m = send(m, "e")
	if m.status != "Not available in this build" {
		t.Errorf("edit status = %q", m.status)
	}
	m = send(m, "d")
	if m.ctrl.Snapshot().Modal != controller.Idle {
		t.Error("delete opened while disabled")
	}
	if strings.Contains(m.View(), "e edit") {
		t.Error("help advertises a disabled action")
	}
}

func TestSignOutReturnsToAuth(t *testing.T) {
	fs := seeded(t)
	m := started(t, fs, testConfig(t))

	m = run(t, m, "o")
	if m.screen != screenAuth || m.ctrl != nil {
		t.Fatalf("screen = %v", m.screen)
	}
	if _, ok := fs.CurrentUser(context.Background()); ok {
		t.Error("session survived sign out")
	}
}

func TestCursorStaysInBounds(t *testing.T) {
	for _, tc := range []struct{ cur, n, want int }{
		{0, 0, 0},
		{-1, 3, 0},
		{5, 3, 2},
		{1, 3, 1},
	} {
		if got := clampCursor(tc.cur, tc.n); got != tc.want {
			t.Errorf("clampCursor(%d, %d) = %d, want %d", tc.cur, tc.n, got, tc.want)
		}
	}
}

func TestPasswordMaskCountsCharacters(t *testing.T) {
	m := New(context.Background(), testutil.NewFakeStore(), testConfig(t), logging.Discard())
	m.auth.Set(form.AuthPassword, "pässwörd")

	if got := strings.Count(m.renderAuth(), "*"); got != 8 {
		t.Errorf("mask has %d asterisks, want 8", got)
	}
}
