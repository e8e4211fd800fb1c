package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskdeck/internal/form"
	"taskdeck/internal/logging"
	"taskdeck/internal/task"
	"taskdeck/internal/testutil"
)

var fixedNow = time.Date(2024, 12, 31, 9, 30, 0, 0, time.UTC)

func newReady(t *testing.T, opts Options) (*Controller, *testutil.FakeStore, task.User) {
	t.Helper()
	fs := testutil.NewFakeStore()
	u := fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	opts.Now = func() time.Time { return fixedNow }
	c := New(fs, u, logging.Discard(), opts)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, fs, u
}

func allFeatures() Options { return Options{EnableEdit: true, EnableDelete: true} }

func TestStartLoadsProfileThenTasks(t *testing.T) {
	fs := testutil.NewFakeStore()
	u := fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	fs.AddTask("u-1", "older", fixedNow, task.PriorityLow)
	fs.AddTask("u-1", "later", fixedNow.Add(48*time.Hour), task.PriorityHigh)
	fs.AddTask("u-2", "not mine", fixedNow, task.PriorityHigh)

	c := New(fs, u, logging.Discard(), Options{})
	if got := c.Snapshot().State; got != Uninitialized {
		t.Fatalf("state before start = %v", got)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	v := c.Snapshot()
	if v.State != Ready || v.Modal != Idle {
		t.Fatalf("state = %v/%v", v.State, v.Modal)
	}
	if v.Profile.FirstName != "Ann" {
		t.Errorf("profile = %+v", v.Profile)
	}
	if len(v.Tasks) != 2 || v.Tasks[0].Title != "later" || v.Tasks[1].Title != "older" {
		t.Errorf("tasks = %+v", v.Tasks)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start: err = %v", err)
	}
	if n := fs.Calls("FetchOwnerProfile"); n != 1 {
		t.Errorf("profile fetched %d times", n)
	}
}

func TestStartFailureAllowsRetry(t *testing.T) {
	fs := testutil.NewFakeStore()
	u := fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	fs.ProfileErr = &task.StoreError{Op: "fetch profile", Message: "network down"}

	c := New(fs, u, logging.Discard(), Options{})
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded with a failing profile fetch")
	}
	v := c.Snapshot()
	if v.State != Uninitialized || v.Err != "network down" || v.Busy {
		t.Fatalf("after failure: %+v", v)
	}

	fs.ProfileErr = nil
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.Snapshot().State != Ready {
		t.Error("not ready after retry")
	}
}

func TestCreateEditDeleteScenario(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	ctx := context.Background()

	f, err := c.OpenCreate()
	if err != nil {
		t.Fatalf("OpenCreate: %v", err)
	}
	if f.Value(form.FieldTitle) != "" || f.Priority() != task.PriorityMedium {
		t.Errorf("create defaults: title %q priority %q", f.Value(form.FieldTitle), f.Priority())
	}
	if _, err := c.OpenCreate(); !errors.Is(err, ErrModalOpen) {
		t.Errorf("second modal: err = %v", err)
	}

	deadline := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := c.SubmitCreate(ctx, task.Payload{Title: "Pay rent", Deadline: deadline, Priority: task.PriorityHigh}); err != nil {
		t.Fatalf("SubmitCreate: %v", err)
	}
	v := c.Snapshot()
	if v.Modal != Idle || len(v.Tasks) != 1 {
		t.Fatalf("after create: modal %v tasks %+v", v.Modal, v.Tasks)
	}
	created := v.Tasks[0]
	if created.Title != "Pay rent" || created.Priority != task.PriorityHigh || created.CreatedBy != "u-1" {
		t.Errorf("created = %+v", created)
	}

	if _, err := c.OpenEdit(created.ID); err != nil {
		t.Fatalf("OpenEdit: %v", err)
	}
	low := task.PriorityLow
	if err := c.SubmitEdit(ctx, task.Patch{Priority: &low}); err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}
	v = c.Snapshot()
	if v.Modal != Idle || v.Draft != nil {
		t.Errorf("edit modal still open: %v", v.Modal)
	}
	if got := v.Tasks[0]; got.Priority != task.PriorityLow || got.Title != "Pay rent" || !got.Deadline.Equal(deadline) {
		t.Errorf("after edit = %+v", got)
	}

	if err := c.OpenDelete(created.ID); err != nil {
		t.Fatalf("OpenDelete: %v", err)
	}
	if c.Snapshot().PendingDelete != created.ID {
		t.Error("pending delete not held")
	}
	before := fs.TotalCalls()
	if err := c.CancelDelete(); err != nil {
		t.Fatalf("CancelDelete: %v", err)
	}
	if fs.TotalCalls() != before {
		t.Error("cancel touched the store")
	}
	if v := c.Snapshot(); v.Modal != Idle || len(v.Tasks) != 1 || v.PendingDelete != "" {
		t.Errorf("after cancel: %+v", v)
	}

	if err := c.OpenDelete(created.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	if v := c.Snapshot(); v.Modal != Idle || len(v.Tasks) != 0 {
		t.Errorf("after delete: %+v", v)
	}
	if n := fs.Calls("DeleteTask"); n != 1 {
		t.Errorf("DeleteTask called %d times", n)
	}
}

func TestStoreFailureKeepsModalOpen(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	fs.CreateErr = &task.StoreError{Op: "create task", Message: "permission denied"}

	if _, err := c.OpenCreate(); err != nil {
		t.Fatal(err)
	}
	err := c.SubmitCreate(context.Background(), task.Payload{Title: "Pay rent", Deadline: fixedNow, Priority: task.PriorityHigh})
	if err == nil {
		t.Fatal("SubmitCreate succeeded")
	}
	v := c.Snapshot()
	if v.Modal != CreateModalOpen || v.Form == nil {
		t.Errorf("modal = %v, want create still open", v.Modal)
	}
	if v.Err != "permission denied" || v.Busy {
		t.Errorf("err %q busy %v", v.Err, v.Busy)
	}
	if len(v.Tasks) != 0 {
		t.Errorf("list changed: %+v", v.Tasks)
	}

	fs.CreateErr = nil
	if err := c.SubmitCreate(context.Background(), task.Payload{Title: "Pay rent", Deadline: fixedNow, Priority: task.PriorityHigh}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if v := c.Snapshot(); v.Modal != Idle || v.Err != "" || len(v.Tasks) != 1 {
		t.Errorf("after resubmit: %+v", v)
	}
}

func TestDeleteFailureKeepsConfirmOpen(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	tk := fs.AddTask("u-1", "Pay rent", fixedNow, task.PriorityHigh)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	fs.DeleteErr = &task.StoreError{Op: "delete task", Message: "offline"}

	if err := c.OpenDelete(tk.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.ConfirmDelete(context.Background()); err == nil {
		t.Fatal("ConfirmDelete succeeded")
	}
	v := c.Snapshot()
	if v.Modal != DeleteConfirmOpen || v.PendingDelete != tk.ID || len(v.Tasks) != 1 {
		t.Errorf("after failed delete: %+v", v)
	}
}

func TestRefetchFailureAfterMutationClosesModal(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	if _, err := c.OpenCreate(); err != nil {
		t.Fatal(err)
	}
	fs.FetchErr = &task.StoreError{Op: "fetch tasks", Message: "offline"}

	if err := c.SubmitCreate(context.Background(), task.Payload{Title: "Pay rent", Deadline: fixedNow, Priority: task.PriorityHigh}); err == nil {
		t.Fatal("expected reload error")
	}
	v := c.Snapshot()
	if v.Modal != Idle {
		t.Errorf("modal = %v, want idle after a landed create", v.Modal)
	}
	if v.Err != "offline" || v.Busy {
		t.Errorf("err %q busy %v", v.Err, v.Busy)
	}
	if n := fs.Calls("CreateTask"); n != 1 {
		t.Errorf("CreateTask called %d times", n)
	}
}

func TestSecondSubmitWhileInFlightIsRejected(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	if _, err := c.OpenCreate(); err != nil {
		t.Fatal(err)
	}
	fs.Block = make(chan struct{})
	p := task.Payload{Title: "Pay rent", Deadline: fixedNow, Priority: task.PriorityHigh}

	done := make(chan error, 1)
	go func() { done <- c.SubmitCreate(context.Background(), p) }()

	deadline := time.Now().Add(2 * time.Second)
	for fs.Calls("CreateTask") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first submit never reached the store")
		}
		time.Sleep(time.Millisecond)
	}
	if !c.Snapshot().Busy {
		t.Error("not busy while a request is in flight")
	}
	if err := c.SubmitCreate(context.Background(), p); !errors.Is(err, ErrBusy) {
		t.Errorf("second submit: err = %v", err)
	}
	if err := c.CloseModal(); !errors.Is(err, ErrBusy) {
		t.Errorf("close while busy: err = %v", err)
	}

	close(fs.Block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if n := fs.Calls("CreateTask"); n != 1 {
		t.Errorf("CreateTask called %d times", n)
	}
	if v := c.Snapshot(); len(v.Tasks) != 1 || v.Busy {
		t.Errorf("after submit: %+v", v)
	}
}

func TestFeatureToggles(t *testing.T) {
	c, fs, _ := newReady(t, Options{})
	tk := fs.AddTask("u-1", "Pay rent", fixedNow, task.PriorityHigh)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.OpenEdit(tk.ID); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("edit: err = %v", err)
	}
	if err := c.OpenDelete(tk.ID); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("delete: err = %v", err)
	}
	if _, err := c.OpenCreate(); err != nil {
		t.Errorf("create should always be available: %v", err)
	}
}

func TestEditDraftDoesNotAliasList(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	tk := fs.AddTask("u-1", "Pay rent", fixedNow, task.PriorityHigh)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	f, err := c.OpenEdit(tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetField(form.FieldTitle, "Pay bills"); err != nil {
		t.Fatal(err)
	}
	f.CyclePriority()

	v := c.Snapshot()
	if v.Draft.Title != "Pay bills" || v.Draft.Priority != task.PriorityLow {
		t.Errorf("draft = %+v", v.Draft)
	}
	if v.Tasks[0].Title != "Pay rent" || v.Tasks[0].Priority != task.PriorityHigh {
		t.Errorf("list mutated by draft edits: %+v", v.Tasks[0])
	}

	if err := c.CloseModal(); err != nil {
		t.Fatal(err)
	}
	if n := fs.Calls("UpdateTask"); n != 0 {
		t.Errorf("UpdateTask called %d times on close", n)
	}
}

func TestEmptyPatchSkipsStore(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	tk := fs.AddTask("u-1", "Pay rent", fixedNow, task.PriorityHigh)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.OpenEdit(tk.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.SubmitEdit(context.Background(), task.Patch{}); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().Modal != Idle {
		t.Error("modal still open")
	}
	if n := fs.Calls("UpdateTask"); n != 0 {
		t.Errorf("UpdateTask called %d times", n)
	}
}

func TestOperationsRequireMatchingModal(t *testing.T) {
	c, fs, _ := newReady(t, allFeatures())
	ctx := context.Background()
	before := fs.TotalCalls()

	if err := c.SubmitCreate(ctx, task.Payload{Title: "abc"}); !errors.Is(err, ErrWrongModal) {
		t.Errorf("SubmitCreate: err = %v", err)
	}
	if err := c.SubmitEdit(ctx, task.Patch{}); !errors.Is(err, ErrWrongModal) {
		t.Errorf("SubmitEdit: err = %v", err)
	}
	if err := c.ConfirmDelete(ctx); !errors.Is(err, ErrWrongModal) {
		t.Errorf("ConfirmDelete: err = %v", err)
	}
	if err := c.CancelDelete(); !errors.Is(err, ErrWrongModal) {
		t.Errorf("CancelDelete: err = %v", err)
	}
	if _, err := c.OpenEdit("missing"); !task.IsNotFound(err) {
		t.Errorf("OpenEdit missing: err = %v", err)
	}
	if err := c.OpenDelete(""); !task.IsValidation(err) {
		t.Errorf("OpenDelete empty: err = %v", err)
	}
	if fs.TotalCalls() != before {
		t.Error("rejected operations reached the store")
	}
}

func TestOperationsBeforeStart(t *testing.T) {
	fs := testutil.NewFakeStore()
	u := fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	c := New(fs, u, logging.Discard(), allFeatures())
	if _, err := c.OpenCreate(); !errors.Is(err, ErrNotReady) {
		t.Errorf("OpenCreate: err = %v", err)
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Refresh: err = %v", err)
	}
}

func TestTasksShownInDisplayZone(t *testing.T) {
	zone := time.FixedZone("CEST", 2*60*60)
	fs := testutil.NewFakeStore()
	u := fs.AddUser("u-1", "ann@x.com", "Ann", "Lee")
	// 2025-01-01 00:00 in zone, as a UTC backend returns it.
	fs.AddTask("u-1", "Pay rent", time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC), task.PriorityHigh)

	c := New(fs, u, logging.Discard(), Options{EnableEdit: true, Location: zone, Now: func() time.Time { return fixedNow }})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	listed := c.Snapshot().Tasks[0]
	if got := task.FormatDeadline(listed.Deadline); got != "2025-01-01" {
		t.Errorf("listed deadline = %q", got)
	}

	f, err := c.OpenEdit(listed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Value(form.FieldDeadline); got != "2025-01-01" {
		t.Errorf("edit form deadline = %q", got)
	}
	_, patch, err := f.SubmitEdit()
	if err != nil || !patch.Empty() {
		t.Errorf("unchanged edit = %+v, %v", patch, err)
	}
	if err := c.CloseModal(); err != nil {
		t.Fatal(err)
	}

	cf, err := c.OpenCreate()
	if err != nil {
		t.Fatal(err)
	}
	// fixedNow is 2024-12-31 09:30 UTC, 11:30 in zone.
	if got := cf.Value(form.FieldDeadline); got != "2025-01-01" {
		t.Errorf("create default deadline = %q", got)
	}
}
