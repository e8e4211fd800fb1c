// Package controller owns the task list screen: the in-memory snapshot of
// the signed-in user's tasks and which modal is open.
//
// The snapshot is never patched locally. Every successful create, update
// or delete is followed by a full refetch from the store.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/form"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

type State int

const (
	Uninitialized State = iota
	ProfileLoading
	Ready
)

func (s State) String() string {
	switch s {
	case ProfileLoading:
		return "profile-loading"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Modal is the sub-state within Ready. At most one modal is open.
type Modal int

const (
	Idle Modal = iota
	CreateModalOpen
	EditModalOpen
	DeleteConfirmOpen
)

func (m Modal) String() string {
	switch m {
	case CreateModalOpen:
		return "create"
	case EditModalOpen:
		return "edit"
	case DeleteConfirmOpen:
		return "delete-confirm"
	default:
		return "idle"
	}
}

var (
	// ErrBusy rejects a second request while one is in flight.
	ErrBusy            = errors.New("a request is already in progress")
	ErrFeatureDisabled = errors.New("feature disabled")
	ErrAlreadyStarted  = errors.New("controller already started")
	ErrNotReady        = errors.New("task list not loaded yet")
	ErrModalOpen       = errors.New("another dialog is open")
	ErrWrongModal      = errors.New("dialog is not open")
)

// Options selects the screen variant.
type Options struct {
	EnableEdit   bool
	EnableDelete bool
	Now          func() time.Time
	// Location is the zone deadlines are shown and typed in.
	Location *time.Location
}

type Controller struct {
	store store.Store
	user  task.User
	log   *logrus.Entry
	opts  Options

	mu            sync.Mutex
	state         State
	modal         Modal
	busy          bool
	profile       task.Profile
	tasks         []task.Task
	form          *form.TaskForm
	draft         *task.Draft
	pendingDelete string
	lastErr       string
}

func New(s store.Store, user task.User, log *logrus.Entry, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Controller{
		store: s,
		user:  user,
		log:   log.WithField("user", user.ID),
		opts:  opts,
	}
}

// View is a copy of the controller state for rendering.
type View struct {
	State         State
	Modal         Modal
	Busy          bool
	Profile       task.Profile
	Tasks         []task.Task
	Form          *form.TaskForm
	Draft         *task.Draft
	PendingDelete string
	Err           string
	EditEnabled   bool
	DeleteEnabled bool
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := make([]task.Task, len(c.tasks))
	copy(tasks, c.tasks)
	return View{
		State:         c.state,
		Modal:         c.modal,
		Busy:          c.busy,
		Profile:       c.profile,
		Tasks:         tasks,
		Form:          c.form,
		Draft:         c.draft,
		PendingDelete: c.pendingDelete,
		Err:           c.lastErr,
		EditEnabled:   c.opts.EnableEdit,
		DeleteEnabled: c.opts.EnableDelete,
	}
}

// ClearError dismisses the last surfaced error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
}

// Start loads the profile, then the task list. It runs once; after a
// failure the controller drops back to Uninitialized so the user can retry.
func (c *Controller) Start(ctx context.Context) error {
	const op = "controller.Start"
	c.mu.Lock()
	if c.state != Uninitialized {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = ProfileLoading
	c.busy = true
	c.mu.Unlock()

	profile, err := c.store.FetchOwnerProfile(ctx, c.user.ID)
	if err != nil {
		return c.fail(op, err, func() { c.state = Uninitialized })
	}
	tasks, err := c.store.FetchOwnedTasks(ctx, c.user.ID)
	if err != nil {
		return c.fail(op, err, func() { c.state = Uninitialized })
	}

	c.mu.Lock()
	c.profile = profile
	c.tasks = task.InZone(tasks, c.opts.Location)
	c.state = Ready
	c.busy = false
	c.lastErr = ""
	c.mu.Unlock()
	c.log.WithField("operation", op).WithField("tasks", len(tasks)).Debug("task list ready")
	return nil
}

// Refresh refetches the full list.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.begin(Idle); err != nil {
		return err
	}
	return c.refetch(ctx, "controller.Refresh", nil)
}

func (c *Controller) OpenCreate() (*form.TaskForm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.canOpen(); err != nil {
		return nil, err
	}
	c.form = form.NewCreate(c.opts.Now().In(c.opts.Location))
	c.modal = CreateModalOpen
	c.lastErr = ""
	return c.form, nil
}

// SubmitCreate inserts p, refetches and closes the modal. On a store
// failure the modal stays open with the user's input.
func (c *Controller) SubmitCreate(ctx context.Context, p task.Payload) error {
	const op = "controller.SubmitCreate"
	if err := c.begin(CreateModalOpen); err != nil {
		return err
	}
	if err := c.store.CreateTask(ctx, c.user.ID, p); err != nil {
		return c.fail(op, err, nil)
	}
	c.log.WithField("operation", op).Info("task created")
	return c.refetch(ctx, op, c.closeModalLocked)
}

// OpenEdit copies the selected task into a draft bound to an edit form.
func (c *Controller) OpenEdit(taskID string) (*form.TaskForm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opts.EnableEdit {
		return nil, ErrFeatureDisabled
	}
	if err := c.canOpen(); err != nil {
		return nil, err
	}
	t, ok := c.findLocked(taskID)
	if !ok {
		return nil, &task.NotFoundError{Kind: "task", ID: taskID}
	}
	c.draft = task.NewDraft(t)
	c.form = form.NewEdit(c.draft, c.opts.Location)
	c.modal = EditModalOpen
	c.lastErr = ""
	return c.form, nil
}

// SubmitEdit sends patch for the draft's task. An empty patch closes the
// modal without a store call.
func (c *Controller) SubmitEdit(ctx context.Context, patch task.Patch) error {
	const op = "controller.SubmitEdit"
	if err := c.begin(EditModalOpen); err != nil {
		return err
	}
	c.mu.Lock()
	id := c.draft.ID
	c.mu.Unlock()

	if patch.Empty() {
		c.mu.Lock()
		c.closeModalLocked()
		c.busy = false
		c.mu.Unlock()
		return nil
	}
	if _, err := c.store.UpdateTask(ctx, id, patch); err != nil {
		return c.fail(op, err, nil)
	}
	c.log.WithField("operation", op).WithField("task", id).Info("task updated")
	return c.refetch(ctx, op, c.closeModalLocked)
}

// OpenDelete holds only the target id.
func (c *Controller) OpenDelete(taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opts.EnableDelete {
		return ErrFeatureDisabled
	}
	if err := c.canOpen(); err != nil {
		return err
	}
	if taskID == "" {
		return &task.ValidationError{Field: "id", Message: "no task selected"}
	}
	c.pendingDelete = taskID
	c.modal = DeleteConfirmOpen
	c.lastErr = ""
	return nil
}

func (c *Controller) ConfirmDelete(ctx context.Context) error {
	const op = "controller.ConfirmDelete"
	if err := c.begin(DeleteConfirmOpen); err != nil {
		return err
	}
	c.mu.Lock()
	id := c.pendingDelete
	c.mu.Unlock()

	if err := c.store.DeleteTask(ctx, id); err != nil {
		return c.fail(op, err, nil)
	}
	c.log.WithField("operation", op).WithField("task", id).Info("task deleted")
	return c.refetch(ctx, op, c.closeModalLocked)
}

// CancelDelete discards the held id without touching the store.
func (c *Controller) CancelDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modal != DeleteConfirmOpen {
		return ErrWrongModal
	}
	if c.busy {
		return ErrBusy
	}
	c.closeModalLocked()
	return nil
}

// CloseModal returns to Idle from any modal unless a request is in flight.
func (c *Controller) CloseModal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.closeModalLocked()
	return nil
}

func (c *Controller) closeModalLocked() {
	c.modal = Idle
	c.form = nil
	c.draft = nil
	c.pendingDelete = ""
}

func (c *Controller) canOpen() error {
	if c.state != Ready {
		return ErrNotReady
	}
	if c.busy {
		return ErrBusy
	}
	if c.modal != Idle {
		return ErrModalOpen
	}
	return nil
}

// begin claims the single in-flight slot for a request made from modal.
func (c *Controller) begin(modal Modal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ready {
		return ErrNotReady
	}
	if c.busy {
		return ErrBusy
	}
	if c.modal != modal {
		return ErrWrongModal
	}
	c.busy = true
	return nil
}

// refetch replaces the snapshot with the store's list. onMutated runs
// under the lock once the preceding mutation is known to have landed,
// even when the refetch itself fails.
func (c *Controller) refetch(ctx context.Context, op string, onMutated func()) error {
	tasks, err := c.store.FetchOwnedTasks(ctx, c.user.ID)
	if err != nil {
		return c.fail(op, fmt.Errorf("reload failed: %w", err), onMutated)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = task.InZone(tasks, c.opts.Location)
	c.busy = false
	c.lastErr = ""
	if onMutated != nil {
		onMutated()
	}
	return nil
}

// fail logs err, surfaces it to the user and releases the in-flight slot.
func (c *Controller) fail(op string, err error, apply func()) error {
	c.log.WithField("operation", op).WithError(err).Error("store call failed")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.lastErr = task.UserMessage(err)
	if apply != nil {
		apply()
	}
	return err
}

func (c *Controller) findLocked(id string) (task.Task, bool) {
	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}
