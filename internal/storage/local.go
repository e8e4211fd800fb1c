package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

// Local serves store.Backend straight from the SQLite file, with the
// signed-in user kept in memory. It enforces the same ownership rules as
// the HTTP backend.
type Local struct {
	db  *Store
	ttl time.Duration

	mu      sync.RWMutex
	session *task.Session
}

var _ store.Backend = (*Local)(nil)

func NewLocal(db *Store, ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Local{db: db, ttl: ttl}
}

func (l *Local) SignUp(ctx context.Context, req task.SignUpRequest) (task.User, error) {
	u, err := l.db.CreateUser(ctx, req)
	if err != nil {
		return task.User{}, storeErr("sign up", err)
	}
	return u, nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (task.Session, error) {
	u, err := l.db.Authenticate(ctx, email, password)
	if err != nil {
		return task.Session{}, storeErr("sign in", err)
	}
	sess := task.Session{
		AccessToken: uuid.NewString(),
		ExpiresAt:   l.db.now().Add(l.ttl),
		User:        u,
	}
	l.mu.Lock()
	l.session = &sess
	l.mu.Unlock()
	return sess, nil
}

func (l *Local) SignOut(ctx context.Context) error {
	l.mu.Lock()
	l.session = nil
	l.mu.Unlock()
	return nil
}

func (l *Local) CurrentUser(ctx context.Context) (task.User, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.session == nil || l.db.now().After(l.session.ExpiresAt) {
		return task.User{}, false
	}
	return l.session.User, true
}

func (l *Local) FetchOwnedTasks(ctx context.Context, ownerID string) ([]task.Task, error) {
	if err := l.authorize(ctx, ownerID); err != nil {
		return nil, err
	}
	tasks, err := l.db.TasksByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("fetch tasks", err)
	}
	return tasks, nil
}

func (l *Local) CreateTask(ctx context.Context, ownerID string, p task.Payload) error {
	if err := l.authorize(ctx, ownerID); err != nil {
		return err
	}
	p, err := task.ValidatePayload(p)
	if err != nil {
		return err
	}
	if _, err := l.db.InsertTask(ctx, ownerID, p); err != nil {
		return storeErr("create task", err)
	}
	return nil
}

func (l *Local) UpdateTask(ctx context.Context, taskID string, patch task.Patch) ([]task.Task, error) {
	if err := store.RequireTaskID(taskID); err != nil {
		return nil, err
	}
	patch, err := task.ValidatePatch(patch)
	if err != nil {
		return nil, err
	}
	u, ok := l.CurrentUser(ctx)
	if !ok {
		return nil, errNotSignedIn
	}
	t, err := l.db.UpdateTask(ctx, u.ID, taskID, patch)
	if err != nil {
		return nil, storeErr("update task", err)
	}
	return []task.Task{t}, nil
}

func (l *Local) DeleteTask(ctx context.Context, taskID string) error {
	u, ok := l.CurrentUser(ctx)
	if !ok {
		return errNotSignedIn
	}
	if err := l.db.DeleteTask(ctx, u.ID, taskID); err != nil {
		return storeErr("delete task", err)
	}
	return nil
}

func (l *Local) FetchOwnerProfile(ctx context.Context, userID string) (task.Profile, error) {
	if err := l.authorize(ctx, userID); err != nil {
		return task.Profile{}, err
	}
	p, err := l.db.Profile(ctx, userID)
	if err != nil {
		if task.IsNotFound(err) {
			return task.Profile{}, err
		}
		return task.Profile{}, storeErr("fetch profile", err)
	}
	return p, nil
}

var errNotSignedIn = &task.StoreError{Op: "auth", Message: "not signed in"}

// authorize is the row-level check: callers only reach their own rows.
func (l *Local) authorize(ctx context.Context, ownerID string) error {
	u, ok := l.CurrentUser(ctx)
	if !ok {
		return errNotSignedIn
	}
	if u.ID != ownerID {
		return &task.StoreError{Op: "auth", Message: "not allowed to access another user's data"}
	}
	return nil
}

func storeErr(op string, err error) error {
	var nf *task.NotFoundError
	switch {
	case errors.As(err, &nf):
		return &task.StoreError{Op: op, Message: nf.Error(), Err: err}
	case errors.Is(err, ErrUserExists), errors.Is(err, ErrInvalidCredentials):
		return &task.StoreError{Op: op, Message: err.Error(), Err: err}
	default:
		return &task.StoreError{Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}
}
