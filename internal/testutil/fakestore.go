// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

// ErrInvalidCredentials is returned by SignIn for unknown credentials.
var ErrInvalidCredentials = &task.StoreError{Op: "sign in", Message: "invalid credentials"}

// FakeStore is an in-memory implementation of store.Backend for testing.
type FakeStore struct {
	mu       sync.RWMutex
	users    map[string]fakeUser // email -> user
	profiles map[string]task.Profile
	tasks    []task.Task
	nextID   int
	current  *task.User

	calls map[string]int

	// Block, when set, is received from before each store call returns.
	Block chan struct{}

	// Error injection for testing
	FetchErr   error
	CreateErr  error
	UpdateErr  error
	DeleteErr  error
	ProfileErr error
	SignUpErr  error
	SignOutErr error
}

type fakeUser struct {
	user     task.User
	password string
}

var _ store.Backend = (*FakeStore)(nil)

func NewFakeStore() *FakeStore {
	return &FakeStore{
		users:    make(map[string]fakeUser),
		profiles: make(map[string]task.Profile),
		calls:    make(map[string]int),
	}
}

// AddUser registers a user with a profile and signs them in.
func (f *FakeStore) AddUser(id, email, first, last string) task.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := task.User{ID: id, Email: email}
	f.users[email] = fakeUser{user: u, password: "secret1"}
	f.profiles[id] = task.Profile{UUID: id, Email: email, FirstName: first, LastName: last}
	f.current = &u
	return u
}

// AddTask seeds a task without counting a call.
func (f *FakeStore) AddTask(owner, title string, deadline time.Time, p task.Priority) task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(owner, task.Payload{Title: title, Deadline: deadline, Priority: p})
}

// Calls returns how many times op was invoked.
func (f *FakeStore) Calls(op string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[op]
}

// TotalCalls counts every store and auth call.
func (f *FakeStore) TotalCalls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *FakeStore) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
	if f.Block != nil {
		<-f.Block
	}
}

func (f *FakeStore) insert(owner string, p task.Payload) task.Task {
	f.nextID++
	t := task.Task{
		ID:        fmt.Sprintf("task-%d", f.nextID),
		CreatedBy: owner,
		Title:     p.Title,
		Deadline:  p.Deadline,
		Priority:  p.Priority,
		CreatedAt: time.Unix(int64(f.nextID), 0).UTC(),
	}
	f.tasks = append(f.tasks, t)
	return t
}

// FetchOwnedTasks implements store.Store.
func (f *FakeStore) FetchOwnedTasks(ctx context.Context, ownerID string) ([]task.Task, error) {
	f.record("FetchOwnedTasks")
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := []task.Task{}
	for _, t := range f.tasks {
		if t.CreatedBy == ownerID {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Deadline.After(result[j].Deadline)
	})
	return result, nil
}

// CreateTask implements store.Store.
func (f *FakeStore) CreateTask(ctx context.Context, ownerID string, p task.Payload) error {
	f.record("CreateTask")
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insert(ownerID, p)
	return nil
}

// UpdateTask implements store.Store.
func (f *FakeStore) UpdateTask(ctx context.Context, taskID string, patch task.Patch) ([]task.Task, error) {
	if err := store.RequireTaskID(taskID); err != nil {
		return nil, err
	}
	f.record("UpdateTask")
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == taskID {
			f.tasks[i] = patch.Apply(t)
			return []task.Task{f.tasks[i]}, nil
		}
	}
	return nil, &task.StoreError{Op: "update task", Message: "task not found", Err: &task.NotFoundError{Kind: "task", ID: taskID}}
}

// DeleteTask implements store.Store.
func (f *FakeStore) DeleteTask(ctx context.Context, taskID string) error {
	f.record("DeleteTask")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == taskID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &task.StoreError{Op: "delete task", Message: "task not found", Err: &task.NotFoundError{Kind: "task", ID: taskID}}
}

// FetchOwnerProfile implements store.Store.
func (f *FakeStore) FetchOwnerProfile(ctx context.Context, userID string) (task.Profile, error) {
	f.record("FetchOwnerProfile")
	if f.ProfileErr != nil {
		return task.Profile{}, f.ProfileErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.profiles[userID]
	if !ok {
		return task.Profile{}, &task.NotFoundError{Kind: "profile", ID: userID}
	}
	return p, nil
}

// SignUp implements store.Auth.
func (f *FakeStore) SignUp(ctx context.Context, req task.SignUpRequest) (task.User, error) {
	f.record("SignUp")
	if f.SignUpErr != nil {
		return task.User{}, f.SignUpErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[req.Email]; ok {
		return task.User{}, &task.StoreError{Op: "sign up", Message: "user already exists"}
	}
	u := task.User{ID: fmt.Sprintf("user-%d", len(f.users)+1), Email: req.Email}
	f.users[req.Email] = fakeUser{user: u, password: req.Password}
	f.profiles[u.ID] = task.Profile{UUID: u.ID, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	return u, nil
}

// SignIn implements store.Auth.
func (f *FakeStore) SignIn(ctx context.Context, email, password string) (task.Session, error) {
	f.record("SignIn")
	f.mu.Lock()
	defer f.mu.Unlock()
	fu, ok := f.users[email]
	if !ok || fu.password != password {
		return task.Session{}, ErrInvalidCredentials
	}
	u := fu.user
	f.current = &u
	return task.Session{AccessToken: "token-" + u.ID, ExpiresAt: time.Now().Add(time.Hour), User: u}, nil
}

// SignOut implements store.Auth.
func (f *FakeStore) SignOut(ctx context.Context) error {
	f.record("SignOut")
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	return f.SignOutErr
}

// CurrentUser implements store.Auth.
func (f *FakeStore) CurrentUser(ctx context.Context) (task.User, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return task.User{}, false
	}
	return *f.current, true
}

