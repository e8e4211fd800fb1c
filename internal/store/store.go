// Package store defines the backend-agnostic contract for task data and auth.
// Screens receive these interfaces; nothing imports a backend directly.
package store

import (
	"context"

	"taskdeck/internal/task"
)

// Store is the remote task table plus the profile lookup.
// Every successful mutation changes exactly one row and nothing is cached.
type Store interface {
	// FetchOwnedTasks returns the owner's tasks, deadline descending.
	FetchOwnedTasks(ctx context.Context, ownerID string) ([]task.Task, error)

	// CreateTask inserts one row. The new row is observed only by a later fetch.
	CreateTask(ctx context.Context, ownerID string, p task.Payload) error

	// UpdateTask applies a partial update. An empty taskID fails with
	// *task.ValidationError before any network call.
	UpdateTask(ctx context.Context, taskID string, patch task.Patch) ([]task.Task, error)

	DeleteTask(ctx context.Context, taskID string) error

	// FetchOwnerProfile fails with *task.NotFoundError when no row exists.
	FetchOwnerProfile(ctx context.Context, userID string) (task.Profile, error)
}

// Auth is the authentication provider. Session persistence is its concern.
type Auth interface {
	SignUp(ctx context.Context, req task.SignUpRequest) (task.User, error)
	SignIn(ctx context.Context, email, password string) (task.Session, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (task.User, bool)
}

// Backend is what the client binary needs from either backend mode.
type Backend interface {
	Store
	Auth
}

// RequireTaskID is the pre-network identifier check shared by implementations.
func RequireTaskID(taskID string) error {
	if taskID == "" {
		return &task.ValidationError{Field: "id", Message: "task id is required"}
	}
	return nil
}
