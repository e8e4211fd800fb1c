// Package task holds the data model shared by the client and the backend.
package task

import (
	"fmt"
	"strings"
	"time"
)

// Priority is one of the three enumerated task levels.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is used when a form is opened fresh.
const DefaultPriority = PriorityMedium

// Priorities lists the levels in ascending order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Next cycles low -> medium -> high -> low.
func (p Priority) Next() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// ParsePriority accepts any casing and surrounding whitespace.
func ParsePriority(v string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(v)))
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Message: fmt.Sprintf("priority must be one of low, medium, high (got %q)", v)}
	}
	return p, nil
}

// Task is a single row of the tasks table.
type Task struct {
	ID        string    `json:"id"`
	CreatedBy string    `json:"created_by"`
	Title     string    `json:"title"`
	Deadline  time.Time `json:"deadline"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// In returns t with its timestamps expressed in loc.
func (t Task) In(loc *time.Location) Task {
	t.Deadline = t.Deadline.In(loc)
	t.CreatedAt = t.CreatedAt.In(loc)
	return t
}

// InZone converts every task in place and returns the slice.
func InZone(tasks []Task, loc *time.Location) []Task {
	for i := range tasks {
		tasks[i] = tasks[i].In(loc)
	}
	return tasks
}

// Payload is the validated input for creating a task.
type Payload struct {
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	Priority Priority  `json:"priority"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title    *string    `json:"title,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Priority *Priority  `json:"priority,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Deadline == nil && p.Priority == nil
}

// Apply returns a copy of t with the patch fields applied.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Deadline != nil {
		t.Deadline = *p.Deadline
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	return t
}

// Draft is the in-progress edit state of a task. It is a copy, never an
// alias of a row in the displayed list.
type Draft struct {
	ID       string
	Title    string
	Deadline time.Time
	Priority Priority
}

// NewDraft copies the editable fields of t.
func NewDraft(t Task) *Draft {
	return &Draft{
		ID:       t.ID,
		Title:    t.Title,
		Deadline: t.Deadline,
		Priority: t.Priority,
	}
}

// User is the identity issued by the auth provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session binds an access token to a user.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Profile is a row of user_details.
type Profile struct {
	UUID      string `json:"UUID"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// SignUpRequest carries everything needed to create an account and its profile.
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
