// Package form holds the input state behind the task and auth modals.
// Forms validate locally and hand a payload to the caller; they never talk
// to the store.
package form

import (
	"fmt"
	"time"

	"taskdeck/internal/task"
)

type Variant int

const (
	Create Variant = iota
	Edit
)

func (v Variant) String() string {
	if v == Edit {
		return "edit"
	}
	return "create"
}

type Field int

const (
	FieldTitle Field = iota
	FieldDeadline
	FieldPriority
	fieldCount
)

func (f Field) Label() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldDeadline:
		return "deadline (YYYY-MM-DD [HH:MM])"
	case FieldPriority:
		return "priority"
	}
	return ""
}

// Fields lists the task form fields in focus order.
func Fields() []Field {
	return []Field{FieldTitle, FieldDeadline, FieldPriority}
}

// TaskForm is the create/edit modal state. In the Edit variant every field
// change is mirrored into the caller-owned draft as it happens, whether or
// not the form is submitted.
type TaskForm struct {
	variant  Variant
	title    string
	deadline string
	priority task.Priority
	focus    Field
	loc      *time.Location

	draft *task.Draft
	orig  task.Draft
}

// NewCreate opens an empty form. The deadline defaults to the day after now.
func NewCreate(now time.Time) *TaskForm {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return &TaskForm{
		variant:  Create,
		deadline: task.FormatDeadline(day),
		priority: task.DefaultPriority,
		loc:      now.Location(),
	}
}

// NewEdit opens a form pre-populated from draft and bound to it. The
// deadline is shown and read back in loc, the same zone NewCreate reads
// typed text in.
func NewEdit(draft *task.Draft, loc *time.Location) *TaskForm {
	if loc == nil {
		loc = time.Local
	}
	draft.Deadline = draft.Deadline.In(loc)
	p := draft.Priority
	if !p.Valid() {
		p = task.DefaultPriority
	}
	return &TaskForm{
		variant:  Edit,
		title:    draft.Title,
		deadline: task.FormatDeadline(draft.Deadline),
		priority: p,
		loc:      loc,
		draft:    draft,
		orig:     *draft,
	}
}

func (f *TaskForm) Variant() Variant        { return f.variant }
func (f *TaskForm) Focus() Field            { return f.focus }
func (f *TaskForm) Draft() *task.Draft      { return f.draft }
func (f *TaskForm) Priority() task.Priority { return f.priority }

func (f *TaskForm) NextField() Field {
	f.focus = (f.focus + 1) % fieldCount
	return f.focus
}

func (f *TaskForm) PrevField() Field {
	f.focus = (f.focus + fieldCount - 1) % fieldCount
	return f.focus
}

// Value returns the raw text of field.
func (f *TaskForm) Value(field Field) string {
	switch field {
	case FieldTitle:
		return f.title
	case FieldDeadline:
		return f.deadline
	case FieldPriority:
		return string(f.priority)
	}
	return ""
}

// SetField stores raw input for field. Priority input must already be a
// valid level; the other fields are checked at submit time.
func (f *TaskForm) SetField(field Field, value string) error {
	switch field {
	case FieldTitle:
		f.title = value
		if f.draft != nil {
			f.draft.Title = value
		}
	case FieldDeadline:
		f.deadline = value
		if f.draft != nil {
			if t, err := task.ParseDeadline(value, f.loc); err == nil {
				f.draft.Deadline = t
			}
		}
	case FieldPriority:
		p, err := task.ParsePriority(value)
		if err != nil {
			return err
		}
		f.setPriority(p)
	default:
		return fmt.Errorf("unknown field %d", field)
	}
	return nil
}

// CyclePriority moves low -> medium -> high -> low.
func (f *TaskForm) CyclePriority() task.Priority {
	f.setPriority(f.priority.Next())
	return f.priority
}

func (f *TaskForm) setPriority(p task.Priority) {
	f.priority = p
	if f.draft != nil {
		f.draft.Priority = p
	}
}

// SubmitCreate validates the fields and returns the create payload.
func (f *TaskForm) SubmitCreate() (task.Payload, error) {
	title, err := task.ValidateTitle(f.title)
	if err != nil {
		return task.Payload{}, err
	}
	deadline, err := task.ParseDeadline(f.deadline, f.loc)
	if err != nil {
		return task.Payload{}, err
	}
	return task.ValidatePayload(task.Payload{Title: title, Deadline: deadline, Priority: f.priority})
}

// SubmitEdit validates the fields and returns the draft id with a patch of
// the fields that differ from the task as it was opened.
func (f *TaskForm) SubmitEdit() (string, task.Patch, error) {
	if f.variant != Edit || f.draft == nil {
		return "", task.Patch{}, &task.ValidationError{Message: "no task selected"}
	}
	title, err := task.ValidateTitle(f.title)
	if err != nil {
		return "", task.Patch{}, err
	}
	deadline, err := task.ParseDeadline(f.deadline, f.loc)
	if err != nil {
		return "", task.Patch{}, err
	}

	var patch task.Patch
	if title != f.orig.Title {
		patch.Title = &title
	}
	if !deadline.Equal(f.orig.Deadline) {
		patch.Deadline = &deadline
	}
	if f.priority != f.orig.Priority {
		p := f.priority
		patch.Priority = &p
	}
	return f.draft.ID, patch, nil
}
