package task

import (
	"regexp"
	"strings"
	"time"
)

const (
	MinNameLength     = 3
	MinPasswordLength = 6
)

// DateLayout and DateTimeLayout are the accepted deadline input formats.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidateTitle trims and requires a non-empty title.
func ValidateTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", &ValidationError{Field: "title", Message: "Please enter a task title"}
	}
	return t, nil
}

// ValidateName is used for the sign-up first and last name fields.
func ValidateName(field, name string) (string, error) {
	n := strings.TrimSpace(name)
	if len([]rune(n)) < MinNameLength {
		return "", &ValidationError{Field: field, Message: "Please enter a " + strings.ReplaceAll(field, "_", " ") + " of at least 3 characters"}
	}
	return n, nil
}

// ValidateEmail checks a simple local@domain.tld shape only.
func ValidateEmail(email string) (string, error) {
	e := strings.TrimSpace(email)
	if !emailPattern.MatchString(e) {
		return "", &ValidationError{Field: "email", Message: "Please enter a valid email"}
	}
	return e, nil
}

func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "Please enter a password that is 6 or more characters"}
	}
	return nil
}

// ParseDeadline accepts DateLayout or DateTimeLayout in loc, or RFC3339.
func ParseDeadline(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, &ValidationError{Field: "deadline", Message: "Please enter a deadline (YYYY-MM-DD)"}
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{DateTimeLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, &ValidationError{Field: "deadline", Message: "Deadline must look like YYYY-MM-DD or YYYY-MM-DD HH:MM"}
}

// FormatDeadline renders a deadline the way ParseDeadline reads it back.
func FormatDeadline(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// ValidatePayload runs the create policy and returns the normalized payload.
func ValidatePayload(p Payload) (Payload, error) {
	title, err := ValidateTitle(p.Title)
	if err != nil {
		return Payload{}, err
	}
	if p.Deadline.IsZero() {
		return Payload{}, &ValidationError{Field: "deadline", Message: "Please enter a deadline (YYYY-MM-DD)"}
	}
	if p.Priority == "" {
		p.Priority = DefaultPriority
	}
	if !p.Priority.Valid() {
		return Payload{}, &ValidationError{Field: "priority", Message: "priority must be one of low, medium, high"}
	}
	p.Title = title
	return p, nil
}

// ValidatePatch checks only the fields that are set.
func ValidatePatch(p Patch) (Patch, error) {
	if p.Title != nil {
		title, err := ValidateTitle(*p.Title)
		if err != nil {
			return Patch{}, err
		}
		p.Title = &title
	}
	if p.Deadline != nil && p.Deadline.IsZero() {
		return Patch{}, &ValidationError{Field: "deadline", Message: "Please enter a deadline (YYYY-MM-DD)"}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return Patch{}, &ValidationError{Field: "priority", Message: "priority must be one of low, medium, high"}
	}
	return p, nil
}

// ValidateSignUp applies the sign-up form policy.
func ValidateSignUp(req SignUpRequest) (SignUpRequest, error) {
	email, err := ValidateEmail(req.Email)
	if err != nil {
		return SignUpRequest{}, err
	}
	first, err := ValidateName("first_name", req.FirstName)
	if err != nil {
		return SignUpRequest{}, err
	}
	last, err := ValidateName("last_name", req.LastName)
	if err != nil {
		return SignUpRequest{}, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return SignUpRequest{}, err
	}
	return SignUpRequest{Email: email, Password: req.Password, FirstName: first, LastName: last}, nil
}
