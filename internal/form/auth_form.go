package form

import "taskdeck/internal/task"

type AuthMode int

const (
	SignIn AuthMode = iota
	SignUp
)

func (m AuthMode) String() string {
	if m == SignUp {
		return "sign up"
	}
	return "sign in"
}

const (
	AuthEmail     = "email"
	AuthPassword  = "password"
	AuthFirstName = "first name"
	AuthLastName  = "last name"
)

// AuthForm backs the sign-in and sign-up screens.
type AuthForm struct {
	mode   AuthMode
	values map[string]string
	focus  int
}

func NewAuth(mode AuthMode) *AuthForm {
	return &AuthForm{mode: mode, values: map[string]string{}}
}

func (f *AuthForm) Mode() AuthMode { return f.mode }

// Toggle switches between sign in and sign up, keeping shared fields.
func (f *AuthForm) Toggle() {
	if f.mode == SignIn {
		f.mode = SignUp
	} else {
		f.mode = SignIn
	}
	f.focus = 0
}

// Fields lists the inputs of the current mode in focus order.
func (f *AuthForm) Fields() []string {
	if f.mode == SignUp {
		return []string{AuthFirstName, AuthLastName, AuthEmail, AuthPassword}
	}
	return []string{AuthEmail, AuthPassword}
}

func (f *AuthForm) Focus() string { return f.Fields()[f.focus] }

func (f *AuthForm) NextField() string {
	f.focus = (f.focus + 1) % len(f.Fields())
	return f.Focus()
}

func (f *AuthForm) PrevField() string {
	n := len(f.Fields())
	f.focus = (f.focus + n - 1) % n
	return f.Focus()
}

func (f *AuthForm) Set(field, value string) { f.values[field] = value }
func (f *AuthForm) Value(field string) string {
	return f.values[field]
}

// SubmitSignIn validates email and password.
func (f *AuthForm) SubmitSignIn() (email, password string, err error) {
	email, err = task.ValidateEmail(f.values[AuthEmail])
	if err != nil {
		return "", "", err
	}
	password = f.values[AuthPassword]
	if err := task.ValidatePassword(password); err != nil {
		return "", "", err
	}
	return email, password, nil
}

// SubmitSignUp validates every sign-up field.
func (f *AuthForm) SubmitSignUp() (task.SignUpRequest, error) {
	return task.ValidateSignUp(task.SignUpRequest{
		Email:     f.values[AuthEmail],
		Password:  f.values[AuthPassword],
		FirstName: f.values[AuthFirstName],
		LastName:  f.values[AuthLastName],
	})
}
