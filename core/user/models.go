package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tsakani/shule/core"
)

// Role is the numeric account role carried in tokens and documents.
type Role int

const (
	RoleStudent Role = iota
	RoleProfessor
	RoleSecretary
)

func (r Role) Valid() bool {
	return r >= RoleStudent && r <= RoleSecretary
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleProfessor:
		return "professor"
	case RoleSecretary:
		return "secretary"
	}
	return "unknown"
}

type (
	// Communication is an internal message embedded in the recipient's document.
	Communication struct {
		ID         string    `json:"id"`
		SenderID   string    `json:"sender_id"`
		SenderRole Role      `json:"sender_role"`
		Title      string    `json:"title"`
		Content    string    `json:"content"`
		Date       time.Time `json:"date"`
	}

	User struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Email          string          `json:"email"`
		Role           Role            `json:"role"`
		PasswordHash   []byte          `json:"-"`
		Communications []Communication `json:"communications,omitempty"`
		CreatedAt      time.Time       `json:"created_at"`
		UpdatedAt      time.Time       `json:"updated_at"`
		LastLogin      time.Time       `json:"last_login,omitempty"`
	}
)

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsStudent() bool   { return u.Role == RoleStudent }
func (u User) IsProfessor() bool { return u.Role == RoleProfessor }
func (u User) IsSecretary() bool { return u.Role == RoleSecretary }

// NewUser contains information needed to create a new User.
// Field-level constraints live in CreateSchema; the password policy is
// enforced by the service.
type NewUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true)
}

// UpdateUser defines what information may be provided to modify an existing
// User. Nil fields are left untouched.
type UpdateUser struct {
	Name     *string
	Email    *string
	Password *string
	Role     *Role
}

// NewCommunication is the sender-supplied part of a Communication; sender
// identity always comes from the verified request claims.
type NewCommunication struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type QueryFilter struct {
	Email string
	Role  *Role
}

// CommunicationFilter scopes communication listings. RecipientID narrows to
// one inbox; SenderRole narrows to messages sent by accounts of that role.
type CommunicationFilter struct {
	RecipientID string
	SenderRole  *Role
}

// Field-constraint tables consulted by the validation middleware.
var (
	CreateSchema = core.Schema{
		"name":     {Tag: "nonnumstr", Required: true},
		"email":    {Tag: "required,email", Required: true},
		"password": {Tag: "required,min=8", Required: true},
		"role":     {Tag: "rolenum", Required: true},
	}

	UpdateSchema = core.Schema{
		"name":     {Tag: "nonnumstr"},
		"email":    {Tag: "required,email"},
		"password": {Tag: "required,min=8"},
		"role":     {Tag: "rolenum"},
	}

	CommunicationSchema = core.Schema{
		"title":   {Tag: "nonnumstr", Required: true},
		"content": {Tag: "nonnumstr", Required: true},
	}
)
