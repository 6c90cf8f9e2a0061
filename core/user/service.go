package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/tsakani/shule/core"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	// Repository is the storage contract for users and their embedded
	// communications. Absence is reported with ErrNotFound, never an error
	// wrapping a driver detail.
	Repository interface {
		IsValidID(id string) bool
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		// FilterUsers applies AND semantics on the set QueryFilter fields.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		// GetUserByEmail is the only read that includes the password hash.
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, id string, upd UpdateUser, passwordHash []byte) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, id string, at time.Time) (User, error)

		AddCommunication(ctx context.Context, userID string, com Communication) (Communication, error)
		GetCommunication(ctx context.Context, userID, comID string) (Communication, error)
		DeleteCommunication(ctx context.Context, userID, comID string) error
		QueryCommunications(ctx context.Context, filter CommunicationFilter) ([]Communication, error)
	}

	Service interface {
		IsValidID(id string) bool
		Create(ctx context.Context, nu NewUser) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		Filter(ctx context.Context, filter QueryFilter) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)

		SendCommunication(ctx context.Context, recipientID string, nc NewCommunication, senderID string, senderRole Role) (Communication, error)
		GetCommunication(ctx context.Context, userID, comID string) (Communication, error)
		DeleteCommunication(ctx context.Context, userID, comID string) error
		QueryCommunications(ctx context.Context, filter CommunicationFilter) ([]Communication, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) IsValidID(id string) bool {
	return svc.repo.IsValidID(id)
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := validatePassword(nu.Password, nu.Name, nu.Email); err != nil {
		return User{}, err
	}
	if err := svc.repo.CheckEmailUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if uu.Email != nil {
		email := core.CleanString(*uu.Email, true)
		uu.Email = &email
		if err := svc.repo.CheckEmailUniqueness(ctx, email, id); err != nil {
			return User{}, err
		}
	}

	var pwdHash []byte
	if uu.Password != nil {
		name := usr.Name
		if uu.Name != nil {
			name = *uu.Name
		}
		if err := validatePassword(*uu.Password, name, usr.Email); err != nil {
			return User{}, err
		}
		if err := usr.SetPassword(*uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		pwdHash = usr.PasswordHash
	}
	return svc.repo.UpdateUser(ctx, id, uu, pwdHash)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	return svc.repo.SetLastLogin(ctx, usr.ID, time.Now().UTC())
}

func (svc *service) SendCommunication(ctx context.Context, recipientID string, nc NewCommunication, senderID string, senderRole Role) (Communication, error) {
	recipient, err := svc.repo.GetUserByID(ctx, recipientID)
	if err != nil {
		return Communication{}, err
	}

	com := Communication{
		SenderID:   senderID,
		SenderRole: senderRole,
		Title:      core.CleanString(nc.Title),
		Content:    core.CleanString(nc.Content),
		Date:       time.Now().UTC(),
	}
	com, err = svc.repo.AddCommunication(ctx, recipientID, com)
	if err != nil {
		return Communication{}, err
	}

	svc.notifyNewCommunication(recipient, com)
	return com, nil
}

func (svc *service) GetCommunication(ctx context.Context, userID, comID string) (Communication, error) {
	return svc.repo.GetCommunication(ctx, userID, comID)
}

func (svc *service) DeleteCommunication(ctx context.Context, userID, comID string) error {
	return svc.repo.DeleteCommunication(ctx, userID, comID)
}

func (svc *service) QueryCommunications(ctx context.Context, filter CommunicationFilter) ([]Communication, error) {
	return svc.repo.QueryCommunications(ctx, filter)
}

func (svc *service) notifyNewCommunication(recipient User, com Communication) {
	if svc.mailSvc == nil {
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: recipient.Name, Address: recipient.Email}},
		Subject: fmt.Sprintf("New communication: %s", com.Title),
		Body:    com.Content,
	}
	svc.mailSvc.SendMessages(msg)
}
