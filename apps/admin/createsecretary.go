package main

import (
	"context"
	"time"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/user"
)

// createSecretary bootstraps a secretary account; the rest of the staff is
// then managed through the API.
func (cli *commandLine) createSecretary(name, email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	if err := cli.usrRepo.CheckEmailUniqueness(ctx, email); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr := user.User{
		Name:      core.CleanString(name),
		Email:     email,
		Role:      user.RoleSecretary,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err := cli.usrRepo.CreateUser(ctx, usr)
	return err
}
