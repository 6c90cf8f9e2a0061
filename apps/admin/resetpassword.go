package main

import (
	"context"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr.ID, user.UpdateUser{}, usr.PasswordHash)
	return err
}
