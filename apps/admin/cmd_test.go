package main

import (
	"context"
	"testing"

	"github.com/tsakani/shule/core/user"
	inmemdb "github.com/tsakani/shule/storage/inmem"
)

func setup(t *testing.T) *commandLine {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	readPasswordFunc = func(_ int) ([]byte, error) { return []byte("V3ry$ecur3P4ss!"), nil }
	return &commandLine{usrRepo: inmemdb.NewUserRepository(db)}
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no subcommand", args: []string{}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"lol"}, wantErr: errHelp},
		{name: "createsecretary: no flags", args: []string{"createsecretary"}, wantErr: errHelp},
		{name: "createsecretary", args: []string{"createsecretary", "-name", "Amina Joseph", "-email", "amina@shule.org"}},
		{name: "createsecretary: duplicate email", args: []string{"createsecretary", "-name", "Amina J.", "-email", "amina@shule.org"}, wantErr: user.ErrEmailExists},
		{name: "resetpassword: no flags", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "resetpassword", args: []string{"resetpassword", "-email", "amina@shule.org"}},
		{name: "resetpassword: unknown email", args: []string{"resetpassword", "-email", "ghost@shule.org"}, wantErr: user.ErrNotFound},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	usr, err := cli.usrRepo.GetUserByEmail(context.Background(), "amina@shule.org")
	if err != nil {
		t.Fatalf("getting created secretary: %v", err)
	}
	if !usr.IsSecretary() {
		t.Errorf("Role = %v; expected a secretary", usr.Role)
	}
	if err := usr.CheckPassword("V3ry$ecur3P4ss!"); err != nil {
		t.Error("expected the prompted password to be set")
	}
}
