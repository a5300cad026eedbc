package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/user"
)

var errInvalidRole = errors.New("role must be one of user, staff, dj or admin")

// addUser creates the user, or sets the role & password of an existing one.
func (cli *commandLine) addUser(name, email, pwd, role string) error {
	ctx := context.Background()
	role = core.CleanString(role, true /* lower */)
	if !core.ContainsString(user.AllRoles, role) {
		return errInvalidRole
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding user")
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     core.CleanString(name),
			Email:    core.CleanString(email, true /* lower */),
			Password: pwd,
		}, role)
		return errors.Wrap(err, "creating user")
	}

	if usr, err = cli.usrSvc.SetRole(ctx, usr.ID, role); err != nil {
		return errors.Wrap(err, "setting role")
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return errors.Wrap(err, "setting password")
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return errors.Wrap(err, "setting password")
}
