package main

import (
	"context"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/user"
)

// addUser updates or creates an active user.User. An existing user keeps its profile.
func (cli *commandLine) addUser(nu user.NewUser, isAdmin bool) error {
	ctx := context.Background()
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)

	roles := []string{user.RoleStudent}
	if isAdmin {
		roles = user.AllRoles
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, nu.Email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		nu.Roles = roles
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	}

	usr.Roles = roles
	usr.IsActive = true
	if err = usr.SetPassword(nu.Password); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
