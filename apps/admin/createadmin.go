package main

import (
	"context"
	"fmt"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/user"
)

// createAdmin creates an admin account. An existing account with that email is left untouched.
func (cli *commandLine) createAdmin(email, name, pwd string) error {
	if ok, msg := user.CheckStrength(pwd); !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	created, err := cli.usrSvc.EnsureAdmin(context.Background(), email, pwd, core.CleanString(name))
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("a user with email %q already exists", core.CleanString(email, true /* lower */))
	}
	cli.logger.Info("admin created from the command line", map[string]interface{}{"email": email})
	return nil
}
