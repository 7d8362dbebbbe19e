package main

import (
	"context"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	if err := cli.usrSvc.ResetPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	cli.logger.Info("password reset from the command line", map[string]interface{}{"email": email})
	return nil
}
