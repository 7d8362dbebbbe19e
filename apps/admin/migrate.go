package main

import (
	"context"

	"github.com/trezcool/studentportal/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateFunc(context.Background(), cli.db, args[0], arguments...)
}
