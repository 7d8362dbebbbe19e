package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/user"
	logsvc "github.com/trezcool/studentportal/services/logger"
	"github.com/trezcool/studentportal/storage/database"
	sqlxrepos "github.com/trezcool/studentportal/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	errAndDie(err)

	zl, err := logsvc.NewZerolog(conf)
	errAndDie(err)
	logger := logsvc.NewRollbarLogger(zl.With().Str("component", "admin").Logger(), conf)

	// set up DB
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		errAndDie(database.CreateIfNotExist(conf))
	}
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(conf, core.NewValidator(), sqlxrepos.NewUserRepository(db)),
		logger: logger,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
