package main

import (
	"log"
	"os"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/user"
	emailsvc "github.com/invasionlatina/backend/services/email"
	logsvc "github.com/invasionlatina/backend/services/logger"
	"github.com/invasionlatina/backend/storage/database"
	pgrepos "github.com/invasionlatina/backend/storage/database/postgres"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	// start CLI
	cli := commandLine{
		usrSvc: user.NewService(pgrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf, logger)),
		migrate: func(command string, args ...string) error {
			return database.Migrate(db.DB, command, args...)
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		db.Close()
		logger.Close()
		os.Exit(1)
	}
}
