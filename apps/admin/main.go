package main

import (
	"log"
	"os"

	"github.com/darasa-app/darasa/core"
	"github.com/darasa-app/darasa/storage/database"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// createdb runs before the app DB can be opened
	if len(os.Args) > 1 && os.Args[1] == "createdb" {
		errAndDie(database.CreateIfNotExist(core.Conf))
		logger.Printf("database %q is ready", core.Conf.Database.Name)
		return
	}

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{db: db}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
