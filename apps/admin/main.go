package main

import (
	"context"
	"log"
	"os"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/storage/mongodb"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	db, closeDB, err := mongodb.Open(context.Background(), conf)
	errAndDie(err)
	defer closeDB()
	errAndDie(mongodb.EnsureIndexes(context.Background(), db))

	cli := commandLine{
		usrRepo: mongodb.NewUserRepository(db),
	}
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
