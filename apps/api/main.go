package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/tsakani/shule/apps/api/echo"
	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
	emailsvc "github.com/tsakani/shule/services/email"
	logsvc "github.com/tsakani/shule/services/logger"
	"github.com/tsakani/shule/storage/mongodb"
)

func main() {
	std := log.New(os.Stderr, "API: ", log.LstdFlags|log.Lshortfile)
	if err := run(std); err != nil {
		std.Fatalf("running api: %+v", err)
	}
}

func run(std *log.Logger) error {
	conf, err := core.NewConfig()
	if err != nil {
		return err
	}

	var logger core.Logger
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = logsvc.NewStdLogger(std)
	}

	ctx := context.Background()
	db, closeDB, err := mongodb.Open(ctx, conf)
	if err != nil {
		return err
	}
	defer closeDB()
	if err = mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	var mailSvc core.EmailService
	if conf.SendgridAPIKey != "" {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	} else {
		mailSvc = emailsvc.NewConsoleService(conf)
	}

	userSvc := user.NewService(mongodb.NewUserRepository(db), mailSvc)
	schoolSvc := school.NewService(mongodb.NewClassRepository(db))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	signalShutdown := func() { shutdown <- syscall.SIGTERM }

	server := echoapi.NewServer(conf.Server.Address, signalShutdown, &echoapi.Deps{
		Conf:      conf,
		Logger:    logger,
		UserSvc:   userSvc,
		SchoolSvc: schoolSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening on " + conf.Server.Address)
		serverErrors <- server.Start()
	}()

	select {
	case err = <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutdown started: " + sig.String())
		defer logger.Info("shutdown complete")

		stopCtx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()
		return server.Stop(stopCtx)
	}
}
