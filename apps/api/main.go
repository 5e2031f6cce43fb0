package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasa-app/darasa/apps/api/echo"
	"github.com/darasa-app/darasa/core"
	"github.com/darasa-app/darasa/core/content"
	"github.com/darasa-app/darasa/services/catalog"
	"github.com/darasa-app/darasa/services/logger"
	"github.com/darasa-app/darasa/storage/database"
	"github.com/darasa-app/darasa/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up logger
	var logger core.Logger
	if core.Conf.Debug {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(std, err)
	defer func() { _ = db.Close() }()
	errAndDie(std, database.Migrate(db))

	// set up validators
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	content.RegisterValidators(validate, translator)

	// set up services
	contentRepo := sqlxrepos.NewContentRepository(db)
	catalogSvc := catalogsvc.NewConsoleService(logger)
	contentSvc := content.NewService(contentRepo, catalogSvc, logger)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Address:    core.Conf.Server.Address(),
		ContentSvc: contentSvc,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
	})
	app.Start()
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
