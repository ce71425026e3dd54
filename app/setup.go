package app

import (
	"fmt"
	"os"

	"github.com/lingodeck/api/api"
	"github.com/lingodeck/api/config"
	"github.com/lingodeck/api/database"
	"github.com/lingodeck/api/router"
	"github.com/lingodeck/api/services/cron"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes and core services
	deps := router.SetupRoutes(app, store)

	// Cron scheduler: progress sync, stale session cleanup, payment and
	// data hygiene. Default to enabled.
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" {
		cronManager = cron.NewCronManager(store.DB(), deps.Progress, deps.Playback)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
		}
	}

	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Get the PORT & Start the Server
	return server.Run()
}
