package main

import (
	"context"
	"fmt"
	"os"

	"sensor-proxy/internal/app"
	"sensor-proxy/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	application, cleanup, err := app.InitializeApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise application: %v\n", err)
		os.Exit(1)
	}

	runErr := application.Run(context.Background())
	cleanup()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "sensor proxy stopped: %v\n", runErr)
		os.Exit(1)
	}
}
