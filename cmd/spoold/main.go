package main

import (
	"context"
	"log"
	"os"

	"spool/internal/config"
	"spool/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("SPOOL_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	role, err := roleFromEnv(os.Getenv("SPOOL_ROLE"), os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{Role: role}); err != nil {
		log.Fatalf("spoold: %v", err)
	}
}
