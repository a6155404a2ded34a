package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pixchat/internal/app"
	"pixchat/pkg/config"
	"pixchat/pkg/logger"
)

func main() {
	// build metadata - set via ldflags during build/release
	var (
		version   = "dev"
		commit    = "none"
		buildDate = "unknown"
	)
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	// Resolve config path (file flag wins over env)
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	cfg, _, _, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		// a missing file at the default path is fine (flags and env may be
		// enough); an explicitly requested path that fails to load is not
		explicit := setFlags["config"] || os.Getenv("PIXCHAT_CONFIG") != ""
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("failed to load config %s: %v", cfgPath, err)
		}
		log.Printf("config file %s not found; using flags and environment", cfgPath)
	}

	// flags win over config/env when explicitly provided
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := dbVal
	if !setFlags["db"] && cfg.Server.DBPath != "" {
		dbPath = cfg.Server.DBPath
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	a, err := app.New(app.Options{
		Config:    cfg,
		Addr:      addr,
		DBPath:    dbPath,
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
