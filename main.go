package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/williamokano/cloudconfig/pkg/config"
	"github.com/williamokano/cloudconfig/pkg/configuration"
	"github.com/williamokano/cloudconfig/pkg/logger"
)

// Usage: cloudconfig [config_file] [name ...]
//
// With names, the matching records are printed as JSON and the process exits.
// Without names, the cache is kept loaded: SIGHUP re-reads the config file
// and reloads, SIGINT/SIGTERM stop the service.
func main() {
	// Initialize logger with default settings until the config is read
	logger.Init("info", "json")
	log := logger.Get()

	configFile := "./config.json"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	var names []string
	if len(os.Args) > 2 {
		names = os.Args[2:]
	}

	log.Info().Str("config_file", configFile).Msg("starting cloudconfig")

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config file")
	}

	logger.Init(cfg.GetLogLevel(), cfg.GetLogFormat())
	log = logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := configuration.New(*log)
	if err := svc.Start(ctx, *cfg); err != nil {
		log.Fatal().Err(err).Msg("initial configuration load failed")
	}

	if len(names) > 0 {
		err := printRecords(os.Stdout, svc, names)
		svc.Stop()
		if err != nil {
			log.Fatal().Err(err).Msg("lookup failed")
		}
		return
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info().Strs("names", svc.Snapshot().Keys()).Msg("configuration loaded, send SIGHUP to reload")

	for {
		select {
		case <-ctx.Done():
			svc.Stop()
			log.Info().Msg("cloudconfig stopped")
			return
		case <-hup:
			next, err := config.Load(configFile)
			if err != nil {
				log.Error().Err(err).Msg("failed to reload config file, keeping current settings")
			} else {
				svc.Configure(*next)
			}
			// Reload failures are logged by the service
			_ = svc.Reload(ctx)
		}
	}
}

func printRecords(w io.Writer, svc *configuration.Service, names []string) error {
	records := make(map[string]configuration.Record, len(names))
	for _, name := range names {
		record, ok := svc.Get(name)
		if !ok {
			return fmt.Errorf("no configuration named %q", name)
		}
		records[name] = record
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}
