// errwrap runs a command, reports a non-zero exit to the error tracker and
// exits with the command's exit code.
//
//	errwrap [-config config.yaml] -- cmd args...
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"speech-to-text/internal/config"
	"speech-to-text/internal/infra/adapters/errtrack"
	"speech-to-text/internal/infra/errwrap"
	"speech-to-text/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := errwrap.NewWrapper(errtrack.NewReporter(cfg.Honeybadger, logger), logger)
	code := w.Run(ctx, flag.Args())
	stop()
	os.Exit(code)
}
