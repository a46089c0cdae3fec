package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"thermolab/flukelog/internal/acquire"
	"thermolab/flukelog/internal/config"
	"thermolab/flukelog/internal/heatindex"
	"thermolab/flukelog/internal/logger"
	"thermolab/flukelog/internal/metrics"
	"thermolab/flukelog/internal/session"
)

func main() {
	configPath := pflag.StringP("config", "c", "flukelog.yaml", "path to the YAML configuration file")
	port := pflag.StringP("port", "p", "", "serial port override")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}

	sessionCfg, err := cfg.Session()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// first initialize the main logger
	log, err := logger.NewLogger(cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Warn("[main] metrics listener stopped", zap.Error(err))
			}
		}()
	}

	sess := session.New(sessionCfg, log, m, acquire.OpenSerial, heatindex.Celsius)
	if err := sess.Start(); err != nil {
		log.Error("[main] session failed to start", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("[main] shutdown signal received")
	if err := sess.Stop(); err != nil {
		log.Error("[main] session stopped with errors", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}
