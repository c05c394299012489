// v0
// main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nrg-champ/circuitbreaker"

	"nrgchamp/ctrlcore/internal/acclient"
	"nrgchamp/ctrlcore/internal/actionlog"
	"nrgchamp/ctrlcore/internal/causereason"
	"nrgchamp/ctrlcore/internal/config"
	"nrgchamp/ctrlcore/internal/controlloop"
	"nrgchamp/ctrlcore/internal/devicestate"
	"nrgchamp/ctrlcore/internal/executor"
	"nrgchamp/ctrlcore/internal/graph"
	"nrgchamp/ctrlcore/internal/homeschedule"
	"nrgchamp/ctrlcore/internal/httpapi"
	"nrgchamp/ctrlcore/internal/logging"
	"nrgchamp/ctrlcore/internal/manualwatch"
	"nrgchamp/ctrlcore/internal/meterclient"
	"nrgchamp/ctrlcore/internal/minontime"
	"nrgchamp/ctrlcore/internal/modewatch"
	"nrgchamp/ctrlcore/internal/pir"
	"nrgchamp/ctrlcore/internal/snapshot"
	"nrgchamp/ctrlcore/internal/statustrack"
	"nrgchamp/ctrlcore/internal/store"
	"nrgchamp/ctrlcore/internal/weatherclient"
)

func main() {
	lg, lf := logging.Init()
	defer lf.Close()

	lg.Info("control core starting")

	cfg, err := config.LoadEnvAndFiles()
	if err != nil {
		lg.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	lg.Info("configuration loaded", "devices", cfg.Devices)

	settings, err := store.NewJSONFileStore(cfg.NodesetStorePath)
	if err != nil {
		lg.Error("failed to open nodeset store", "error", err)
		os.Exit(1)
	}

	reasons := causereason.New()
	reasons.ReseedSystemDefaults()

	cbCfg := circuitbreaker.Config{
		MaxFailures:      cfg.CircuitMaxFails,
		ResetTimeout:     cfg.CircuitReset,
		SuccessesToClose: 1,
	}

	acClients := map[string]*acclient.Client{}
	for _, device := range cfg.Devices {
		ep := cfg.DeviceEndpoints[device]
		c, err := acclient.New(device, ep.BaseURL, ep.APIKey, cbCfg, lg)
		if err != nil {
			lg.Error("failed to build AC client", "device", device, "error", err)
			os.Exit(1)
		}
		acClients[device] = c
	}

	meter, err := meterclient.New(cfg.MeterEndpoint, cbCfg)
	if err != nil {
		lg.Error("failed to build meter client", "error", err)
		os.Exit(1)
	}
	weather, err := weatherclient.New(cfg.WeatherEndpoint, cfg.Latitude, cfg.Longitude, cbCfg)
	if err != nil {
		lg.Error("failed to build weather client", "error", err)
		os.Exit(1)
	}

	states := devicestate.New()
	guard := minontime.New()
	pirs := pir.New()
	modes := modewatch.New()
	home := homeschedule.NewResolver(settings)

	var mirror actionlog.Mirror
	if len(cfg.KafkaBrokers) > 0 {
		mirror = actionlog.NewKafkaMirror(cfg.KafkaBrokers, cfg.ActionLogTopic, lg)
	}
	logQueue := actionlog.New(settings, mirror, lg)

	snapshots := snapshot.New(snapshot.Config{
		ACClients:            acClients,
		Meter:                meter,
		Weather:              weather,
		DeviceSensorCacheTTL: cfg.DeviceSensorCacheTTL,
		MeterCacheTTL:        cfg.MeterCacheTTL,
		WeatherCacheTTL:      cfg.WeatherCacheTTL,
		States:               states,
		Modes:                modes,
		Pirs:                 pirs,
		Home:                 home,
		PirTimeout:           time.Duration(cfg.PirTimeoutMinutes) * time.Minute,
		Logger:               lg,
	})

	nodesets := graph.NewStoreLoader(settings)
	exec := executor.New(acClients, states, guard, logQueue, lg)
	status := statustrack.New()

	loop := controlloop.New(controlloop.Config{
		Devices:   cfg.Devices,
		Nodesets:  nodesets,
		Executor:  exec,
		Snapshots: snapshots,
		Status:    status,
		Logger:    lg,
	})

	watcher := manualwatch.New(cfg.Devices, acClients, modes, snapshots, nodesets, exec, status, lg)

	srv := httpapi.NewServer(cfg, lg, status)
	go func() {
		if err := srv.Start(); err != nil {
			lg.Error("http server stopped", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx, time.Duration(cfg.ControlCycleDefaultMinutes)*time.Minute)
	go watcher.Run(ctx, time.Duration(cfg.ManualWatchIntervalSeconds)*time.Second)
	go drainActionLog(ctx, logQueue, lg)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	lg.Info("shutdown signal received", "signal", s.String())

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := srv.Stop(shCtx); err != nil {
		lg.Error("http server graceful stop failed", "error", err)
	}

	cancel()
	time.Sleep(500 * time.Millisecond)

	lg.Info("control core exited cleanly")
}

// drainActionLog periodically flushes the durable action log queue; a
// failed write is retried up to actionlog.MaxRetryAttempts times before
// being dropped with an error log.
func drainActionLog(ctx context.Context, q *actionlog.Queue, lg interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := q.Drain(ctx)
			if result.Exhausted > 0 {
				lg.Warn("action log entries dropped after exhausting retries", "exhausted", result.Exhausted)
			}
		}
	}
}
