package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"uwbd/internal/bus"
	"uwbd/internal/config"
	"uwbd/internal/locate"
	"uwbd/internal/report"
	"uwbd/internal/udp"
	"uwbd/internal/uwb"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./uwbd.yaml", "Path to YAML config")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalw("config load failed", "path", configPath, "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sampleBus := bus.New[uwb.Sample](cfg.Bus.Capacity)

	var sinks []report.Sink
	if cfg.Output.Console.Enable {
		sinks = append(sinks, report.NewConsoleSink(log))
	}
	if cfg.Output.UDP.Enable {
		b, err := udp.NewBroadcaster(cfg.Output.UDP.Dest)
		if err != nil {
			log.Fatalw("udp broadcaster init failed", "dest", cfg.Output.UDP.Dest, "err", err)
		}
		sinks = append(sinks, b)
	}
	if cfg.Output.MQTT.Enable {
		m, err := report.NewMQTTSink(report.MQTTConfig{
			Broker:   cfg.Output.MQTT.Broker,
			Topic:    cfg.Output.MQTT.Topic,
			ClientID: cfg.Output.MQTT.ClientID,
		})
		if err != nil {
			log.Fatalw("mqtt sink init failed", "broker", cfg.Output.MQTT.Broker, "err", err)
		}
		sinks = append(sinks, m)
	}
	if len(sinks) == 0 {
		// Samples have to land somewhere.
		sinks = append(sinks, report.NewConsoleSink(log))
	}

	reporter, err := report.NewReporter(sampleBus, sinks, cfg.Output.Period, log)
	if err != nil {
		log.Fatalw("reporter init failed", "err", err)
	}

	producer, err := uwb.New(uwb.Config{
		Device:          cfg.Serial.Device,
		Baud:            cfg.Serial.Baud,
		ConnectAttempts: cfg.Serial.ConnectAttempts,
		ConnectBackoff:  cfg.Serial.ConnectBackoff,
		Period:          cfg.Tag.Period,
		Anchors:         cfg.AnchorList(),
		MinDistance:     cfg.Tag.MinDistance,
		MaxDistance:     cfg.Tag.MaxDistance,
	}, locate.LeastSquares{}, sampleBus, log)
	if err != nil {
		log.Fatalw("uwb service init failed", "err", err)
	}

	if err := reporter.Start(ctx); err != nil {
		log.Fatalw("reporter start failed", "err", err)
	}
	// Serial open happens here; exhausting the connect retry budget is
	// the one unrecoverable startup error.
	if err := producer.Start(ctx); err != nil {
		reporter.Close()
		log.Fatalw("uwb start failed", "err", err)
	}

	log.Infow("uwbd started",
		"device", cfg.Serial.Device,
		"baud", cfg.Serial.Baud,
		"anchors", len(cfg.Anchors),
		"sinks", len(sinks),
	)

	<-ctx.Done()
	log.Infow("uwbd stopping")
	producer.Close()
	reporter.Close()

	snap := producer.Snapshot()
	log.Infow("uwbd stopped",
		"frames", snap.Frames,
		"parse_errors", snap.ParseErrors,
		"solver_failures", snap.SolverFailures,
		"bus_drops", snap.BusDrops,
	)
}
