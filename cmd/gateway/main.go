package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/logger"
)

var version = "dev"

type CLI struct {
	Run  RunCmd  `cmd:"" help:"Run the payment gateway."`
	Seed SeedCmd `cmd:"" help:"Write chains and merchants from the config file into the KV store."`
}

type RunCmd struct {
	ConfigPath string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
	Debug      bool   `help:"Enable debug logs." name:"debug"`
	NoSeed     bool   `help:"Skip seeding chains and merchants from the config file." name:"no-seed"`
}

type SeedCmd struct {
	ConfigPath string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
	Debug      bool   `help:"Enable debug logs." name:"debug"`
}

func (c *RunCmd) Run() error {
	cfg := loadConfig(c.ConfigPath, c.Debug)
	return runGateway(cfg, !c.NoSeed)
}

func (c *SeedCmd) Run() error {
	cfg := loadConfig(c.ConfigPath, c.Debug)
	return runSeed(cfg)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gateway"),
		kong.Description("Multi-chain payment detection and notification gateway."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func loadConfig(path string, debug bool) *config.Config {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})

	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("Load config failed", "path", path, "err", err)
	}
	logger.Info("Config loaded", "env", cfg.Environment, "chains", len(cfg.Chains))
	return cfg
}

func waitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
