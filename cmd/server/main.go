package main

import (
	"github.com/OFFIS-RIT/kiwi-insure/internal/config"
	"github.com/OFFIS-RIT/kiwi-insure/internal/server"
	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	server.Init(cfg)
}
