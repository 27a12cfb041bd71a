package main

import (
	"github.com/txgnn-explorer/backend/internal/server"
	"github.com/txgnn-explorer/backend/internal/util"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
