package main

import (
	"github.com/FrameNetBrasil/daisy/internal/server"
	"github.com/FrameNetBrasil/daisy/internal/util"
	"github.com/FrameNetBrasil/daisy/pkg/logger"
	"github.com/FrameNetBrasil/daisy/pkg/logger/console"

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
