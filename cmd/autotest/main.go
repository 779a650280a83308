package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx, version)
}
