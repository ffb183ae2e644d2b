package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/crease/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, &cli.Env{}, os.Args[1:])
	stop()
	os.Exit(code)
}
