package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

const (
	appName = "demo"
	svcName = "accountsvc"

	configPrefix = "DEMO_ACCOUNTSVC"
	loggerName   = appName + "." + svcName
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := NewRootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
