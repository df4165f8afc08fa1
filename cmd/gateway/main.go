package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/jensneuse/abstractlogger"
	"go.uber.org/zap"

	"github.com/commercegraph/storefront-gateway/internal/config"
	"github.com/commercegraph/storefront-gateway/internal/gateway"
)

func logger() log.Logger {
	zapLogger, err := zap.NewProductionConfig().Build()
	if err != nil {
		panic(err)
	}
	return log.NewZapLogger(zapLogger, log.InfoLevel)
}

func main() {
	logger := logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load configuration", log.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("start gateway", log.Error(err))
	}

	fmt.Printf("Access Playground on: http://%s/playground\n", prettyAddr(cfg.ListenAddr()))

	if err := gw.Run(ctx); err != nil {
		logger.Fatal("serve", log.Error(err))
	}
}

func prettyAddr(addr string) string {
	return strings.Replace(addr, "0.0.0.0", "localhost", -1)
}
