package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"sweepbridge.com/internal/sweeper/app"
)

func main() {
	// 1. 支持 Ctrl+C / kubernetes 停止信号的 context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化 App
	sweeperApp, err := app.New("sweeper")
	if err != nil {
		log.Fatalf("init sweeper-service error: %v", err)
	}
	cleanUp := sweeperApp.StartService(ctx)
	defer cleanUp()
	srv := sweeperApp.StartHttp()
	sweeperApp.StartLocalTicker()

	// 3. 启动 http
	go func() {
		if err := srv.ListenAndServe(); err != nil && !app.IsServerClosed(err) {
			log.Fatalf("sweeper ListenAndServe error: %v", err)
		}
	}()
	log.Printf("sweeper-service listening on %s", srv.Addr)

	<-ctx.Done()
	// 正在跑的一轮最多等 triggerTimeout，这里给 1 分钟
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("sweeper shutdown error: %v", err)
	}
	log.Println("sweeper exit")
}
