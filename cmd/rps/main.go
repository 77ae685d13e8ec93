package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etkecc/go-apm"
	"github.com/labstack/echo/v4"

	"github.com/tchapgouv/rps/internal/controllers"
	"github.com/tchapgouv/rps/internal/services"
	"github.com/tchapgouv/rps/internal/services/matrix"
	"github.com/tchapgouv/rps/internal/version"
)

var (
	configPath string
	e          *echo.Echo
)

func main() {
	quit := make(chan struct{})
	flag.StringVar(&configPath, "c", "config.yml", "Path to the config file")
	flag.Parse()

	cfg, err := services.NewConfig(configPath)
	if err != nil {
		log.Panic(err)
	}
	apm.SetName(version.Name)
	apm.SetLogLevel(cfg.Get().LogLevel)
	apm.SetSentryDSN(cfg.Get().SentryDSN)

	client, err := matrix.NewClient(cfg)
	if err != nil {
		log.Panic(err)
	}
	identitySvc := services.NewIdentity(cfg)
	usersSvc, err := services.NewUsers(cfg, identitySvc, client)
	if err != nil {
		log.Panic(err)
	}
	roomsSvc := services.NewRooms(cfg, client)
	discussionSvc := services.NewDiscussionFinder(client)
	featuresSvc := services.NewFeatures(cfg)
	inviteSvc := services.NewInvite(cfg, identitySvc, usersSvc, discussionSvc, roomsSvc, client)

	e = echo.New()
	controllers.ConfigureRouter(e, cfg, usersSvc, roomsSvc, discussionSvc, featuresSvc, inviteSvc, client)

	initShutdown(quit)

	if err := e.Start(":" + cfg.Get().Port); err != nil && err != http.ErrServerClosed {
		log.Fatal("shutting down the server", err)
	}

	<-quit
}

func initShutdown(quit chan struct{}) {
	listener := make(chan os.Signal, 1)
	signal.Notify(listener, os.Interrupt, syscall.SIGABRT, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	go func() {
		<-listener
		defer close(quit)

		shutdown()
	}()
}

func shutdown() {
	log.Println("shutting down...")
	// api was not started yet
	if e == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatal(err) //nolint:gocritic // that's intended
	}
}
