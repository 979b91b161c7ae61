package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lexdrive/ratehub/internal/pkg/bootstrap"
	"github.com/lexdrive/ratehub/internal/pkg/env"
)

func main() {
	application := bootstrap.NewApplication()
	application.Queue.Start()

	// graceful shutdown on SIGINT/SIGTERM: finish in-flight imports first
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		application.Queue.Stop()
		if err := application.App.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := application.App.Listen(addr); err != nil {
		log.Fatal(err)
	}
}
