package main

import (
	"fmt"
	"log"

	"github.com/lexdrive/ratehub/internal/pkg/bootstrap"
	"github.com/lexdrive/ratehub/internal/pkg/env"
)

func main() {
	application := bootstrap.NewApplication()
	application.Queue.Start()
	defer application.Queue.Stop()

	err := application.App.Listen(fmt.Sprintf("%s:%s",
		env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}
