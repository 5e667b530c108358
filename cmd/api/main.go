package main

import (
	"log"

	"goflare.io/quoting/config"
)

func main() {

	appConfig, err := config.ProvideApplicationConfig()
	if err != nil {
		log.Fatal(err)
		return
	}

	server, cleanup, err := InitializeQuotingService(appConfig)
	if err != nil {
		log.Fatal(err)
		return
	}
	defer cleanup()

	if err = server.Run(appConfig.Server.Address); err != nil {
		log.Println(err.Error())
	}

}
