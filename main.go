package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/Starystars67/BeamNG-MP-Server-old/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}
