// Command chatagent serves and runs the tool-using chat agent.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("chatagent failed")
		os.Exit(1)
	}
}
