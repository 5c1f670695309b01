// Command optimizer runs the hybrid PSO/GA parameter optimizer
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("optimizer failed")
		os.Exit(1)
	}
}
