package main

import (
	"os"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
)

func main() {
	logger.Init(logger.WarnLevel, logger.IsService())

	if err := newRootCmd().Execute(); err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Msg("yubikill failed")
		} else {
			logger.Error().Err(err).Msg("yubikill failed")
		}
		os.Exit(1)
	}
}
