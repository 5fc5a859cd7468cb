// Package logging builds the bot's zap logger
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// NewLogger returns a sugared logger: human readable at debug level when debug
// is set, JSON at info level otherwise. It exits if zap cannot be configured.
func NewLogger(debug bool) *zap.SugaredLogger {
	build := zap.NewProduction
	if debug {
		build = zap.NewDevelopment
	}

	l, err := build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "karmabot: cannot build logger: %s\n", err)
		os.Exit(1)
	}

	return l.Sugar()
}
