// Package main provides the ema-live voice session CLI.
//
// Usage:
//
//	ema-live run [--config path] [--screen NAME] [--backend miniaudio|portaudio]
//	ema-live screens [--config path]
//	ema-live schema
package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-live/cmd/ema-live/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
