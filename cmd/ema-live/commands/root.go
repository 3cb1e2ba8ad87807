package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ema-live",
	Short: "Talk to a live voice model about what is on screen",
	Long: `ema-live streams the microphone to a live voice model and plays its
spoken replies, keeping the model informed about the current screen.

Configuration is read from a YAML file (--config) and the environment:
  GEMINI_API_KEY      API key for the gemini transport
  EMA_LIVE_TRANSPORT  gemini or websocket
  EMA_LIVE_WS_URL     endpoint of the websocket transport
  EMA_LIVE_BACKEND    miniaudio or portaudio`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
