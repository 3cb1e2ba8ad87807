package commands

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-live/internal/config"
	"github.com/koscakluka/ema-live/internal/tui"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var runOpts struct {
	screen  string
	backend string
	logFile string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the voice session UI",
	Long: `Open the terminal UI. Nothing is captured until the session is started.

Keys:
  space  start or stop the session
  1-5    switch the current screen
  q      quit

Examples:
  ema-live run
  ema-live run -c ema-live.yaml --screen medical
  EMA_LIVE_TRANSPORT=websocket EMA_LIVE_WS_URL=ws://localhost:9000/live ema-live run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if runOpts.screen != "" {
			cfg.InitialScreen = runOpts.screen
		}
		if runOpts.backend != "" {
			cfg.Backend = config.Backend(runOpts.backend)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		closeLog, err := redirectLog(runOpts.logFile)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx := cmd.Context()
		shutdownTracing, err := setupTracing(ctx)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				log.Printf("Failed to flush traces: %v", err)
			}
		}()

		observer := tui.NewObserver()
		s, err := newSession(ctx, cfg, observer.Options()...)
		if err != nil {
			return err
		}

		program := tea.NewProgram(tui.NewModel(ctx, s.orchestrator, s.bridge), tea.WithAltScreen(), tea.WithContext(ctx))
		observer.Attach(program)
		_, runErr := program.Run()
		if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
			runErr = nil
		}
		return errors.Join(runErr, s.Close())
	},
}

// redirectLog keeps standard log output off the terminal the UI draws on.
func redirectLog(path string) (func(), error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}

	f, err := tea.LogToFile(path, "ema-live")
	if err != nil {
		return nil, err
	}
	return func() { f.Close() }, nil
}

func init() {
	runCmd.Flags().StringVar(&runOpts.screen, "screen", "", "initial screen ID")
	runCmd.Flags().StringVar(&runOpts.backend, "backend", "", "audio backend: miniaudio or portaudio")
	runCmd.Flags().StringVar(&runOpts.logFile, "log-file", "", "write logs to this file instead of discarding them")

	rootCmd.AddCommand(runCmd)
}
