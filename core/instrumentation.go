package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	framesSentCounter, _     = meter.Int64Counter("ema_live.capture.frames_sent", metric.WithDescription("Capture frames sent to the transport"))
	unitsScheduledCounter, _ = meter.Int64Counter("ema_live.playback.units_scheduled", metric.WithDescription("Remote audio fragments scheduled for playback"))
	interruptionsCounter, _  = meter.Int64Counter("ema_live.playback.interruptions", metric.WithDescription("Remote interruptions that flushed playback"))
	formatErrorsCounter, _   = meter.Int64Counter("ema_live.audio.format_errors", metric.WithDescription("Remote audio fragments dropped as malformed"))
)
