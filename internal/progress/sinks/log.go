package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/font-crawler/internal/progress"
)

// LogSink writes each progress event as a structured log line. Page events are
// logged at debug level so busy crawls stay quiet in production.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("crawl_id", evt.CrawlUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Duration("dur", evt.Dur),
		}
		level := zapcore.InfoLevel
		switch evt.Stage {
		case progress.StagePageOK, progress.StagePageFailed:
			level = zapcore.DebugLevel
			fields = append(fields,
				zap.String("site", evt.Site),
				zap.String("url", evt.URL),
				zap.Int("depth", evt.Depth),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int("font_values", evt.Fonts),
			)
		case progress.StageCrawlDone:
			fields = append(fields,
				zap.String("strategy", evt.Strategy),
				zap.Int("pages", evt.Pages),
				zap.Int("fonts", evt.Fonts),
			)
		case progress.StageCrawlError:
			level = zapcore.WarnLevel
			fields = append(fields, zap.String("strategy", evt.Strategy))
		default:
			fields = append(fields, zap.String("strategy", evt.Strategy), zap.String("url", evt.URL))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if ce := s.logger.Check(level, "progress event"); ce != nil {
			ce.Write(fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
