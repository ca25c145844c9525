package report

import (
	"go.uber.org/zap"

	"uwbd/internal/uwb"
)

// ConsoleSink logs each sample as a structured line, the direct
// replacement for watching the tag stream in a terminal.
type ConsoleSink struct {
	log *zap.SugaredLogger
}

func NewConsoleSink(log *zap.SugaredLogger) *ConsoleSink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ConsoleSink{log: log}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Publish(s uwb.Sample) error {
	c.log.Infow("sample",
		"tag_id", s.TagID,
		"timestamp", s.Timestamp,
		"position", s.Position,
		"distances", s.Distances,
		"pitch", s.Orientation.Pitch,
		"roll", s.Orientation.Roll,
		"yaw", s.Orientation.Yaw,
	)
	return nil
}

func (c *ConsoleSink) Close() error { return nil }
