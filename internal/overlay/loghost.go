package overlay

import (
	"context"
	"log/slog"
)

// LogHost renders overlays as log lines, for headless runs.
type LogHost struct {
	Logger *slog.Logger
}

func (h LogHost) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Create logs the overlay.
func (h LogHost) Create(ctx context.Context, o Overlay) error {
	h.logger().InfoContext(ctx, "overlay",
		"region", o.RegionID,
		"bounds", o.Bounds.String(),
		"font_size", o.FontSize,
		"original", o.Original,
		"translated", o.Translated,
	)
	return nil
}

// Destroy logs the removal.
func (h LogHost) Destroy(ctx context.Context, hd Handle) error {
	h.logger().DebugContext(ctx, "overlay removed", "region", hd.RegionID, "overlay", hd.ID)
	return nil
}
