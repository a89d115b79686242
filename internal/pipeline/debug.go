package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/services/maps"
)

// DebugSink captures best-effort page snapshots on worker failures:
// markup, screenshot and the error text, tagged with the failure context.
// Every capture failure is swallowed, a broken sink must never affect
// pipeline correctness.
type DebugSink struct {
	dir     string
	enabled bool
	logger  arbor.ILogger
}

// NewDebugSink creates a snapshot sink rooted at dir. A disabled sink
// turns Capture into a no-op.
func NewDebugSink(logger arbor.ILogger, dir string, enabled bool) *DebugSink {
	return &DebugSink{
		dir:     dir,
		enabled: enabled,
		logger:  logger,
	}
}

// Capture writes <tag>_<timestamp>.{html,png,log.txt} into the sink
// directory
func (d *DebugSink) Capture(ctx context.Context, page maps.Page, tag, errText string) {
	if d == nil || !d.enabled || page == nil {
		return
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		d.logger.Debug().Err(err).Msg("Debug directory not writable, snapshot skipped")
		return
	}

	// Short random suffix keeps concurrent captures from colliding on
	// the same second
	base := filepath.Join(d.dir, common.SafeFilename(
		fmt.Sprintf("%s_%s_%.8s", tag, time.Now().Format("20060102_150405"), uuid.NewString()), 160))

	if html, err := page.HTML(ctx); err == nil {
		_ = os.WriteFile(base+".html", []byte(html), 0644)
	}
	if png, err := page.Screenshot(ctx); err == nil {
		_ = os.WriteFile(base+".png", png, 0644)
	}
	if errText != "" {
		_ = os.WriteFile(base+".log.txt", []byte(errText), 0644)
	}

	d.logger.Debug().Str("snapshot", base).Msg("Debug snapshot captured")
}
