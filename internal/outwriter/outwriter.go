// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/huangsam/shiftpoint/internal/contract"
)

// LogRunHeader prints what is about to be analyzed to stderr, keeping stdout
// clean for JSON and CSV consumers.
func LogRunHeader(cfg *contract.Config) {
	writeRunHeader(os.Stderr, cfg)
}

func writeRunHeader(w io.Writer, cfg *contract.Config) {
	_, _ = fmt.Fprintf(w, "🔎 Metrics: %s (field: %s, min size: %d)\n",
		strings.Join(cfg.MetricNames(), ", "), cfg.Field, cfg.MinSize)
	switch {
	case cfg.EventsPath == "":
		_, _ = fmt.Fprintln(w, "📅 Events: none")
	case cfg.EventCutoff.IsZero():
		_, _ = fmt.Fprintf(w, "📅 Events: %s\n", cfg.EventsPath)
	default:
		_, _ = fmt.Fprintf(w, "📅 Events: %s (until %s)\n", cfg.EventsPath, formatDate(cfg.EventCutoff))
	}
}
