package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// Impact label constants.
const (
	CriticalValue = "Critical"
	HighValue     = "High"
	ModerateValue = "Moderate"
	LowValue      = "Low"
)

// impactBand maps a lower bound on the relative score to a label and its console color.
type impactBand struct {
	floor float64
	label string
	color *color.Color
}

// impactBands is ordered from the highest floor down; the last band catches everything.
var impactBands = []impactBand{
	{80, CriticalValue, color.New(color.FgRed, color.Bold)},
	{60, HighValue, color.New(color.FgMagenta, color.Bold)},
	{40, ModerateValue, color.New(color.FgYellow)},
	{0, LowValue, color.New(color.FgCyan)},
}

func bandFor(score float64) impactBand {
	for _, b := range impactBands {
		if score >= b.floor {
			return b
		}
	}
	return impactBands[len(impactBands)-1]
}

// RelativeScore expresses magnitude as a percentage of the largest magnitude in its table.
func RelativeScore(magnitude, maxMagnitude float64) float64 {
	if maxMagnitude <= 0 {
		return 0
	}
	return magnitude / maxMagnitude * 100
}

// GetPlainLabel returns the label of a 0-100 relative score, as used by CSV and JSON.
func GetPlainLabel(score float64) string {
	return bandFor(score).label
}

// GetColorLabel returns the label wrapped in its console color.
func GetColorLabel(score float64) string {
	b := bandFor(score)
	return b.color.Sprint(b.label)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// homeFile places name in the user's home directory, or the working directory without one.
func homeFile(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(homeDir, name)
}

// GetCacheDBFilePath returns the SQLite file of the segmentation memo.
func GetCacheDBFilePath() string { return homeFile(".shiftpoint_cache.db") }

// GetHistoryDBFilePath returns the SQLite file of the run history.
func GetHistoryDBFilePath() string { return homeFile(".shiftpoint_history.db") }

// TruncateText shortens s to maxWidth runes with an ellipsis suffix and
// flattens the multi-line separators used between merged events.
// Requires maxWidth > 3 so there is space for the "..." and at least one character.
func TruncateText(s string, maxWidth int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
