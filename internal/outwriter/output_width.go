package outwriter

import (
	"os"

	"github.com/huangsam/shiftpoint/internal/contract"
	"golang.org/x/term"
)

// getMaxTableEventWidth calculates how wide the event column may grow
// based on the terminal width and the fixed columns around it.
func getMaxTableEventWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			termWidth = 80 // CI and pipes
		} else {
			termWidth = detected
		}
	}

	// Rank + Date + Horizon + Delta + Label, then borders and padding
	baseWidth := 55 + 20

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
