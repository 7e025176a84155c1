package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is the JSON body written for a failed command.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

const (
	// progressBarWidth is the width in characters for terminal progress display.
	progressBarWidth = 30
	// progressLineClearWidth is the width needed to clear the entire progress line.
	progressLineClearWidth = 60
)

// buildProgressBar creates a progress bar string of the given width.
// Returns a string like "[=====>    ]" showing progress.
func buildProgressBar(current, total int64, width int) string {
	if total <= 0 {
		return strings.Repeat(" ", width)
	}
	filled := int(int64(width) * current / total)
	if filled >= width {
		return strings.Repeat("=", width)
	}
	return strings.Repeat("=", filled) + ">" + strings.Repeat(" ", width-filled-1)
}

// printProgress prints a byte progress bar to stderr.
func printProgress(current, total int64) {
	if total <= 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	bar := buildProgressBar(current, total, progressBarWidth)
	fmt.Fprintf(os.Stderr, "\r[%s] %s/%s (%.0f%%)", bar, formatBytes(current), formatBytes(total), pct)
}

// clearProgress erases the progress line.
func clearProgress() {
	fmt.Fprintf(os.Stderr, "\r%*s\r", progressLineClearWidth, "")
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatVector renders a vector compactly, eliding the middle of long ones.
func formatVector(v []float32, maxShown int) string {
	parts := make([]string, 0, maxShown+1)
	if len(v) <= maxShown {
		for _, x := range v {
			parts = append(parts, fmt.Sprintf("%.4f", x))
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	half := maxShown / 2
	for _, x := range v[:half] {
		parts = append(parts, fmt.Sprintf("%.4f", x))
	}
	parts = append(parts, "...")
	for _, x := range v[len(v)-(maxShown-half):] {
		parts = append(parts, fmt.Sprintf("%.4f", x))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
