package persistence

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/dweebuild/dweebuild/internal/memory"
)

// ExportMarkdown writes a session's memory log as a markdown document.
func ExportMarkdown(w io.Writer, sessionID string, entries []memory.Entry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Session Logs: %s\n\n", sessionID)
	for _, e := range entries {
		ts := "N/A"
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Format(time.DateTime)
		}
		source := e.Source
		if source == "" {
			source = "UNKNOWN"
		}
		level := e.Level
		if level == "" {
			level = memory.LevelInfo
		}
		fmt.Fprintf(bw, "**[%s] [%s] [%s]** %s\n\n", ts, source, level, e.Message)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
