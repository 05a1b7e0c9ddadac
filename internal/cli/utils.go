// Package cli provides output and stream helpers for the groundchat command line.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteTurns writes a thread's turns to w in the given format.
func WriteTurns(w io.Writer, threadID string, turns []models.Turn, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]any{"thread_id": threadID, "turns": turns})
	default:
		writeTurnsText(w, threadID, turns)
		return nil
	}
}

func writeTurnsText(w io.Writer, threadID string, turns []models.Turn) {
	fmt.Fprintf(w, "\nThread %s (%d turns)\n\n", threadID, len(turns))
	for _, t := range turns {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%s] %s\n", t.Role, t.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "\n%s\n", t.Content)
		if t.Snapshot != "" {
			fmt.Fprintf(w, "\nGrounding: %s\n", utils.Truncate(utils.CollapseWhitespace(t.Snapshot), 160))
		}
		fmt.Fprintln(w)
	}
}

// WriteThreads writes a thread list to w in the given format.
func WriteThreads(w io.Writer, threads []models.Thread, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]any{"threads": threads})
	default:
		if len(threads) == 0 {
			fmt.Fprintln(w, "No threads.")
			return nil
		}
		for _, t := range threads {
			fmt.Fprintf(w, "%s  updated %s\n", t.ID, t.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Event is one server-sent event.
type Event struct {
	Name string
	Data string
}

// ReadEvents parses a server-sent event stream from r, calling fn for each
// complete event. It stops at EOF or when fn returns an error.
func ReadEvents(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	var ev Event
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.Name != "" || len(data) > 0 {
				ev.Data = strings.Join(data, "\n")
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data = Event{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if ev.Name != "" || len(data) > 0 {
		ev.Data = strings.Join(data, "\n")
		return fn(ev)
	}
	return nil
}
