package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"skip-analyzer/domain/interval"
)

// OutputWriter allows capturing output in tests
type OutputWriter interface {
	Write(p []byte) (n int, err error)
}

// DefaultOutput is the default output writer for commands
var DefaultOutput OutputWriter = os.Stdout

// writeIntervalsJSON prints intervals as the same JSON array the cache stores
func writeIntervalsJSON(out OutputWriter, intervals []interval.Formatted) error {
	if intervals == nil {
		intervals = []interval.Formatted{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(intervals); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// writeIntervalsTable prints one interval per line
func writeIntervalsTable(out OutputWriter, intervals []interval.Formatted) {
	if len(intervals) == 0 {
		fmt.Fprintln(out, "No skippable intervals found.")
		return
	}
	for i, iv := range intervals {
		fmt.Fprintf(out, "%3d. %s - %s\n", i+1, iv.Start, iv.End)
	}
}
