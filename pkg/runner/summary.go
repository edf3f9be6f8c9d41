package runner

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// summary.go formats compact run summaries for logs and terminals.

// FormatSummary builds a single-line summary of a run.
func FormatSummary(result *RunResult) string {
	parts := []string{
		fmt.Sprintf("summary | mode=%s", result.Mode),
		fmt.Sprintf("completed=%s/%s",
			strconv.FormatFloat(result.Completed, 'g', -1, 64),
			strconv.FormatFloat(result.Total, 'g', -1, 64)),
		fmt.Sprintf("frames=%d", result.Frames),
	}

	if result.Failed > 0 {
		parts = append(parts, fmt.Sprintf("failed=%d", result.Failed))
	}

	if result.Duration > 0 {
		parts = append(parts, fmt.Sprintf("duration=%s", result.Duration.Round(time.Millisecond)))
	}

	return strings.Join(parts, " | ")
}
