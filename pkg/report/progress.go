package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"vstrd/pkg/experiment"
)

const progressWidth = 40

// ProgressBar returns a progress callback drawing a bar on w, prefixed by
// label, with elapsed and estimated remaining time. The clock starts at the
// first call.
func ProgressBar(w io.Writer, label string) experiment.ProgressCallback {
	var (
		mu    sync.Mutex
		start time.Time
	)
	return func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total <= 0 {
			return
		}
		if start.IsZero() {
			start = time.Now()
		}

		percentage := float64(completed) / float64(total) * 100
		numBars := int(percentage / 100 * progressWidth)

		var bar strings.Builder
		bar.WriteString("[")
		for i := 0; i < progressWidth; i++ {
			switch {
			case i < numBars:
				bar.WriteString("█")
			case i == numBars:
				bar.WriteString("▓")
			default:
				bar.WriteString("░")
			}
		}
		bar.WriteString("]")

		elapsed := time.Since(start)
		remaining := "0s"
		if completed > 0 && completed < total {
			perUnit := elapsed.Seconds() / float64(completed)
			remaining = formatSeconds(perUnit * float64(total-completed))
		}

		fmt.Fprintf(w, "\r%s %s %.1f%% (%d/%d) [%s elapsed | %s remaining]",
			label, bar.String(), percentage, completed, total, formatSeconds(elapsed.Seconds()), remaining)
		if completed >= total {
			fmt.Fprintln(w)
		}
	}
}

func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.1fs", s)
	case s < 3600:
		return fmt.Sprintf("%.1fm", s/60)
	default:
		return fmt.Sprintf("%.1fh", s/3600)
	}
}
