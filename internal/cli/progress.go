package cli

import (
	"fmt"
	"io"
	"os"
	"time"
)

// progressLine prints "label... done (elapsed)" around a slow step. A nil
// *progressLine is valid and prints nothing.
type progressLine struct {
	out     io.Writer
	started time.Time
}

func startProgress(out io.Writer, label string) *progressLine {
	if !progressEnabled() {
		return nil
	}
	fmt.Fprintf(out, "%s... ", label)
	return &progressLine{out: out, started: time.Now()}
}

// Done finishes the line. detail, when set, follows the elapsed time.
func (p *progressLine) Done(detail string) {
	if p == nil {
		return
	}
	elapsed := formatDuration(time.Since(p.started))
	if detail != "" {
		fmt.Fprintf(p.out, "done (%s, %s)\n", elapsed, detail)
		return
	}
	fmt.Fprintf(p.out, "done (%s)\n", elapsed)
}

func (p *progressLine) Fail(err error) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "failed: %v\n", err)
}

func progressEnabled() bool {
	if noProgress || IsJSONOutput() || IsJSONLOutput() {
		return false
	}
	for _, name := range []string{"MICROGPTSEQ_NO_PROGRESS", "NO_PROGRESS"} {
		if _, ok := os.LookupEnv(name); ok {
			return false
		}
	}
	return true
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
