package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dbddv01/MicroGptSequence/internal/engine"
	"github.com/dbddv01/MicroGptSequence/internal/models"
)

// bannerSink prints each step as a framed block on the console.
type bannerSink struct {
	mu     sync.Mutex
	out    io.Writer
	styles styles
}

func newBannerSink(out io.Writer, theme string) *bannerSink {
	return &bannerSink{out: out, styles: buildStyles(theme)}
}

// Append prints the step banner.
func (b *bannerSink) Append(ctx context.Context, record *models.StepRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	title := fmt.Sprintf("Step %d", record.Step)
	if record.Depth > 0 {
		title = fmt.Sprintf("%s  (nested, depth %d)", title, record.Depth)
	}

	body := strings.Join([]string{
		b.styles.Title.Render(title) + "  " + b.styles.Muted.Render(record.Name),
		b.styles.Label.Render("Prompt:"),
		b.styles.Text.Render(record.Prompt),
		b.styles.Label.Render("Response:"),
		b.styles.Text.Render(record.Output),
	}, "\n")

	block := b.styles.Panel.Render(body)
	if record.Depth > 0 {
		block = indent(block, record.Depth*2)
	}
	_, err := fmt.Fprintln(b.out, block)
	return err
}

// Close is a no-op.
func (b *bannerSink) Close() error {
	return nil
}

// runStarted prints the header for a run.
func (b *bannerSink) runStarted(run *engine.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if run.Depth == 0 {
		fmt.Fprintln(b.out)
		fmt.Fprintln(b.out, b.styles.Title.Render("Running sequence for initial prompt: ")+b.styles.Text.Render(run.InitialPrompt))
		return
	}
	fmt.Fprintln(b.out, indent(b.styles.Muted.Render("Running nested sequence: "+run.Sequence), run.Depth*2))
}

// runFinished prints the outcome of a top-level run.
func (b *bannerSink) runFinished(run *engine.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if run.Err != nil {
		fmt.Fprintln(b.out, b.styles.Error.Render(fmt.Sprintf("Run failed after %d steps: %v", run.Steps, run.Err)))
		return
	}
	fmt.Fprintln(b.out, b.styles.Success.Render(fmt.Sprintf("Run finished after %d steps", run.Steps)))
}

func indent(block string, width int) string {
	pad := strings.Repeat(" ", width)
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}
