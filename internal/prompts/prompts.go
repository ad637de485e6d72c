// Package prompts reads the initial prompts that seed runs.
package prompts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Default is the single seed used when the prompt file does not exist.
const Default = "."

// Load reads one seed per non-blank line of path. A missing file yields
// []string{Default}.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{Default}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	defer file.Close()

	seeds, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	return seeds, nil
}

// Parse returns the trimmed non-blank lines of r.
func Parse(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var seeds []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			seeds = append(seeds, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return seeds, nil
}
