package sequences

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const linearTable = `Prompt Name|Formatted Prompt|Action|LLM Response|Condition|True Next Prompt|False Next Prompt|Next Prompt
Start|{InitialPrompt}!|echo|R1||||Second
Second|{R1}?|echo|R2||||Third
Third|{R2}.|echo|R3||||stop
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSequence(t *testing.T) {
	path := writeFile(t, t.TempDir(), "table_data.csv", linearTable)

	table, err := LoadSequence(path)
	if err != nil {
		t.Fatalf("LoadSequence: %v", err)
	}

	if table.Source != path {
		t.Fatalf("expected source %q, got %q", path, table.Source)
	}
	if len(table.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(table.Steps))
	}
	if strings.Join(table.Order, ",") != "Start,Second,Third" {
		t.Fatalf("unexpected order: %v", table.Order)
	}

	start, ok := table.Step("Start")
	if !ok {
		t.Fatal("expected Start step")
	}
	if start.Template != "{InitialPrompt}!" || start.Action != "echo" || start.ResultVar != "R1" || start.Next != "Second" {
		t.Fatalf("unexpected Start step: %+v", start)
	}
	if start.HasCondition() {
		t.Fatal("Start should not have a condition")
	}
}

func TestLoadSequenceOptionalColumnsAbsent(t *testing.T) {
	content := "Prompt Name|Formatted Prompt|Action|LLM Response\nStart|go|echo|R1\n"
	path := writeFile(t, t.TempDir(), "minimal.csv", content)

	table, err := LoadSequence(path)
	if err != nil {
		t.Fatalf("LoadSequence: %v", err)
	}
	if step, _ := table.Step("Start"); step.Next != "" || !IsStop(step.Next) {
		t.Fatalf("expected blank next to mean stop, got %q", step.Next)
	}
}

func TestLoadSequenceMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{
			name:    "missing required column",
			content: "Prompt Name|Formatted Prompt|Action\nStart|x|echo\n",
			reason:  `missing required column "LLM Response"`,
		},
		{
			name:    "short row",
			content: "Prompt Name|Formatted Prompt|Action|LLM Response\nStart|x|echo\n",
			reason:  `missing value for column "LLM Response"`,
		},
		{
			name:    "missing start",
			content: "Prompt Name|Formatted Prompt|Action|LLM Response|Next Prompt\nFirst|x|echo|R1|stop\n",
			reason:  `missing "Start" step`,
		},
		{
			name:    "duplicate step",
			content: "Prompt Name|Formatted Prompt|Action|LLM Response\nStart|x|echo|R1\nStart|y|echo|R2\n",
			reason:  `duplicate step "Start"`,
		},
		{
			name:    "blank action",
			content: "Prompt Name|Formatted Prompt|Action|LLM Response\nStart|x||R1\n",
			reason:  "Action is required",
		},
		{
			name:    "empty file",
			content: "",
			reason:  "table is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.csv", tt.content)
			_, err := LoadSequence(path)

			var malformed *MalformedTableError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedTableError, got %v", err)
			}
			if !strings.Contains(malformed.Reason, tt.reason) {
				t.Fatalf("expected reason containing %q, got %q", tt.reason, malformed.Reason)
			}
		})
	}
}

func TestLoadSequenceCustomDelimiter(t *testing.T) {
	content := "Prompt Name;Formatted Prompt;Action;LLM Response;Next Prompt\nStart;a|b;echo;R1;stop\n"
	path := writeFile(t, t.TempDir(), "semi.csv", content)

	table, err := NewLoader(';').Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if step, _ := table.Step("Start"); step.Template != "a|b" {
		t.Fatalf("unexpected template %q", step.Template)
	}
}

func TestLoadSequenceYAML(t *testing.T) {
	content := `steps:
  - name: Start
    template: "{InitialPrompt}"
    action: classify
    result: Label
    condition: Label == "long"
    true_next: Long
    false_next: stop
  - name: Long
    template: "{Label}"
    action: run_prompt_sequence
    sequence: nested.csv
    result: Summary
    next: stop
`
	path := writeFile(t, t.TempDir(), "flow.yaml", content)

	table, err := LoadSequence(path)
	if err != nil {
		t.Fatalf("LoadSequence: %v", err)
	}
	start, _ := table.Step("Start")
	if !start.HasCondition() || start.TrueNext != "Long" || start.FalseNext != "stop" {
		t.Fatalf("unexpected Start step: %+v", start)
	}
	long, _ := table.Step("Long")
	if long.SequenceRef != "nested.csv" || long.ResultVar != "Summary" {
		t.Fatalf("unexpected Long step: %+v", long)
	}
}

func TestIsStop(t *testing.T) {
	for _, v := range []string{"stop", "STOP", " stop ", ""} {
		if !IsStop(v) {
			t.Fatalf("expected %q to stop", v)
		}
	}
	if IsStop("Start") {
		t.Fatal("Start is not a stop value")
	}
}

func TestValidate(t *testing.T) {
	content := `Prompt Name|Formatted Prompt|Action|LLM Response|Condition|True Next Prompt|False Next Prompt|Next Prompt
Start|{InitialPrompt}|echo|R1|len(R1) >|Long|Short|
Long|x|echo|R2||||Missing
Short|y|echo|R3||||stop
Orphan|z|echo|R4||||stop
`
	path := writeFile(t, t.TempDir(), "issues.csv", content)
	table, err := LoadSequence(path)
	if err != nil {
		t.Fatalf("LoadSequence: %v", err)
	}

	issues := table.Validate()
	want := map[string]string{
		"Start":  ColumnCondition,
		"Long":   ColumnNext,
		"Orphan": ColumnName,
	}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %d: %v", len(want), len(issues), issues)
	}
	for _, issue := range issues {
		if want[issue.Step] != issue.Field {
			t.Fatalf("unexpected issue %s", issue)
		}
	}
}

func TestResolveNestedReference(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "flows")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	parentPath := writeFile(t, sub, "parent.csv", linearTable)
	writeFile(t, sub, "child.csv", linearTable)
	extra := t.TempDir()
	writeFile(t, extra, "shared.csv", linearTable)

	loader := NewLoader(DefaultDelimiter, extra)
	parent, err := loader.Load(parentPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := loader.Resolve("child.csv", parent)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != filepath.Join(sub, "child.csv") {
		t.Fatalf("expected sibling resolution, got %q", got)
	}

	got, err = loader.Resolve("shared.csv", parent)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != filepath.Join(extra, "shared.csv") {
		t.Fatalf("expected search path resolution, got %q", got)
	}

	if _, err := loader.LoadNested("absent.csv", parent); err == nil {
		t.Fatal("expected error for missing nested table")
	}
	if _, err := loader.Resolve("  ", parent); err == nil {
		t.Fatal("expected error for empty reference")
	}
}

func TestResolveSearchPathBeforeWorkingDir(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, cwd, "shared.csv", linearTable)
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(cwd); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	extra := t.TempDir()
	writeFile(t, extra, "shared.csv", linearTable)

	parentDir := t.TempDir()
	parent, err := NewLoader(DefaultDelimiter).Load(writeFile(t, parentDir, "parent.csv", linearTable))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	loader := NewLoader(DefaultDelimiter, extra)
	dirs := loader.SearchDirs(parent)
	want := []string{parent.Dir(), extra, "."}
	if len(dirs) != len(want) {
		t.Fatalf("expected dirs %v, got %v", want, dirs)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Fatalf("expected dirs %v, got %v", want, dirs)
		}
	}

	got, err := loader.Resolve("shared.csv", parent)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != filepath.Join(extra, "shared.csv") {
		t.Fatalf("expected search path to win over working directory, got %q", got)
	}

	got, err = NewLoader(DefaultDelimiter).Resolve("shared.csv", parent)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "shared.csv" {
		t.Fatalf("expected working directory resolution, got %q", got)
	}
}
