package actions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, input string) (string, error) {
	return input, nil
}

type fakeLLM struct {
	prompts []string
	reply   string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestRegistryDispatch(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry(map[string]Action{
		"echo": echo,
		"fail": func(context.Context, string) (string, error) { return "", boom },
		"panic": func(context.Context, string) (string, error) {
			panic("kaboom")
		},
		NestedSequence: echo,
	})

	require.Equal(t, []string{"echo", "fail", "panic"}, reg.Names())
	require.False(t, reg.Has(NestedSequence))

	out, err := reg.Dispatch(context.Background(), "echo", "hi")
	require.NoError(t, err)
	require.Equal(t, "hi", out)

	_, err = reg.Dispatch(context.Background(), "missing", "hi")
	var unknown *UnknownActionError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "missing", unknown.Name)

	_, err = reg.Dispatch(context.Background(), "fail", "hi")
	var execErr *ActionExecutionError
	require.ErrorAs(t, err, &execErr)
	require.ErrorIs(t, err, boom)

	_, err = reg.Dispatch(context.Background(), "panic", "hi")
	require.ErrorAs(t, err, &execErr)
	require.Contains(t, execErr.Error(), "kaboom")
}

func TestRegistryIsACopy(t *testing.T) {
	source := map[string]Action{"echo": echo}
	reg := NewRegistry(source)
	source["later"] = echo

	require.False(t, reg.Has("later"))
}

func TestStoreSwapIsAtomic(t *testing.T) {
	shared := func(_ context.Context, input string) (string, error) { return "shared:" + input, nil }
	before := NewRegistry(map[string]Action{"shared": shared, "old_only": echo})
	after := NewRegistry(map[string]Action{"shared": shared, "new_only": echo})
	store := NewStore(before)

	const workers = 16
	const iterations = 500

	var wg sync.WaitGroup
	var failures atomic.Int64
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		next, prev := after, before
		for {
			select {
			case <-stop:
				return
			default:
				store.Swap(next)
				next, prev = prev, next
			}
		}
	}()

	var dispatchers sync.WaitGroup
	for i := 0; i < workers; i++ {
		dispatchers.Add(1)
		go func() {
			defer dispatchers.Done()
			for j := 0; j < iterations; j++ {
				snapshot := store.Load()
				out, err := snapshot.Dispatch(context.Background(), "shared", "x")
				if err != nil || out != "shared:x" {
					failures.Add(1)
				}
				// A snapshot is either entirely old or entirely new.
				if snapshot.Has("old_only") == snapshot.Has("new_only") {
					failures.Add(1)
				}
				if _, err := store.Dispatch(context.Background(), "shared", "y"); err != nil {
					failures.Add(1)
				}
			}
		}()
	}

	dispatchers.Wait()
	close(stop)
	wg.Wait()

	require.Zero(t, failures.Load())
}

func TestStoreNilRegistry(t *testing.T) {
	store := NewStore(nil)
	require.Equal(t, 0, store.Load().Len())

	prev := store.Swap(NewRegistry(map[string]Action{"echo": echo}))
	require.Equal(t, 0, prev.Len())
	require.True(t, store.Load().Has("echo"))
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "functions.json", `{
		"shout": "upper(input)",
		"count": "input + 1",
		"broken": "upper(",
		"unknown_var": "other",
		"unknown_fn": "nope(input)",
		"run_prompt_sequence": "input"
	}`)
	writeSource(t, dir, "more.yaml", "words: split(\" \", input)\nshout: lower(input)\n")
	writeSource(t, dir, "notes.txt", "ignored")

	registry, report, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"count", "shout", "words"}, registry.Names())
	require.Len(t, report.Files, 2)
	require.Equal(t, registry.Names(), report.Loaded)

	omitted := make(map[string]string)
	for _, fe := range report.Omitted {
		omitted[fe.Name] = fe.Reason
	}
	require.Contains(t, omitted, "broken")
	require.Contains(t, omitted["unknown_var"], `unknown variable "other"`)
	require.Contains(t, omitted["unknown_fn"], `unknown function "nope"`)
	require.Contains(t, omitted[NestedSequence], "reserved")
	require.Contains(t, omitted["shout"], "already defined")

	ctx := context.Background()
	out, err := registry.Dispatch(ctx, "shout", "hi")
	require.NoError(t, err)
	require.Equal(t, "HI", out)

	out, err = registry.Dispatch(ctx, "count", "4")
	require.NoError(t, err)
	require.Equal(t, "5", out)

	out, err = registry.Dispatch(ctx, "words", "a b")
	require.NoError(t, err)
	require.Equal(t, `["a","b"]`, out)

	_, err = registry.Dispatch(ctx, "count", "not a number")
	var execErr *ActionExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestLoaderLLMFunction(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "llm.json", `{"ask": "llm(\"Q: ${input}\")"}`)

	model := &fakeLLM{reply: "A: 42"}
	registry, _, err := NewLoader(model).Load(dir)
	require.NoError(t, err)

	out, err := registry.Dispatch(context.Background(), "ask", "meaning")
	require.NoError(t, err)
	require.Equal(t, "A: 42", out)
	require.Equal(t, []string{"Q: meaning"}, model.prompts)

	registry, _, err = NewLoader(nil).Load(dir)
	require.NoError(t, err)
	_, err = registry.Dispatch(context.Background(), "ask", "meaning")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no language model configured")
}

func TestLoaderSourceErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, _, err := NewLoader(nil).Load(missing)
	var loadErr *RegistryLoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, missing, loadErr.Source)
}

func TestLoaderSkipsUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "bad.json", "{not json")
	writeSource(t, dir, "broken.yaml", "two: [unclosed\n")
	writeSource(t, dir, "good.json", `{"echo": "input"}`)

	registry, report, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"echo"}, registry.Names())
	require.Equal(t, []string{filepath.Join(dir, "good.json")}, report.Files)

	require.Len(t, report.Omitted, 2)
	for _, omitted := range report.Omitted {
		require.Empty(t, omitted.Name)
		require.Contains(t, omitted.Error(), "action file "+omitted.File)
	}
	require.Equal(t, filepath.Join(dir, "bad.json"), report.Omitted[0].File)
	require.Equal(t, filepath.Join(dir, "broken.yaml"), report.Omitted[1].File)

	out, err := registry.Dispatch(context.Background(), "echo", "still here")
	require.NoError(t, err)
	require.Equal(t, "still here", out)
}

func TestLoaderNonStringFragment(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "mixed.json", `{"ok": "input", "number": 3}`)

	registry, report, err := NewLoader(nil).Load(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"ok"}, registry.Names())
	require.Len(t, report.Omitted, 1)
	require.Equal(t, "number", report.Omitted[0].Name)
}
