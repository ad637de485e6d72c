package cli

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/dbddv01/MicroGptSequence/internal/config"
	"github.com/spf13/cobra"
)

//go:embed scaffold
var scaffoldFS embed.FS

const scaffoldRoot = "scaffold"

var (
	initForce      bool
	initGlobal     bool
	configDirFunc  = defaultConfigDir
	configTemplate = mustScaffold("microgptseq.yaml")
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "also write the user config file")
}

type initResult struct {
	name    string
	status  string // done, skipped, failed
	message string
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter project",
	Long: `Write a starter project: a config file, a sequence table with a
conditional branch and a nested sequence, initial prompts, and action
fragments. Existing files are kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		results := writeScaffold(dir)
		if initGlobal {
			results = append(results, createConfigFile())
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() || IsJSONLOutput() {
			type row struct {
				Name    string `json:"name"`
				Status  string `json:"status"`
				Message string `json:"message,omitempty"`
			}
			rows := make([]row, 0, len(results))
			for _, r := range results {
				rows = append(rows, row{Name: r.name, Status: r.status, Message: r.message})
			}
			if err := WriteOutput(out, rows); err != nil {
				return err
			}
		} else {
			st := buildStyles(GetConfig().Theme)
			for _, r := range results {
				mark := st.Success.Render("done   ")
				switch r.status {
				case "skipped":
					mark = st.Warning.Render("skipped")
				case "failed":
					mark = st.Error.Render("failed ")
				}
				fmt.Fprintf(out, "%s  %s", mark, r.name)
				if r.message != "" {
					fmt.Fprintf(out, "  %s", st.Muted.Render(r.message))
				}
				fmt.Fprintln(out)
			}
		}

		for _, r := range results {
			if r.status == "failed" {
				return fmt.Errorf("init: %s: %s", r.name, r.message)
			}
		}
		return nil
	},
}

// writeScaffold copies the embedded starter project into dir.
func writeScaffold(dir string) []initResult {
	var results []initResult
	err := fs.WalkDir(scaffoldFS, scaffoldRoot, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := name[len(scaffoldRoot)+1:]
		results = append(results, writeScaffoldFile(name, filepath.Join(dir, filepath.FromSlash(rel)), rel))
		return nil
	})
	if err != nil {
		results = append(results, initResult{name: dir, status: "failed", message: err.Error()})
	}
	return results
}

func writeScaffoldFile(src, dst, name string) initResult {
	data, err := scaffoldFS.ReadFile(src)
	if err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	return writeIfAbsent(dst, name, data)
}

// createConfigFile writes the user config file under configDirFunc().
func createConfigFile() initResult {
	dir := configDirFunc()
	return writeIfAbsent(filepath.Join(dir, "config.yaml"), "user config", []byte(configTemplate))
}

func writeIfAbsent(dst, name string, data []byte) initResult {
	if _, err := os.Stat(dst); err == nil && !initForce {
		if !confirm(os.Stdin, os.Stdout, fmt.Sprintf("%s exists. Overwrite?", dst), false) {
			return initResult{name: name, status: "skipped", message: "already exists (use --force to overwrite)"}
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return initResult{name: name, status: "failed", message: err.Error()}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return initResult{name: name, status: "failed", message: err.Error()}
	}
	return initResult{name: name, status: "done", message: dst}
}

func defaultConfigDir() string {
	return config.DefaultConfigDir()
}

func mustScaffold(name string) string {
	data, err := scaffoldFS.ReadFile(path.Join(scaffoldRoot, name))
	if err != nil {
		panic(err)
	}
	return string(data)
}
