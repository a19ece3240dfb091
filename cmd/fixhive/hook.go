package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/fixhive/internal/detect"
	"github.com/kalambet/fixhive/internal/service"
)

const maxHookInput = 10 << 20 // 10MB

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Post-tool hook: detect errors in a tool's output",
	Long: `Read {"tool_name": ..., "tool_output": ...} from stdin, store any errors
found in the output and print a short notice on stdout.

The hook never fails the calling tool: bad input and storage problems are
logged to stderr and the command exits 0.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var a *app
		defer func() {
			if a != nil {
				a.Close()
			}
		}()
		open := func() (ingestFunc, error) {
			var err error
			a, err = openApp(context.Background(), openOptions{})
			if err != nil {
				return nil, err
			}
			return a.svc.Ingest, nil
		}
		runHook(os.Stdin, os.Stdout, open)
		return nil
	},
}

type ingestFunc func(toolName, output string) (service.IngestResult, error)

type hookInput struct {
	ToolName   string `json:"tool_name"`
	ToolOutput string `json:"tool_output"`
}

type hookOutput struct {
	FixHive service.IngestResult `json:"fixhive"`
}

// runHook opens the store only when the output looks like it has an error.
func runHook(in io.Reader, out io.Writer, open func() (ingestFunc, error)) {
	data, err := io.ReadAll(io.LimitReader(in, maxHookInput))
	if err != nil || len(data) == 0 {
		return
	}
	var input hookInput
	if err := json.Unmarshal(data, &input); err != nil {
		slog.Debug("hook input is not JSON", "error", err)
		return
	}
	if !detect.HasError(input.ToolOutput) {
		return
	}

	ingest, err := open()
	if err != nil {
		slog.Error("hook setup failed", "error", err)
		return
	}
	res, err := ingest(input.ToolName, input.ToolOutput)
	if err != nil {
		slog.Error("hook ingest failed", "error", err)
		return
	}
	if res.Detected == 0 {
		return
	}
	if err := json.NewEncoder(out).Encode(hookOutput{FixHive: res}); err != nil {
		slog.Error("writing hook output", "error", err)
	}
}
