package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Executor runs an external program and returns its combined output
type Executor interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandRunner delegates the ETL to an external command such as a Python script.
// The command line may use {input} and {output} placeholders; the command must
// write the JSON summary to the output path.
type CommandRunner struct {
	exec    Executor
	command string
	output  string
}

// NewCommandRunner creates a runner for command writing to output
func NewCommandRunner(exec Executor, command, output string) *CommandRunner {
	return &CommandRunner{exec: exec, command: command, output: output}
}

// Run implements Runner
func (c *CommandRunner) Run(ctx context.Context, xlsxPath string) (*Result, error) {
	fields := strings.Fields(c.command)
	if len(fields) == 0 {
		return nil, errors.New("etl command is empty")
	}

	hasInput := false
	for i, f := range fields {
		if strings.Contains(f, "{input}") {
			hasInput = true
		}
		f = strings.ReplaceAll(f, "{input}", xlsxPath)
		fields[i] = strings.ReplaceAll(f, "{output}", c.output)
	}
	if !hasInput {
		fields = append(fields, xlsxPath)
	}

	slog.Debug("running etl command", slog.String("name", fields[0]), slog.Any("args", fields[1:]))

	// a summary left by the previous run must not pass for this one
	if err := os.Remove(c.output); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing previous summary: %w", err)
	}

	out, err := c.exec.Run(ctx, fields[0], fields[1:]...)
	if err != nil {
		return nil, fmt.Errorf("etl command failed: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}

	result, err := LoadSummary(ctx, c.output)
	if err != nil {
		return nil, err
	}
	for line := range strings.Lines(string(out)) {
		if line = strings.TrimSpace(line); line != "" {
			result.Logs = append(result.Logs, line)
		}
	}
	return result, nil
}
