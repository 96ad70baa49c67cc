package etl

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	name   string
	args   []string
	output string
	err    error
	write  func() error
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.name, f.args = name, args
	if f.write != nil {
		if err := f.write(); err != nil {
			return nil, err
		}
	}
	return []byte(f.output), f.err
}

func TestCommandRunner(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "survey_result.json")
	summary := NewResult()
	summary.Respondents = 12

	tests := []struct {
		name     string
		command  string
		wantName string
		wantArgs []string
	}{
		{
			name:     "placeholders",
			command:  "python3 etl.py --in {input} --out={output}",
			wantName: "python3",
			wantArgs: []string{"etl.py", "--in", "survey.xlsx", "--out=" + out},
		},
		{
			name:     "input appended",
			command:  "survey-etl --quiet",
			wantName: "survey-etl",
			wantArgs: []string{"--quiet", "survey.xlsx"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{
				output: "loaded sheet\n\n12 rows\n",
				write:  func() error { return WriteSummary(ctx, out, summary) },
			}

			result, err := NewCommandRunner(exec, tt.command, out).Run(ctx, "survey.xlsx")
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, exec.name)
			assert.Equal(t, tt.wantArgs, exec.args)
			assert.Equal(t, 12, result.Respondents)
			assert.Equal(t, []string{"loaded sheet", "12 rows"}, result.Logs)
			assert.NotEmpty(t, result.JSON)
		})
	}
}

func TestCommandRunnerFailure(t *testing.T) {
	exec := &fakeExecutor{output: "Traceback: KeyError 'Idade'\n", err: errors.New("exit status 1")}
	_, err := NewCommandRunner(exec, "python3 etl.py {input}", filepath.Join(t.TempDir(), "out.json")).
		Run(context.Background(), "survey.xlsx")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "KeyError 'Idade'")
}

func TestCommandRunnerMissingSummary(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := NewCommandRunner(exec, "true", filepath.Join(t.TempDir(), "out.json")).
		Run(context.Background(), "survey.xlsx")
	assert.Error(t, err)
}

func TestCommandRunnerIgnoresPreviousSummary(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "survey_result.json")

	previous := NewResult()
	previous.Respondents = 999
	require.NoError(t, WriteSummary(ctx, out, previous))

	// exits cleanly but never writes the summary
	exec := &fakeExecutor{output: "processed ok\n"}
	_, err := NewCommandRunner(exec, "survey-etl {input}", out).Run(ctx, "survey.xlsx")
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestCommandRunnerEmptyCommand(t *testing.T) {
	_, err := NewCommandRunner(&fakeExecutor{}, "  ", "out.json").Run(context.Background(), "survey.xlsx")
	assert.Error(t, err)
}
