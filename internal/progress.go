package internal

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// UIManager handles all user interface concerns (progress, verbose output, prompts)
type UIManager interface {
	NewSpinner(description string) ProgressBar
	NewProgressBar(total int, description string) ProgressBar

	Verbose(format string, args ...any)

	Printf(format string, args ...any)
	Println(args ...any)
}

// ProgressBar interface abstracts progress bar operations
type ProgressBar interface {
	Advance()
	Describe(description string)
	Finish()
}

// StandardUIManager handles normal UI operations
type StandardUIManager struct {
	verbose bool
	quiet   bool
	tty     bool
}

// NewUIManager returns a UI manager. Progress output is hidden when quiet or
// when stderr is not a terminal.
func NewUIManager(verbose, quiet bool) UIManager {
	fd := os.Stderr.Fd()
	return &StandardUIManager{
		verbose: verbose,
		quiet:   quiet,
		tty:     isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

func (ui *StandardUIManager) silent() bool {
	return ui.quiet || !ui.tty || ui.verbose
}

// NewSpinner shows an indeterminate spinner with a status line
func (ui *StandardUIManager) NewSpinner(description string) ProgressBar {
	if ui.silent() {
		return silentBar{}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &visibleBar{bar: bar}
}

// NewProgressBar shows a bar for a known number of steps
func (ui *StandardUIManager) NewProgressBar(total int, description string) ProgressBar {
	if ui.silent() {
		return silentBar{}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	return &visibleBar{bar: bar}
}

func (ui *StandardUIManager) Verbose(format string, args ...any) {
	if ui.verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func (ui *StandardUIManager) Printf(format string, args ...any) {
	if !ui.quiet {
		fmt.Printf(format, args...)
	}
}

func (ui *StandardUIManager) Println(args ...any) {
	if !ui.quiet {
		fmt.Println(args...)
	}
}

type visibleBar struct {
	bar *progressbar.ProgressBar
}

func (v *visibleBar) Advance() {
	_ = v.bar.Add(1)
}

func (v *visibleBar) Describe(description string) {
	v.bar.Describe(description)
}

func (v *visibleBar) Finish() {
	_ = v.bar.Finish()
}

type silentBar struct{}

func (silentBar) Advance()        {}
func (silentBar) Describe(string) {}
func (silentBar) Finish()         {}
