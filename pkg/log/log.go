// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent   = 4  // spaces to indent object entries
	nameWidth    = 35 // Base width for local path
	remoteWidth  = 26 // Width for remote name
	outcomeWidth = 10 // Width for outcome text
)

// 🎯 ObjectOperation describes one decision about one remote object
type ObjectOperation struct {
	Path    string // Local path the object came from
	Remote  string // Remote object name
	Kind    string // primary, sourcemap, derivative, state, stale
	Outcome string // uploaded, present, failed, deleted
	Size    int    // Uncompressed size in bytes
}

// 📦 DeployOperation describes the run being started
type DeployOperation struct {
	Root   string // Local root directory
	Subdir string // Optional subdirectory under root
	Bucket string // Target bucket
}

// 📊 Summary is the final tally printed after a run
type Summary struct {
	URL               string
	Uploaded          int
	Noop              int
	QueuedForDeletion int
	Deleted           int
	Errored           int
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	verbose    bool
	mu         sync.Mutex
	currentOp  *DeployOperation
	operations int
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		verbose: level <= zerolog.DebugLevel,
		mu:      sync.Mutex{},
	}
}

// NewWithZerolog uses an existing zerolog logger for the structured side.
func NewWithZerolog(console io.Writer, zlog zerolog.Logger, verbose bool) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
		verbose: verbose,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context, or a quiet logger when none
// was attached
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		return NewWithZerolog(io.Discard, *zerolog.Ctx(ctx), false)
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatObjectOperation formats an object operation for display
func (l *Logger) formatObjectOperation(op ObjectOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Outcome {
	case "uploaded":
		symbol = '✓'
		symbolColor = color.FgGreen
	case "failed":
		symbol = '✗'
		symbolColor = color.FgRed
	case "deleted":
		symbol = '-'
		symbolColor = color.FgYellow
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	var kindColor color.Attribute
	switch op.Kind {
	case "sourcemap", "derivative":
		kindColor = color.FgMagenta
	case "state":
		kindColor = color.Faint
	default:
		kindColor = color.FgBlue
	}

	return fmt.Sprintf("%s%s %s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(kindColor).Sprint(fmt.Sprintf("%-*s", remoteWidth, op.Remote)),
		fmt.Sprintf("%-*s", outcomeWidth, op.Outcome),
		op.Kind)
}

// 📝 LogObjectOperation records an object decision. The console line is only
// printed in verbose mode.
func (l *Logger) LogObjectOperation(ctx context.Context, op ObjectOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations++

	if l.verbose {
		fmt.Fprintln(l.console, l.formatObjectOperation(op))
	}

	l.zlog.Debug().
		Str("file", op.Path).
		Str("remote", op.Remote).
		Str("kind", op.Kind).
		Str("outcome", op.Outcome).
		Int("size", op.Size).
		Msg("object operation")
}

// 📝 StartDeploy prints the run header
func (l *Logger) StartDeploy(ctx context.Context, op DeployOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = 0

	fmt.Fprintf(l.console, "[publishing %s]\n",
		color.New(color.FgCyan).Sprint(op.Root))

	target := op.Subdir
	if target == "" {
		target = "/"
	}
	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Bucket),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(target))

	l.zlog.Info().
		Str("root", op.Root).
		Str("subdir", op.Subdir).
		Str("bucket", op.Bucket).
		Msg("starting deploy")
}

// 📝 EndDeploy closes the current run
func (l *Logger) EndDeploy(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	l.zlog.Info().
		Str("bucket", l.currentOp.Bucket).
		Int("objects", l.operations).
		Msg("deploy complete")

	l.currentOp = nil
	l.operations = 0
}

// 📊 Summary prints the final counters
func (l *Logger) Summary(s Summary) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprintf("%d items uploaded.", s.Uploaded))
	fmt.Fprintf(l.console, "⏺  %s\n", color.New(color.FgCyan).Sprintf("%d items already present.", s.Noop))
	fmt.Fprintf(l.console, "⌛ %s\n", color.New(color.FgYellow).Sprintf("%d items queued for deletion.", s.QueuedForDeletion))
	fmt.Fprintf(l.console, "🚫 %s\n", color.New(color.FgMagenta).Sprintf("%d items deleted.", s.Deleted))
	fmt.Fprintf(l.console, "❗ %s\n", color.New(color.FgRed).Sprintf("%d items failed.", s.Errored))
	if s.URL != "" {
		fmt.Fprintf(l.console, "🌎 %s\n", color.New(color.Bold).Sprint(s.URL))
	}

	l.zlog.Info().
		Str("url", s.URL).
		Int("uploaded", s.Uploaded).
		Int("noop", s.Noop).
		Int("queued_for_deletion", s.QueuedForDeletion).
		Int("deleted", s.Deleted).
		Int("errored", s.Errored).
		Msg("deploy summary")
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hoistText := color.New(color.Bold, color.FgCyan).Sprint("hoist")
	fmt.Fprintf(l.console, "\n%s %s\n\n", hoistText, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
