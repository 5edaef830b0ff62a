package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/doeshing/q/internal/ports"
)

// StdLogger is a lightweight implementation backed by Go's log package.
// Output goes to stderr; stdout belongs to the executed command.
type StdLogger struct {
	verbose bool
	out     *log.Logger
	fields  map[string]interface{}
}

// NewStd creates a StdLogger writing to stderr.
func NewStd(verbose bool) *StdLogger {
	return NewWriter(os.Stderr, verbose)
}

// NewWriter creates a StdLogger writing to w.
func NewWriter(w io.Writer, verbose bool) *StdLogger {
	return &StdLogger{
		verbose: verbose,
		out:     log.New(w, "q ", log.LstdFlags),
	}
}

// With returns a logger that adds fields to every line.
func (l *StdLogger) With(fields map[string]interface{}) ports.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StdLogger{verbose: l.verbose, out: l.out, fields: merged}
}

func (l *StdLogger) Debug(msg string, fields map[string]interface{}) {
	l.print("DEBUG", msg, nil, fields)
}

func (l *StdLogger) Info(msg string, fields map[string]interface{}) {
	l.print("INFO", msg, nil, fields)
}

func (l *StdLogger) Warn(msg string, fields map[string]interface{}) {
	l.print("WARN", msg, nil, fields)
}

func (l *StdLogger) Error(msg string, err error, fields map[string]interface{}) {
	l.print("ERROR", msg, err, fields)
}

func (l *StdLogger) print(level, msg string, err error, fields map[string]interface{}) {
	if !l.verbose {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}
	writeFields(&b, l.fields, fields)
	l.out.Println(b.String())
}

func writeFields(b *strings.Builder, sets ...map[string]interface{}) {
	merged := map[string]interface{}{}
	for _, set := range sets {
		for k, v := range set {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, merged[k])
	}
}

// VerboseFromEnv reports whether Q_DEBUG asks for debug output.
func VerboseFromEnv() bool {
	switch strings.ToLower(os.Getenv("Q_DEBUG")) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var _ ports.Logger = (*StdLogger)(nil)
