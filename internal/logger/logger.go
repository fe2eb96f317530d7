package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu     sync.Mutex
	out    io.Writer = color.Output
	debug            = true
	gray             = color.New(color.FgHiBlack)
	blue             = color.New(color.FgBlue)
	green            = color.New(color.FgGreen)
	yellow           = color.New(color.FgYellow)
	red              = color.New(color.FgRed)
	cyan             = color.New(color.FgCyan)
	purple           = color.New(color.FgMagenta)
)

// SetOutput redirects all log lines, mostly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetDebug toggles Debug output. Production runs with it off.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
}

func write(c *color.Color, prefix, message string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s %s\n",
		gray.Sprintf("[%s]", time.Now().Format("15:04:05")),
		c.Sprintf("%s%s", prefix, fmt.Sprintf(message, args...)))
}

func Info(message string, args ...interface{}) {
	write(blue, "", message, args...)
}

func Success(message string, args ...interface{}) {
	write(green, "✓ ", message, args...)
}

func Warning(message string, args ...interface{}) {
	write(yellow, "⚠ ", message, args...)
}

func Error(message string, args ...interface{}) {
	write(red, "✗ ", message, args...)
}

func Debug(message string, args ...interface{}) {
	mu.Lock()
	enabled := debug
	mu.Unlock()
	if !enabled {
		return
	}
	write(gray, "DEBUG: ", message, args...)
}

// Request logs one HTTP request, colored by status class.
func Request(method, path string, statusCode int, duration time.Duration) {
	var status *color.Color
	switch {
	case statusCode >= 500:
		status = red
	case statusCode >= 400:
		status = yellow
	case statusCode >= 300:
		status = cyan
	default:
		status = green
	}

	var elapsed string
	switch {
	case duration < time.Millisecond:
		elapsed = fmt.Sprintf("%dµs", duration.Microseconds())
	case duration < time.Second:
		elapsed = fmt.Sprintf("%dms", duration.Milliseconds())
	default:
		elapsed = fmt.Sprintf("%.2fs", duration.Seconds())
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s %s %-40s %s %s\n",
		gray.Sprintf("[%s]", time.Now().Format("15:04:05")),
		purple.Sprintf("%-6s", method),
		path,
		status.Sprintf("[%d]", statusCode),
		gray.Sprintf("(%s)", elapsed))
}
