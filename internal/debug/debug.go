package debug

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (devices, capture results)
	LevelLive    = 2 // Live info (frames, shots, retries)
	LevelVerbose = 3 // Verbose (config traversal, session steps)
	LevelTrace   = 4 // Trace (every libgphoto2 call and its result code)
)

var (
	level  int
	output io.Writer = os.Stdout
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (detected devices, capture results)
// 2 = live info (preview frames, shots, retries)
// 3 = verbose (widget traversal, session state changes)
// 4 = trace (libgphoto2 calls, very low level)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(output, "[gpcam] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output, e.g. to stdout and the web status stream.
func SetOutput(w io.Writer) {
	output = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("═══════════════════════════════════════")
		logger.Printf("  %s", title)
		logger.Printf("═══════════════════════════════════════")
	}
}

// Device prints a detected device (level 1).
func Device(model, port string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Device: %s on %s", model, port)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Shot prints a still capture (level 2).
func Shot(n, total int, dest string) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Shot %d/%d saved to %s", n, total, dest)
	}
}

// Frame prints a preview frame (level 2).
func Frame(n, size int) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Preview frame %d (%d bytes)", n, size)
	}
}

// Retry prints a retried native operation (level 2).
func Retry(op string, attempt, attempts int, code int) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] %s attempt %d/%d failed (code %d)", op, attempt, attempts, code)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] %s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Step %d: %s", num, description)
	}
}

// Value prints a named value (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// Native prints a libgphoto2 call and its result code (level 4).
func Native(call string, code int) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[GP] %s -> %d", call, code)
	}
}

// GPIO prints a GPIO pin operation (level 4).
func GPIO(op string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		if value != nil {
			logger.Printf("[GPIO] %s pin=%d value=%v", op, pin, value)
		} else {
			logger.Printf("[GPIO] %s pin=%d", op, pin)
		}
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}

// Fmt returns a formatted string only if debug is enabled
// (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
