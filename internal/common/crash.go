// -----------------------------------------------------------------------
// Crash Reporting - fatal panic capture for post-mortem analysis
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// CrashLogDir is where crash reports land. Overridden by
// InstallCrashHandler before anything can panic.
var CrashLogDir = "./logs"

// InstallCrashHandler sets the crash report directory and makes sure it
// exists. Call it first thing in main.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot create log directory: %v\n", err)
	}
}

// RecoverWithCrashFile recovers a panic, writes the crash report and
// exits. Meant to be deferred at the top of main.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}

// WriteCrashFile dumps the panic, all goroutine stacks and runtime stats
// to a timestamped file under CrashLogDir. Returns the file path, or an
// empty string when even that failed and the report went to stderr.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	path := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	var report bytes.Buffer
	fmt.Fprintf(&report, "curio crash report\ntime: %s\nversion: %s\n\n",
		time.Now().Format(time.RFC3339), GetFullVersion())
	fmt.Fprintf(&report, "panic: %v\n\n", panicVal)
	fmt.Fprintf(&report, "stack:\n%s\n", stackTrace)
	fmt.Fprintf(&report, "all goroutines:\n%s\n", GetAllGoroutineStacks())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&report, "goroutines=%d cpus=%d goos=%s goarch=%s\n",
		runtime.NumGoroutine(), runtime.NumCPU(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&report, "alloc=%dMB sys=%dMB gc=%d\n",
		mem.Alloc/1024/1024, mem.Sys/1024/1024, mem.NumGC)

	if err := os.WriteFile(path, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: cannot write crash file: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\nFATAL: crash report saved to %s\npanic: %v\n", path, panicVal)
	return path
}

// GetStackTrace returns the current goroutine's stack
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// GetAllGoroutineStacks returns stacks for every goroutine, growing the
// buffer until the dump fits (capped at 64MB).
func GetAllGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		if len(buf) >= 64*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}
