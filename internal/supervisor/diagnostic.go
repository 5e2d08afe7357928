package supervisor

import (
	"log"
	"os/exec"
)

// checkCommandOnPath looks up command via exec.LookPath purely to sharpen
// the startup log line. A miss here does not block the spawn attempt —
// the OS-level exec still runs and its failure is reported the usual way
// (Process) — this only makes a missing npx/uvx/node-style runtime
// visible immediately instead of buried in an exec error string.
func checkCommandOnPath(toolID, command string) {
	if _, err := exec.LookPath(command); err != nil {
		log.Printf("[Supervisor] %s: command %q not found on PATH, spawn will likely fail: %v", toolID, command, err)
	}
}
