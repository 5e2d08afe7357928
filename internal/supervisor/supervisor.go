// Package supervisor owns the at-most-one-child-per-tool process
// lifecycle: spawning, stdout/stderr line capture, exit monitoring, and
// driving tool status against the catalog store. The process map's lock
// guards only in-memory mutations; no lock is ever held across a spawn,
// kill, database call, or stream read.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pocketomega/mcp-supervisor/internal/catalog"
	"github.com/pocketomega/mcp-supervisor/internal/mcperr"
	"github.com/pocketomega/mcp-supervisor/internal/util"
)

// maxLogLineRunes bounds a single captured line before it is handed to
// the sink. A pathological tool writing an unbroken multi-megabyte line
// is truncated rather than buffered whole: readStream keeps only enough
// bytes of a line to fill this bound and discards the rest of it.
const maxLogLineRunes = 64 * 1024

// Sink receives captured and synthetic log lines for a tool. Implemented
// by internal/logfabric, which owns the ring buffer and broadcast fanout;
// kept as a narrow interface here so this package never imports the
// streaming layer's concrete types.
type Sink interface {
	Append(toolID, stream, message string)
}

type noopSink struct{}

func (noopSink) Append(string, string, string) {}

const monitorInterval = 500 * time.Millisecond

type waitResult struct {
	exitCode int
	err      error
}

// handle tracks one live child process.
type handle struct {
	toolID string
	cmd    *exec.Cmd
	waitCh chan waitResult
}

// Supervisor owns the tool_id → handle map described in the shared
// mutable state section: a single read/write lock guarding in-memory
// mutations, with all process I/O performed outside the lock.
type Supervisor struct {
	store *catalog.Store
	sink  Sink

	mu        sync.RWMutex
	processes map[string]*handle
}

// New builds a Supervisor. sink may be nil, in which case log lines are
// dropped (useful in tests that don't assert on log output).
func New(store *catalog.Store, sink Sink) *Supervisor {
	if sink == nil {
		sink = noopSink{}
	}
	return &Supervisor{store: store, sink: sink, processes: make(map[string]*handle)}
}

// IsRunning reports whether toolID currently has a live handle.
func (s *Supervisor) IsRunning(toolID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processes[toolID]
	return ok
}

// reservingHandle occupies a tool's map slot from the moment "not already
// running" is confirmed until a real handle (or nothing, on failure) takes
// its place. Its identity is never compared against by monitor — only real
// handles are ever passed to monitor/waitForExit — so the shared pointer is
// just a marker, not a per-tool value.
var reservingHandle = &handle{}

// reserve atomically checks that toolID has no live handle and, if so,
// occupies its map slot before returning. Folding the check and the write
// into one locked section closes the gap the old IsRunning-then-cmd.Start
// sequence left open, where two concurrent Start calls could both observe
// "not running" and both spawn a real child before either wrote the map.
func (s *Supervisor) reserve(toolID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[toolID]; ok {
		return false
	}
	s.processes[toolID] = reservingHandle
	return true
}

// release drops toolID's reservation or handle. Used to undo reserve when
// Start fails before a real handle replaces the placeholder, so a failed
// attempt never permanently blocks future starts for the tool.
func (s *Supervisor) release(toolID string) {
	s.mu.Lock()
	delete(s.processes, toolID)
	s.mu.Unlock()
}

// Start validates preconditions,
// spawns the child with piped stdout/stderr, and drives status through
// starting → healthy. ctx governs only the validation/lookup phase — the
// spawned child is intentionally detached from it so that cancelling the
// inbound request does not kill a process that should keep running.
func (s *Supervisor) Start(ctx context.Context, toolID string) error {
	if !s.reserve(toolID) {
		return mcperr.New(mcperr.Process, "already running")
	}
	started := false
	defer func() {
		if !started {
			s.release(toolID)
		}
	}()

	tool, err := s.store.GetTool(ctx, toolID)
	if err != nil {
		return err
	}
	if tool.Command == nil || *tool.Command == "" {
		return mcperr.New(mcperr.Validation, "missing command")
	}

	if missing := missingRequiredEnv(tool); len(missing) > 0 {
		msg := fmt.Sprintf("missing required env: %s", strings.Join(missing, ", "))
		_ = s.store.SetToolStatus(ctx, toolID, catalog.ToolPending, nil, &msg)
		s.sink.Append(toolID, "event", msg)
		return mcperr.New(mcperr.Validation, msg)
	}

	checkCommandOnPath(toolID, *tool.Command)

	cmd := exec.Command(*tool.Command, tool.Args...)
	cmd.Env = buildEnv(tool.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return mcperr.Wrap(mcperr.Process, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return mcperr.Wrap(mcperr.Process, err)
	}

	if err := cmd.Start(); err != nil {
		return mcperr.Wrap(mcperr.Process, fmt.Errorf("spawn %s: %w", *tool.Command, err))
	}

	h := &handle{toolID: toolID, cmd: cmd, waitCh: make(chan waitResult, 1)}
	s.mu.Lock()
	s.processes[toolID] = h
	s.mu.Unlock()
	started = true

	if err := s.store.SetToolStatus(ctx, toolID, catalog.ToolStarting, nil, nil); err != nil {
		log.Printf("[Supervisor] set status starting for %s: %v", toolID, err)
	}

	go s.readStream(toolID, "stdout", stdout)
	go s.readStream(toolID, "stderr", stderr)
	go s.waitForExit(h)
	go s.monitor(h)

	if err := s.store.SetToolStatus(context.Background(), toolID, catalog.ToolHealthy, nil, nil); err != nil {
		log.Printf("[Supervisor] set status healthy for %s: %v", toolID, err)
	}
	s.sink.Append(toolID, "event", "process started")
	return nil
}

// Stop is idempotent when no handle is
// live, otherwise kills the child. The exit monitor races this call;
// whichever observes the process first removes the handle, so both
// paths converge on status stopped. A toolID still in the reserve window
// of a concurrent Start (cmd.Start hasn't returned yet, so h.cmd is still
// nil) is treated the same as "nothing to kill" — Start's own deferred
// release/replace then finishes unwinding or running that attempt.
func (s *Supervisor) Stop(ctx context.Context, toolID string) error {
	s.mu.Lock()
	h, ok := s.processes[toolID]
	if ok {
		delete(s.processes, toolID)
	}
	s.mu.Unlock()

	if !ok || h.cmd == nil {
		return s.store.SetToolStatus(ctx, toolID, catalog.ToolStopped, nil, nil)
	}

	if err := h.cmd.Process.Kill(); err != nil {
		return mcperr.Wrap(mcperr.Process, fmt.Errorf("kill %s: %w", toolID, err))
	}
	s.sink.Append(toolID, "event", "process stopped")
	return s.store.SetToolStatus(ctx, toolID, catalog.ToolStopped, nil, nil)
}

// readStream reads r line by line and forwards each line to the sink
// tagged with stream. Bytes are passed through as read; invalid UTF-8 is
// replaced only where a line is truncated or later JSON-encoded. Falls
// off silently when the pipe closes — log-reader tasks never propagate
// errors per the error-handling policy.
func (s *Supervisor) readStream(toolID, stream string, r io.Reader) {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			return
		}
		// A rune is at most 4 bytes, so past this length the line is
		// already longer than maxLogLineRunes and the rest is dropped.
		if len(line) <= 4*maxLogLineRunes {
			line = append(line, frag...)
		}
		if isPrefix {
			continue
		}
		s.sink.Append(toolID, stream, util.TruncateRunesSuffix(string(line), maxLogLineRunes, "…[truncated]"))
		line = line[:0]
	}
}

// waitForExit blocks on the child's termination and publishes the result
// on h.waitCh for the monitor goroutine to observe. Run in its own
// goroutine so the monitor can poll rather than block.
func (s *Supervisor) waitForExit(h *handle) {
	err := h.cmd.Wait()
	code := 0
	if h.cmd.ProcessState != nil {
		code = h.cmd.ProcessState.ExitCode()
	}
	h.waitCh <- waitResult{exitCode: code, err: err}
}

// monitor polls at 500ms granularity for h's termination. Polling (rather
// than awaiting the child directly in this goroutine) lets Stop acquire
// the processes lock between checks, so the kill path and the monitor
// never contend for the same handle at the same instant.
func (s *Supervisor) monitor(h *handle) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		current, ok := s.processes[h.toolID]
		s.mu.RUnlock()
		if !ok || current != h {
			return // handle already removed by Stop; convergence already happened
		}

		select {
		case res := <-h.waitCh:
			s.mu.Lock()
			if s.processes[h.toolID] == h {
				delete(s.processes, h.toolID)
			}
			s.mu.Unlock()

			msg := fmt.Sprintf("process exited with code %d", res.exitCode)
			s.sink.Append(h.toolID, "event", msg)
			status := catalog.ToolStopped
			var errMsg *string
			if res.exitCode != 0 {
				status = catalog.ToolCrashed
				errMsg = &msg
			}
			if err := s.store.SetToolStatus(context.Background(), h.toolID, status, nil, errMsg); err != nil {
				log.Printf("[Supervisor] set status for %s after exit: %v", h.toolID, err)
			}
			return
		default:
			continue
		}
	}
}

// missingRequiredEnv returns the declared env_config keys (required=true,
// key non-empty) that have no non-empty value in the tool's env map.
func missingRequiredEnv(tool *catalog.Tool) []string {
	var missing []string
	for _, entry := range tool.EnvConfig {
		if !entry.Required || entry.Key == "" {
			continue
		}
		if tool.Env[entry.Key] == "" {
			missing = append(missing, entry.Key)
		}
	}
	return missing
}

// buildEnv layers a tool's declared env map on top of the supervisor
// process's own environment. The tool's entries are extra variables, not
// a replacement environment.
func buildEnv(env map[string]string) []string {
	out := append([]string(nil), os.Environ()...)
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
