package terminal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/dbgee/dbgee/internal/debugger"
)

// ProtocolVersion is the current IDE handoff protocol version. Readers
// that do not understand it are expected to ignore the payload.
const ProtocolVersion = "0.2.0"

// InformationPipePath is the fixed, well-known path the information pipe
// is created at. Overridable for tests via WithInformationPipePath.
const InformationPipePath = "/tmp/dbgee-vscode-debuggees"

const requestPipePrefix = "/tmp/dbgee-vscode-debuggee-for-"

// VSCode is the IDE terminal: it publishes attach coordinates to a
// cooperating IDE window via a pair of named pipes rather than opening
// any interactive view itself.
type VSCode struct {
	logger   *slog.Logger
	infoPath string
}

// NewVSCode returns a VSCode terminal using the default information pipe
// path.
func NewVSCode(logger *slog.Logger) *VSCode {
	return &VSCode{logger: logger, infoPath: InformationPipePath}
}

// WithInformationPipePath overrides the information pipe path, used by
// tests so they don't fight over /tmp/dbgee-vscode-debuggees.
func (v *VSCode) WithInformationPipePath(path string) *VSCode {
	v.infoPath = path
	return v
}

// Open implements Terminal. It writes the information pipe unconditionally
// and the request pipe best-effort: if VSCODE_GIT_IPC_HANDLE is absent or
// the derived path does not exist, the request pipe write is skipped with
// a debug log rather than failing the whole attach.
func (v *VSCode) Open(d debugger.Debugger) error {
	info, err := d.AttachInfo()
	if err != nil {
		return fmt.Errorf("vscode: build attach information: %w", err)
	}

	payload := map[string]string{}
	for _, k := range []debugger.AttachKey{debugger.KeyPid, debugger.KeyProgramName, debugger.KeyDebuggerPort} {
		if val, ok := info[k]; ok {
			payload[string(k)] = val
		}
	}
	payload["protocolVersion"] = ProtocolVersion

	infoJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vscode: marshal information payload: %w", err)
	}
	if err := writeFIFO(v.infoPath, infoJSON); err != nil {
		return fmt.Errorf("vscode: write information pipe: %w", err)
	}

	reqPath, ok := requestPipePath()
	if !ok {
		v.logger.Debug("VSCODE_GIT_IPC_HANDLE not set, skipping request pipe; falling back to manual attach")
		return nil
	}
	if _, err := os.Stat(reqPath); err != nil {
		v.logger.Debug("request pipe does not exist, IDE extension may be too old; falling back to manual attach", "path", reqPath)
		return nil
	}

	reqPayload := map[string]string{
		"protocolVersion": ProtocolVersion,
		"debuggerType":    remapDebuggerType(info[debugger.KeyTypeHint]),
	}
	reqJSON, err := json.Marshal(reqPayload)
	if err != nil {
		return fmt.Errorf("vscode: marshal request payload: %w", err)
	}
	if err := writeFIFO(reqPath, reqJSON); err != nil {
		v.logger.Debug("failed writing request pipe, falling back to manual attach", "error", err)
		return nil
	}
	return nil
}

// remapDebuggerType maps gdb to lldb: the IDE extension drives both
// through one backend.
func remapDebuggerType(typeHint string) string {
	if typeHint == "gdb" {
		return "lldb"
	}
	return typeHint
}

// requestPipePath derives the request pipe path from VSCODE_GIT_IPC_HANDLE,
// stripping a trailing ".sock" and prefixing requestPipePrefix.
func requestPipePath() (string, bool) {
	handle := os.Getenv("VSCODE_GIT_IPC_HANDLE")
	if handle == "" {
		return "", false
	}
	base := handle
	if idx := strings.LastIndexByte(handle, '/'); idx >= 0 {
		base = handle[idx+1:]
	}
	base = strings.TrimSuffix(base, ".sock")
	return requestPipePrefix + base, true
}

// writeFIFO creates path as a FIFO if it does not already exist (idempotent:
// EEXIST is not an error) and spawns a one-shot background writer: opening
// a FIFO for write blocks until a reader appears, and a cooperating IDE
// may not be listening yet, so this must not block Open's caller.
func writeFIFO(path string, payload []byte) error {
	if err := syscall.Mkfifo(path, 0o600); err != nil && !errors.Is(err, syscall.EEXIST) {
		return fmt.Errorf("mkfifo %q: %w", path, err)
	}

	done := make(chan error, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			done <- err
			return
		}
		defer f.Close()
		_, err = f.Write(payload)
		done <- err
	}()

	// The writer goroutine is not waited on: a slow or absent reader must
	// not block the caller, matching spec.md §5's "cannot produce
	// back-pressure" note.
	_ = done
	return nil
}
