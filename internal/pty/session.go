// Package pty manages long-lived interactive pseudo-terminal sessions: a
// shell (or other interactive program) spawned in its own process group,
// with its output captured into a rolling buffer and commands sent to it
// one at a time with optional pattern-matched wait semantics.
package pty

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	execsafety "github.com/reagent-go/reagent/internal/exec"
	"github.com/reagent-go/reagent/internal/ptybuf"
)

// Status tracks a Session's lifecycle.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusKilled  Status = "killed"
)

// Default dimensions and buffer size for a new Session.
const (
	DefaultRows     = 40
	DefaultCols     = 120
	DefaultMaxLines = ptybuf.DefaultMaxLines
)

// Session is one managed pseudo-terminal: a spawned process, its captured
// output, and its current lifecycle status.
type Session struct {
	ID    string
	Title string

	mu       sync.Mutex
	cmd      *exec.Cmd
	master   *os.File
	status   Status
	exitCode *int
	startAt  time.Time
	endAt    time.Time

	buf *ptybuf.Buffer

	onExit func(*Session)

	logger *slog.Logger
}

// Options configures a new Session.
type Options struct {
	ID       string
	Title    string
	Command  string
	Args     []string
	Env      []string
	Dir      string
	Rows     int
	Cols     int
	MaxLines int
	Logger   *slog.Logger
}

// Start spawns the command described by opts in its own process group and
// begins capturing its output into a rolling buffer.
func Start(opts Options) (*Session, error) {
	command, err := execsafety.SanitizeExecutableValue(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("pty: unsafe command %q: %w", opts.Command, err)
	}
	args, err := execsafety.SanitizeArguments(opts.Args)
	if err != nil {
		return nil, fmt.Errorf("pty: unsafe arguments for %q: %w", command, err)
	}
	opts.Command, opts.Args = command, args

	rows, cols := opts.Rows, opts.Cols
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	maxLines := opts.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	}
	// Isolate the child in its own process group so Kill can signal the
	// whole tree (shells spawn children of their own) instead of just the
	// immediate process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("pty: start %q: %w", opts.Command, err)
	}

	s := &Session{
		ID:      opts.ID,
		Title:   opts.Title,
		cmd:     cmd,
		master:  master,
		status:  StatusRunning,
		startAt: time.Now(),
		buf:     ptybuf.New(maxLines),
		logger:  logger.With("component", "pty", "session_id", opts.ID),
	}

	go s.readLoop()
	go s.waitLoop()

	return s, nil
}

// readLoop copies PTY output into the rolling buffer until the PTY closes.
func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.master.Read(buf)
		if n > 0 {
			s.buf.Append(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// waitLoop blocks for process exit, records the outcome, and notifies the
// manager's on-exit hook if set.
func (s *Session) waitLoop() {
	err := s.cmd.Wait()

	s.mu.Lock()
	s.endAt = time.Now()
	if s.status == StatusRunning {
		s.status = StatusExited
	}
	code := s.cmd.ProcessState.ExitCode()
	s.exitCode = &code
	onExit := s.onExit
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("session process exited", "error", err, "exit_code", code)
	}

	if onExit != nil {
		onExit(s)
	}
}

// SetOnExit registers a callback invoked exactly once when the underlying
// process terminates, whether on its own or via Kill.
func (s *Session) SetOnExit(fn func(*Session)) {
	s.mu.Lock()
	s.onExit = fn
	s.mu.Unlock()
}

// DefaultSettleTime is how long Send waits for output to stop growing
// before considering it settled.
const DefaultSettleTime = 300 * time.Millisecond

// pollInterval bounds how long a settle/match wait sleeps between checks
// when it isn't woken early by new data arriving.
const pollInterval = 50 * time.Millisecond

// writeLine writes input to the session, appending a trailing newline if
// one isn't already present, and returns the number of lines retained in
// the buffer at the moment just before the write.
func (s *Session) writeLine(input string) (before int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return 0, fmt.Errorf("pty: session %s is not running", s.ID)
	}
	before = s.buf.LineCount()
	if !strings.HasSuffix(input, "\n") {
		input += "\n"
	}
	if _, err := s.master.Write([]byte(input)); err != nil {
		return before, err
	}
	return before, nil
}

// Send writes input to the session, then waits for output to settle (no
// new line for DefaultSettleTime) or until timeout elapses, and returns
// every line produced since the write.
func (s *Session) Send(input string, timeout time.Duration) (string, error) {
	before, err := s.writeLine(input)
	if err != nil {
		return "", err
	}
	return joinTail(s.waitForSettle(before, timeout)), nil
}

// waitForSettle blocks until the buffer has grown past startLine and then
// stopped growing for DefaultSettleTime, or until timeout elapses. It
// returns the new lines produced since startLine.
func (s *Session) waitForSettle(startLine int, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	lastCount := startLine
	var settledAt time.Time

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		s.buf.WaitForData(wait)

		current := s.buf.LineCount()
		if current > lastCount {
			lastCount = current
			settledAt = time.Now()
			continue
		}
		if !settledAt.IsZero() && time.Since(settledAt) >= DefaultSettleTime {
			break
		}
	}

	count := lastCount - startLine
	if count <= 0 {
		return nil
	}
	return s.buf.Read(startLine, count)
}

// SendAndMatch sends input, then waits until a line produced since the
// write matches pattern or the timeout elapses. On a match it returns every
// new line up to and including the matching one; on timeout it returns
// whatever new lines accumulated.
func (s *Session) SendAndMatch(input string, pattern *regexp.Regexp, timeout time.Duration) (text string, matched bool, err error) {
	before, err := s.writeLine(input)
	if err != nil {
		return "", false, err
	}

	deadline := time.Now().Add(timeout)
	for {
		current := s.buf.LineCount()
		if current > before {
			newLines := s.buf.Read(before, current-before)
			for i, line := range newLines {
				if pattern.MatchString(line) {
					return joinTail(newLines[:i+1]), true, nil
				}
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return joinTail(s.buf.Read(before, current-before)), false, nil
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		s.buf.WaitForData(wait)
	}
}

func joinTail(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// ReadTail returns up to n of the most recent cleaned output lines.
func (s *Session) ReadTail(n int) []string {
	return s.buf.ReadTail(n)
}

// ReadAll returns every retained cleaned output line.
func (s *Session) ReadAll() []string {
	return s.buf.ReadAll()
}

// Kill terminates the session's whole process group. It is safe to call
// on an already-exited session; it is a no-op in that case.
func (s *Session) Kill() error {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return nil
	}
	pid := s.cmd.Process.Pid
	s.status = StatusKilled
	s.mu.Unlock()

	// Negative PID targets the whole process group created by Setpgid.
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// WaitForExit blocks until the session's process has terminated, ctx is
// canceled, or timeout elapses, whichever comes first.
func (s *Session) WaitForExit(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, exited := s.ExitCode(); exited {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(25 * time.Millisecond):
		}
		if timeout > 0 && time.Now().After(deadline) {
			return false
		}
	}
}

// Status returns the session's current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ExitCode returns the process's exit code, if it has exited.
func (s *Session) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

// StartedAt returns when the session was spawned.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startAt
}

// Resize changes the PTY's terminal dimensions.
func (s *Session) Resize(rows, cols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pty.Setsize(s.master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}
