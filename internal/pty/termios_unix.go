//go:build unix

package pty

import (
	"golang.org/x/term"
)

// TermState captures a terminal's mode before it was switched to raw mode,
// so it can be restored exactly once the caller is done reading individual
// keystrokes.
type TermState struct {
	fd   int
	prev *term.State
}

// EnterRawMode switches fd (typically os.Stdin.Fd()) into raw mode: no line
// buffering, no echo, keystrokes delivered to the reader one byte at a
// time. Used by the CLI run command to read a single interrupt keypress
// without waiting for Enter.
func EnterRawMode(fd int) (*TermState, error) {
	prev, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &TermState{fd: fd, prev: prev}, nil
}

// Restore puts the terminal back into the mode it was in before EnterRawMode.
func (t *TermState) Restore() error {
	return term.Restore(t.fd, t.prev)
}

// TerminalSize reports the column/row count of the terminal at fd.
func TerminalSize(fd int) (cols, rows int, err error) {
	return term.GetSize(fd)
}

// IsTerminal reports whether fd refers to an interactive terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// ResizeToFd queries the current size of the terminal at fd and applies it
// to the session's PTY, used to keep a session's window in sync with its
// controlling terminal across a SIGWINCH.
func (s *Session) ResizeToFd(fd int) error {
	cols, rows, err := TerminalSize(fd)
	if err != nil {
		return err
	}
	return s.Resize(rows, cols)
}
