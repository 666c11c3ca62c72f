//go:build unix

package pty

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminalFalseForARegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	assert.False(t, IsTerminal(int(f.Fd())))
}

func TestEnterRawModeErrorsOnNonTerminalFd(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, err = EnterRawMode(int(f.Fd()))
	assert.Error(t, err)
}
