package console

import (
	"context"
	"os"

	"golang.org/x/term"
)

// TerminalPasswordReader reads a password from a terminal with echo disabled
type TerminalPasswordReader struct {
	fd int
}

// NewTerminalPasswordReader returns a masked reader when f is a terminal, and
// nil otherwise so the shell falls back to plain line input
func NewTerminalPasswordReader(f *os.File) PasswordReader {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return &TerminalPasswordReader{fd: fd}
}

type passwordResult struct {
	password []byte
	err      error
}

// ReadPassword reads up to the end of the line without echoing it. If ctx is
// done first the terminal state is restored so echo comes back on exit.
func (r *TerminalPasswordReader) ReadPassword(ctx context.Context) (string, error) {
	state, err := term.GetState(r.fd)
	if err != nil {
		return "", err
	}

	done := make(chan passwordResult, 1)
	go func() {
		b, err := term.ReadPassword(r.fd)
		done <- passwordResult{password: b, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return string(res.password), nil
	case <-ctx.Done():
		_ = term.Restore(r.fd, state)
		return "", ctx.Err()
	}
}
