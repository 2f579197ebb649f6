package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ReadPassphrase writes prompt to out and reads a line from in without
// echoing it. in must be a terminal.
func ReadPassphrase(in *os.File, out io.Writer, prompt string) ([]byte, error) {
	if !IsTerminal(in) {
		return nil, fmt.Errorf("cannot read passphrase: %s is not a terminal", in.Name())
	}

	fmt.Fprint(out, prompt)
	passphrase, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

// WaitForEnter blocks until r yields a newline or ends.
func WaitForEnter(r io.Reader) error {
	_, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to wait for input: %w", err)
	}
	return nil
}
