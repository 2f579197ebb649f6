package isolated

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/PolarWolf314/pkgseal/internal/assembly"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

// Unpacker extracts the payload of a carrier image.
type Unpacker interface {
	Unpack(ctx context.Context, path string) ([]byte, error)
}

// InProcess parses the carrier with the memory-safe metadata reader.
type InProcess struct{}

func (InProcess) Unpack(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return assembly.Unpack(path)
}

// Exit codes of the unpack helper.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitInvalidImage    = 2
	ExitPayloadMissing  = 3
	helperCommand       = "unpack"
	maxHelperStderrSize = 4096
)

// Subprocess parses the carrier in a child process running the hidden
// unpack command, so a malformed image can at worst kill the child.
type Subprocess struct {
	// Executable defaults to the running binary.
	Executable string

	// Args precede the carrier path; they default to the unpack command.
	Args []string

	// Env is appended to the inherited environment.
	Env []string
}

func (s Subprocess) Unpack(ctx context.Context, path string) ([]byte, error) {
	exe := s.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate unpack helper: %w", err)
		}
		exe = self
	}
	args := s.Args
	if args == nil {
		args = []string{helperCommand}
	}

	cmd := exec.CommandContext(ctx, exe, append(append([]string(nil), args...), path)...)
	cmd.Env = append(os.Environ(), s.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	message := strings.TrimSpace(stderr.String())
	if len(message) > maxHelperStderrSize {
		message = message[:maxHelperStderrSize]
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case ExitInvalidImage:
			return nil, fmt.Errorf("%w: %s", kerrors.ErrInvalidImage, message)
		case ExitPayloadMissing:
			return nil, fmt.Errorf("%w: %s", kerrors.ErrCarrierPayloadMissing, message)
		}
	}
	return nil, fmt.Errorf("unpack helper failed: %v: %s", err, message)
}

// RunHelper is the body of the unpack helper: it writes the payload of
// the carrier at path to stdout and returns the process exit code.
func RunHelper(stdout, stderr io.Writer, path string) int {
	payload, err := assembly.Unpack(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitCode(err)
	}
	if _, err := stdout.Write(payload); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitFailure
	}
	return ExitOK
}

// ExitCode maps an unpack error to a helper exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, kerrors.ErrCarrierPayloadMissing):
		return ExitPayloadMissing
	case errors.Is(err, kerrors.ErrInvalidImage):
		return ExitInvalidImage
	}
	return ExitFailure
}
