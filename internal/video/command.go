package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes one external command in dir and returns its stdout.
// Injected so the assembler is testable without ffmpeg installed.
type Runner func(ctx context.Context, dir, name string, args ...string) (string, error)

// runCommand is the production Runner. A non-zero exit surfaces the
// captured stderr (falling back to stdout) as the error message.
func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = strings.TrimSpace(stdout.String())
		}
		if message == "" {
			message = err.Error()
		}
		return "", fmt.Errorf("command failed (%s %s): %s", name, strings.Join(args, " "), message)
	}
	return stdout.String(), nil
}
