package kubectl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of a kubectl invocation that ran to completion.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// CommandError is returned when kubectl exits non-zero.
type CommandError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("kubectl %s: %s", strings.Join(e.Args, " "), msg)
}

// Runner invokes kubectl. An error means kubectl could not be run at all;
// a non-zero exit is reported through Result.Code.
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// ExecRunner runs the kubectl binary found at Path.
type ExecRunner struct {
	Path       string
	Kubeconfig string
	Context    string
	Log        logrus.FieldLogger
}

func NewExecRunner(path string) *ExecRunner {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return &ExecRunner{
		Path: path,
		Log:  logger,
	}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (Result, error) {
	path := r.Path
	if path == "" {
		path = "kubectl"
	}

	var global []string
	if r.Kubeconfig != "" {
		global = append(global, "--kubeconfig", r.Kubeconfig)
	}
	if r.Context != "" {
		global = append(global, "--context", r.Context)
	}
	full := append(global, args...)

	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("args", strings.Join(full, " ")).Debug("running kubectl")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.Code = exitErr.ExitCode()
		log.WithFields(logrus.Fields{"args": strings.Join(full, " "), "code": result.Code}).Debug("kubectl failed")
	default:
		return result, fmt.Errorf("unable to run kubectl: %w", err)
	}
	return result, nil
}
