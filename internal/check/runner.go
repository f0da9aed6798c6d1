package check

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a response body is kept as check output.
const maxBodyBytes = 1 << 20

// Runner executes checks. It is safe for concurrent use.
type Runner struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner with the standard 10 second check timeout.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		client:  &http.Client{},
		timeout: Timeout,
		logger:  logger.Named("check"),
	}
}

// Run performs the check described by cfg. It never fails: problems are
// reported through the returned Result.
func (r *Runner) Run(ctx context.Context, cfg Config) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var res Result
	switch cfg.Kind {
	case KindWeb:
		res = r.runWeb(ctx, cfg)
	case KindLocalScript:
		res = r.runScript(ctx, cfg)
	default:
		res = failed(fmt.Errorf("unsupported check kind %s", cfg.Kind))
	}

	r.logger.Debug("Check finished",
		zap.Stringer("kind", cfg.Kind),
		zap.String("target", cfg.Target),
		zap.Int("status_code", res.StatusCode),
		zap.Bool("succeeded", res.Succeeded))
	return res
}

func (r *Runner) runWeb(ctx context.Context, cfg Config) Result {
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.Target, nil)
	if err != nil {
		return failed(err)
	}
	for name, value := range cfg.Headers {
		req.Header.Set(name, value)
	}
	if cfg.Username != "" {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failed(fmt.Errorf("request timed out after %s", r.timeout))
		}
		return failed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{
			Output:     fmt.Sprintf("read response body: %v", err),
			StatusCode: resp.StatusCode,
		}
	}

	return Result{
		Output:     string(body),
		StatusCode: resp.StatusCode,
		Succeeded:  true,
	}
}

func (r *Runner) runScript(ctx context.Context, cfg Config) Result {
	if strings.TrimSpace(cfg.Target) == "" {
		return failed(errors.New("no command configured"))
	}

	cmd := shellCommand(ctx, cfg.Target)
	// Background children that inherit stdout must not hold Wait open forever
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return failed(fmt.Errorf("command timed out after %s", r.timeout))
		}
		return failed(ctxErr)
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return failed(err)
	}

	return Result{
		Output:     strings.TrimSpace(stdout.String()),
		StatusCode: cmd.ProcessState.ExitCode(),
		Succeeded:  true,
	}
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}
