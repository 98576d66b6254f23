// Package kernel runs submitted code in a long-lived interpreter subprocess.
//
// The child speaks a line-framed protocol on its standard streams. After a
// one-line handshake, each request is the code framed by ExecStart and
// ExecEnd lines. The reply is a sequence of blocks, each an OutputStart
// line, one JSON object and an OutputEnd line. Side-channel blocks carry
// harvested namespace metadata; a result, success or error block ends the
// reply.
//
// Usage:
//
//	k := kernel.New(kernel.DefaultConfig(), kernel.WithLogger(log))
//	if err := k.Connect(ctx); err != nil {
//	    return err
//	}
//	defer k.Close()
//
//	res, err := k.Execute(ctx, "2+2")
package kernel

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/qconsole/am"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
)

// Kernel executes code and reports harvested metadata.
type Kernel interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, code string) (*ExecutionResult, error)
	Disconnect() error
	IsConnected() bool
	Info() KernelInfo
}

// Config describes the interpreter to spawn.
type Config struct {
	Name        string
	DisplayName string
	// Interpreter is a shell-quoted command line such as "python3" or
	// "uv run python".
	Interpreter string
	// Script replaces the embedded companion source.
	Script string
	// Args replaces the "-u -c <script>" arguments entirely when non-nil.
	Args []string
	// Env holds extra KEY=VALUE pairs for the child.
	Env []string
	// StartupTimeout bounds the handshake. Zero waits forever.
	StartupTimeout time.Duration
	// ExecTimeout bounds each Execute. Zero waits forever.
	ExecTimeout time.Duration
}

// DefaultConfig returns a CPython kernel with a 30 second handshake limit.
func DefaultConfig() Config {
	return Config{
		Name:           "python3",
		DisplayName:    "Python 3",
		Interpreter:    "python3",
		StartupTimeout: 30 * time.Second,
	}
}

// ConfigFrom converts the [kernel] configuration section.
func ConfigFrom(c am.KernelConfig) Config {
	cfg := Config{
		Name:           c.Name,
		DisplayName:    c.DisplayName,
		Interpreter:    c.Interpreter,
		Env:            append([]string(nil), c.Env...),
		StartupTimeout: time.Duration(c.StartupTimeoutSeconds) * time.Second,
		ExecTimeout:    time.Duration(c.ExecTimeoutSeconds) * time.Second,
	}
	if env, err := c.Environment(); err == nil {
		cfg.Env = env
	} else {
		logger.Logger.Warnw("Kernel env file unreadable, using kernel.env only",
			logger.FieldFile, c.EnvFile, logger.FieldError, err)
	}
	if c.Script != "" {
		if src, err := os.ReadFile(c.Script); err == nil {
			cfg.Script = string(src)
		} else {
			logger.Logger.Warnw("Companion script unreadable, using embedded script",
				logger.FieldFile, c.Script, logger.FieldError, err)
		}
	}
	return cfg
}

// Option configures a Subprocess.
type Option func(*Subprocess)

// WithLogger sets the log sink. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(k *Subprocess) {
		k.logger = logger.OrNop(l)
	}
}

// WithTrace logs every protocol line read from the interpreter at debug
// level.
func WithTrace(on bool) Option {
	return func(k *Subprocess) {
		k.trace = on
	}
}

// WithCommandFactory replaces exec.Command for spawning the interpreter.
func WithCommandFactory(f CommandFactory) Option {
	return func(k *Subprocess) {
		if f != nil {
			k.newCommand = f
		}
	}
}

// Subprocess is a Kernel backed by one child process. Execute calls are
// serialized; cancel the context passed to Execute to interrupt one.
type Subprocess struct {
	cfg        Config
	info       KernelInfo
	logger     *zap.SugaredLogger
	newCommand CommandFactory
	trace      bool

	mu     sync.Mutex
	proc   *child
	stdin  io.WriteCloser
	stdout *os.File
	lines  *lineChannel
	count  int

	connected atomic.Bool
	pid       atomic.Int64
}

var _ Kernel = (*Subprocess)(nil)

// New creates a disconnected kernel.
func New(cfg Config, opts ...Option) *Subprocess {
	k := &Subprocess{
		cfg:        cfg,
		info:       newInfo(cfg),
		logger:     logger.Nop(),
		newCommand: exec.Command,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With(logger.FieldSessionID, k.info.ID, logger.FieldKernel, k.info.Name)
	return k
}

// Info returns the kernel's identity.
func (k *Subprocess) Info() KernelInfo { return k.info }

// IsConnected reports whether a child is running. It does not block on an
// in-flight Execute.
func (k *Subprocess) IsConnected() bool { return k.connected.Load() }

// State returns the connection state.
func (k *Subprocess) State() State {
	if k.IsConnected() {
		return StateConnected
	}
	return StateDisconnected
}

// ExecutionCount returns how many Execute calls were issued.
func (k *Subprocess) ExecutionCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.count
}

// Connect spawns the interpreter and waits for its ready line. Connecting
// an already connected kernel is a no-op. On failure the child is killed
// and the kernel stays disconnected.
func (k *Subprocess) Connect(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.proc != nil {
		return nil
	}

	name, args, err := commandLine(k.cfg)
	if err != nil {
		return errors.Mark(err, errors.ErrConnection)
	}

	cmd := k.newCommand(name, args...)
	cmd.Env = childEnv(k.cfg.Env)
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.MarkConnection(err, "create stdin pipe")
	}
	// Wait closes pipes from StdoutPipe as soon as the process exits, which
	// would drop output still buffered in the pipe. Our own pipe survives.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return errors.MarkConnection(err, "create stdout pipe")
	}
	cmd.Stdout = stdoutW

	proc, err := startChild(cmd)
	stdoutW.Close()
	if err != nil {
		stdin.Close()
		stdoutR.Close()
		return errors.WithHintf(errors.MarkConnection(err, "spawn interpreter"),
			"check that %q is installed and on PATH", name)
	}

	log := k.logger.With(logger.FieldPID, proc.pid())
	log.Debugw("Interpreter spawned", logger.FieldCommand, name)

	lines := newLineChannel(stdoutR)
	fail := func(err error) error {
		stdin.Close()
		lines.close()
		proc.kill()
		stdoutR.Close()
		log.Debugw("Handshake failed", logger.FieldError, err)
		return err
	}

	hctx := ctx
	if k.cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, k.cfg.StartupTimeout)
		defer cancel()
	}

	line, err := lines.next(hctx)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return fail(errors.Mark(errors.Mark(errors.New("interpreter exited before the handshake"),
			errors.ErrProcessDied), errors.ErrConnection))
	case errors.Is(err, context.DeadlineExceeded):
		return fail(errors.Mark(errors.MarkConnection(err, "waiting for kernel ready"), errors.ErrTimeout))
	default:
		return fail(errors.MarkConnection(err, "waiting for kernel ready"))
	}

	if got := strings.TrimSpace(line); got != ReadyToken {
		return fail(errors.Mark(errors.Newf("kernel failed to start, got %q", got), errors.ErrConnection))
	}

	k.proc = proc
	k.stdin = stdin
	k.stdout = stdoutR
	k.lines = lines
	k.connected.Store(true)
	k.pid.Store(int64(proc.pid()))

	log.Infow("Kernel connected", "display_name", k.info.DisplayName)
	return nil
}

// Execute sends code to the interpreter and collects the reply. Exceptions
// raised by the code are reported in the result, not as an error. A
// protocol or I/O failure, a timeout or a cancellation disconnects the
// kernel, since the stream position is then unknown.
func (k *Subprocess) Execute(ctx context.Context, code string) (*ExecutionResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.proc == nil {
		return nil, errors.ErrNotConnected
	}

	k.count++
	log := logger.LoggerFromContext(ctx, k.logger).With(logger.FieldExecution, k.count)
	start := time.Now()

	if k.cfg.ExecTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.cfg.ExecTimeout)
		defer cancel()
	}

	if err := writeRequest(k.stdin, code); err != nil {
		k.teardownLocked()
		return nil, errors.MarkProcess(err, "write request")
	}

	res, err := k.readReply(ctx, log, newExecutionResult(k.count))
	if err != nil {
		k.teardownLocked()
		log.Debugw("Execute failed", logger.FieldError, err)
		return nil, err
	}

	log.Debugw("Execute finished",
		"success", res.Success,
		"outputs", len(res.Outputs),
		logger.FieldCount, len(res.Completions),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return res, nil
}

func (k *Subprocess) readReply(ctx context.Context, log *zap.SugaredLogger, res *ExecutionResult) (*ExecutionResult, error) {
	for {
		if err := k.awaitLine(ctx, log, OutputStart); err != nil {
			return nil, err
		}

		line, err := k.lines.next(ctx)
		if err != nil {
			return nil, k.readError(ctx, err, "inside an output block")
		}
		if k.trace {
			log.Debugw("Protocol block", logger.FieldLine, truncate(line, 512))
		}
		b, err := decodeBlock(line)
		if err != nil {
			return nil, err
		}
		if err := b.apply(res); err != nil {
			log.Debugw("Ignoring undecodable block payload", logger.FieldBlockType, b.Type, logger.FieldError, err)
		}
		done := b.terminal()
		if done && b.Type != BlockResult && b.Type != BlockSuccess && b.Type != BlockError {
			log.Debugw("Unrecognized block ends reply", logger.FieldBlockType, b.Type)
		}

		end, err := k.lines.next(ctx)
		if err != nil {
			if done && errors.Is(err, io.EOF) {
				log.Warnw("Interpreter exited after replying")
				k.teardownLocked()
				return res, nil
			}
			return nil, k.readError(ctx, err, "before the output end line")
		}
		if strings.TrimSpace(end) != OutputEnd {
			log.Debugw("Expected output end line", logger.FieldLine, truncate(end, 80))
		}

		if done {
			return res, nil
		}
	}
}

// awaitLine skips lines until one equals want.
func (k *Subprocess) awaitLine(ctx context.Context, log *zap.SugaredLogger, want string) error {
	for {
		line, err := k.lines.next(ctx)
		if err != nil {
			return k.readError(ctx, err, "while waiting for "+want)
		}
		if strings.TrimSpace(line) == want {
			return nil
		}
		log.Debugw("Skipping line outside a block", logger.FieldLine, truncate(line, 80))
	}
}

func (k *Subprocess) readError(ctx context.Context, err error, where string) error {
	switch {
	case errors.Is(err, io.EOF):
		return errors.Mark(errors.MarkProcess(io.ErrUnexpectedEOF, "kernel output ended "+where), errors.ErrProtocol)
	case ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded):
		return errors.Mark(errors.Wrap(err, "execute timed out"), errors.ErrTimeout)
	case ctx.Err() != nil:
		return errors.Wrap(err, "execute interrupted")
	default:
		return errors.MarkProcess(err, "read kernel output")
	}
}

// Disconnect closes the child's stdin, then kills it if it has not already
// exited. It always returns nil.
func (k *Subprocess) Disconnect() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.teardownLocked()
	return nil
}

// Close is Disconnect.
func (k *Subprocess) Close() error {
	return k.Disconnect()
}

func (k *Subprocess) teardownLocked() {
	if k.proc == nil {
		return
	}
	k.connected.Store(false)
	k.pid.Store(0)

	k.stdin.Close()
	k.lines.close()
	alreadyExited := k.proc.exited()
	k.proc.kill()
	k.stdout.Close()

	k.logger.Debugw("Kernel disconnected",
		logger.FieldPID, k.proc.pid(),
		"already_exited", alreadyExited)

	k.proc = nil
	k.stdin = nil
	k.stdout = nil
	k.lines = nil
}
