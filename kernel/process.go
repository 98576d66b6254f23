package kernel

import (
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/qconsole/errors"
)

// CommandFactory builds the interpreter command. Tests substitute one that
// re-executes the test binary.
type CommandFactory func(name string, args ...string) *exec.Cmd

// child owns a started interpreter process. done is closed once Wait
// returns.
type child struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

func startChild(cmd *exec.Cmd) (*child, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	c := &child{cmd: cmd, done: make(chan struct{})}
	go func() {
		c.waitErr = c.cmd.Wait()
		close(c.done)
	}()
	return c, nil
}

func (c *child) pid() int {
	return c.cmd.Process.Pid
}

func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// kill terminates the process if it is still running and waits for it.
func (c *child) kill() {
	if !c.exited() {
		_ = c.cmd.Process.Kill()
	}
	<-c.done
}

// commandLine splits the configured interpreter with shell quoting rules
// and appends the companion arguments.
func commandLine(cfg Config) (string, []string, error) {
	parts, err := shellquote.Split(cfg.Interpreter)
	if err != nil {
		return "", nil, errors.Wrapf(err, "parse interpreter command %q", cfg.Interpreter)
	}
	if len(parts) == 0 {
		return "", nil, errors.WithHint(errors.New("interpreter command is empty"),
			"set kernel.interpreter in qconsole.toml")
	}

	args := append([]string(nil), parts[1:]...)
	switch {
	case cfg.Args != nil:
		args = append(args, cfg.Args...)
	case cfg.Script != "":
		args = append(args, "-u", "-c", cfg.Script)
	default:
		args = append(args, "-u", "-c", companionScript)
	}
	return parts[0], args, nil
}

// childEnv forces a dumb terminal so the interpreter emits no control
// sequences.
func childEnv(extra []string) []string {
	base := os.Environ()
	env := make([]string, 0, len(base)+len(extra)+1)
	for _, kv := range base {
		if strings.HasPrefix(kv, "TERM=") || strings.HasPrefix(kv, "TERM_PROGRAM=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "TERM=dumb")
	return append(env, extra...)
}
