package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teranos/qconsole/am"
	"github.com/teranos/qconsole/console"
	"github.com/teranos/qconsole/display"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/kernel"
	"github.com/teranos/qconsole/logger"
	"github.com/teranos/qconsole/sym"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// RunCmd starts the interactive console
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: sym.Prompt + " Start an interactive console",
	Long: sym.Prompt + ` run - interactive console over stdin

Each line is executed in the interpreter. A line ending with ':' or '\'
opens a block that runs when an empty line is entered.

Meta-commands:
  :complete <text>   Show suggestions for text
  :reset             Restart the interpreter
  :stats             Interpreter resource usage
  :schema            Harvested SQL metadata
  :config            Effective configuration
  :help              List meta-commands
  :quit              Leave`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithComponent(ctx, "run")

	s, err := startSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warnw("Session close failed", logger.FieldError, err)
		}
	}()
	stop := watchSchema(ctx, s)
	defer stop()

	r := newREPL(s, cmd.InOrStdin(), cmd.OutOrStdout())
	r.interactive = isTerminal(cmd.InOrStdin())
	r.interrupt = true
	return r.run(ctx)
}

// repl is the line-oriented loop behind the run command.
type repl struct {
	session *console.Session
	in      *bufio.Scanner
	out     io.Writer

	// interactive enables prompts and the banner.
	interactive bool
	// interrupt makes Ctrl-C cancel the running execution instead of
	// killing the console.
	interrupt bool
	// width and height bound the :complete dropdown.
	width, height int
}

func newREPL(s *console.Session, in io.Reader, out io.Writer) *repl {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &repl{
		session: s,
		in:      sc,
		out:     out,
		width:   80,
		height:  24,
	}
}

func (r *repl) run(ctx context.Context) error {
	if r.interactive {
		r.banner()
		r.width, r.height = pterm.GetTerminalWidth(), pterm.GetTerminalHeight()
	}

	var block []string
	for {
		if block == nil {
			r.prompt(sym.Prompt)
		} else {
			r.prompt(sym.Continuation)
		}
		if !r.in.Scan() {
			if block != nil {
				r.submit(ctx, strings.Join(block, "\n"))
			}
			if err := r.in.Err(); err != nil {
				return errors.Wrap(err, "failed to read input")
			}
			return nil
		}
		line := r.in.Text()

		if block != nil {
			if strings.TrimSpace(line) == "" {
				r.submit(ctx, strings.Join(block, "\n"))
				block = nil
				continue
			}
			block = append(block, line)
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, ":"):
			if quit := r.meta(ctx, trimmed); quit {
				return nil
			}
		case opensBlock(line):
			block = []string{line}
		default:
			r.submit(ctx, line)
		}
	}
}

// opensBlock reports whether line starts a multi-line block.
func opensBlock(line string) bool {
	line = strings.TrimRight(line, " \t")
	return strings.HasSuffix(line, ":") || strings.HasSuffix(line, `\`)
}

func (r *repl) prompt(glyph string) {
	if r.interactive {
		fmt.Fprintf(r.out, "%s ", pterm.LightBlue(glyph))
	}
}

func (r *repl) banner() {
	info := r.session.Kernel().Info()
	fmt.Fprintf(r.out, "%s %s %s\n", pterm.Cyan(sym.Kernel), info.DisplayName,
		pterm.Gray(fmt.Sprintf("(%s, session %s)", info.Interpreter, info.ID)))
	fmt.Fprintln(r.out, pterm.Gray("Type :help for meta-commands."))
}

func (r *repl) submit(ctx context.Context, code string) {
	if r.interrupt {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
	}

	res, err := r.session.Submit(ctx, code)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = errors.WithHint(err, "the interpreter was stopped; restart it with :reset")
		}
		renderError(r.out, err)
		return
	}
	renderResult(r.out, res)
}

// meta runs a meta-command line and reports whether the loop should end.
func (r *repl) meta(ctx context.Context, line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	name = sym.Canonical(name)
	if !sym.IsCommand(name) {
		renderError(r.out, errors.WithHint(errors.Newf("unknown command %s", name), "type :help for meta-commands"))
		return false
	}

	switch name {
	case ":quit":
		return true
	case ":help":
		renderHelp(r.out)
	case ":reset":
		if err := r.session.Reset(ctx); err != nil {
			renderError(r.out, err)
			return false
		}
		fmt.Fprintf(r.out, "%s %s\n", pterm.Cyan(sym.Kernel), "interpreter restarted")
	case ":stats":
		r.stats(ctx)
	case ":complete":
		w := r.session.Refresh(rest, len(rest))
		renderSuggestions(r.out, r.session.Engine(), w, r.width, r.height)
		r.session.Engine().Hide()
	case ":schema":
		renderSchema(r.out, r.session.Metadata().SQL, r.session.Registry().Len())
	case ":config":
		if _, err := am.Load(); err != nil {
			renderError(r.out, err)
			return false
		}
		if err := display.Write(r.out, am.GetViper().AllSettings(), display.FormatTOML); err != nil {
			renderError(r.out, err)
		}
	}
	return false
}

// statser is implemented by kernels backed by a local process.
type statser interface {
	Stats(ctx context.Context) (kernel.Usage, error)
}

func (r *repl) stats(ctx context.Context) {
	k, ok := r.session.Kernel().(statser)
	if !ok {
		renderError(r.out, errors.New("resource usage is not available for this kernel"))
		return
	}
	u, err := k.Stats(ctx)
	if err != nil {
		renderError(r.out, err)
		return
	}
	renderUsage(r.out, u)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
