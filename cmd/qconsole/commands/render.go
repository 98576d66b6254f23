package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/teranos/qconsole/complete"
	"github.com/teranos/qconsole/console"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/harvest"
	"github.com/teranos/qconsole/kernel"
	"github.com/teranos/qconsole/sym"
)

// renderResult prints the outputs of one execution in order.
func renderResult(w io.Writer, res *kernel.ExecutionResult) {
	for _, out := range res.Outputs {
		switch out.Kind {
		case kernel.OutputStdout:
			for _, line := range splitLines(out.Text) {
				fmt.Fprintf(w, "%s %s\n", pterm.Gray(sym.Stdout), line)
			}
		case kernel.OutputResult:
			lines := splitLines(out.Text)
			fmt.Fprintf(w, "%s %s\n", pterm.LightGreen(sym.Result), lines[0])
			for _, line := range lines[1:] {
				fmt.Fprintf(w, "  %s\n", line)
			}
		case kernel.OutputError:
			renderExecutionError(w, out.Err)
		}
	}
}

func renderExecutionError(w io.Writer, e *kernel.ExecutionError) {
	if e == nil {
		return
	}
	for _, line := range e.Traceback {
		for _, l := range splitLines(line) {
			fmt.Fprintf(w, "  %s\n", pterm.Gray(l))
		}
	}
	fmt.Fprintf(w, "%s %s\n", pterm.Red(sym.Error), e.Error())
}

// renderError prints a kernel or command failure with its hints.
func renderError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", pterm.Red(sym.Error), err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "  %s\n", pterm.Gray("hint: "+hint))
	}
}

// renderSuggestions prints the visible suggestion window for w, or a note
// when there is nothing to show.
func renderSuggestions(out io.Writer, e *complete.Engine, w console.Word, width, height int) {
	d, ok := e.Layout(0, 0, height, width)
	if !ok {
		fmt.Fprintf(out, "%s %s\n", pterm.Gray(sym.Complete), pterm.Gray("no suggestions"))
		return
	}

	label := w.Prefix
	if w.Base != "" {
		label = w.Base + "." + w.Prefix
	}
	fmt.Fprintf(out, "%s %s %s\n", pterm.Cyan(sym.Complete), label,
		pterm.Gray(fmt.Sprintf("[%s, %d of %d]", e.Tier(), len(d.Entries), len(e.Suggestions()))))
	for i, line := range d.Lines() {
		if d.Entries[i].Selected {
			fmt.Fprintf(out, "  %s\n", pterm.LightCyan(line))
			continue
		}
		fmt.Fprintf(out, "  %s\n", line)
	}
}

// renderSchema summarises harvested SQL metadata.
func renderSchema(w io.Writer, md harvest.SQLMetadata, providers int) {
	fmt.Fprintf(w, "%s %d tables, %d columns, %d functions %s\n", pterm.Cyan(sym.Schema),
		len(md.Tables), len(md.Columns), len(md.Functions),
		pterm.Gray(fmt.Sprintf("(%d host sources)", providers)))
	for _, table := range md.Tables {
		var cols []string
		for _, c := range md.Columns {
			if rest, ok := strings.CutPrefix(c, table+"."); ok {
				cols = append(cols, rest)
			}
		}
		fmt.Fprintf(w, "  %s %s\n", table, pterm.Gray("("+strings.Join(cols, ", ")+")"))
	}
}

// renderUsage prints a process resource snapshot.
func renderUsage(w io.Writer, u kernel.Usage) {
	fmt.Fprintf(w, "%s pid %d\n", pterm.Cyan(sym.Stats), u.PID)
	fmt.Fprintf(w, "  rss     %s\n", humanize.IBytes(u.RSSBytes))
	fmt.Fprintf(w, "  vms     %s\n", humanize.IBytes(u.VMSBytes))
	fmt.Fprintf(w, "  memory  %.1f%%\n", u.MemoryPercent)
	fmt.Fprintf(w, "  cpu     %.1f%%\n", u.CPUPercent)
	fmt.Fprintf(w, "  threads %d\n", u.Threads)
}

// renderHelp lists meta-commands.
func renderHelp(w io.Writer) {
	for _, c := range sym.Commands {
		fmt.Fprintf(w, "%s %-10s %s\n", sym.CommandGlyph[c], c, pterm.Gray(sym.CommandDescriptions[c]))
	}
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
