package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/thruflo/turnlink/internal/journal"
	"github.com/thruflo/turnlink/internal/logging"
	"github.com/thruflo/turnlink/internal/nav"
	"golang.org/x/term"
)

// statusPrinter writes navigator statuses, one per line. On a terminal the
// lines are short and marked; otherwise each line carries a timestamp and
// the status kind so the output can be grepped or parsed. Statuses are also
// appended to the journal when one is set.
type statusPrinter struct {
	w           io.Writer
	interactive bool
	journal     *journal.Journal
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	interactive := false
	if f, ok := w.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &statusPrinter{w: w, interactive: interactive}
}

func (p *statusPrinter) print(st nav.Status) {
	if p.journal != nil {
		err := p.journal.Append(&journal.Entry{
			RunID: st.RunID,
			Kind:  st.Kind.String(),
			Index: st.Index,
			Text:  st.Text,
			Time:  st.Time,
		})
		if err != nil {
			logging.Warn("failed to write journal", "path", p.journal.Path(), "error", err)
		}
	}
	if p.interactive {
		mark := "›"
		if st.Failed() {
			mark = "!"
		}
		fmt.Fprintf(p.w, "%s %s\n", mark, st.Text)
		return
	}
	fmt.Fprintf(p.w, "%s %s %s\n", st.Time.UTC().Format(time.RFC3339), st.Kind, st.Text)
}

// drain prints statuses until ch is closed or done is closed, then prints
// whatever is still buffered.
func (p *statusPrinter) drain(ch <-chan nav.Status, done <-chan struct{}) {
	for {
		select {
		case st := <-ch:
			p.print(st)
		case <-done:
			for {
				select {
				case st := <-ch:
					p.print(st)
				default:
					return
				}
			}
		}
	}
}
