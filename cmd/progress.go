package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/sells-group/bursa-cli/internal/batch"
	"github.com/sells-group/bursa-cli/internal/scrape"
)

// newProgress shows a progress bar on stderr when it is a terminal. Misses
// are counted in the description.
func newProgress(desc string, total int) func(ok bool) {
	if total <= 0 || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	var (
		mu     sync.Mutex
		missed int
	)
	return func(ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if !ok {
			missed++
			bar.Describe(fmt.Sprintf("%s (%d failed)", desc, missed))
		}
		_ = bar.Add(1)
	}
}

// formatReport writes a batch summary: totals, then failures per kind.
func formatReport(out io.Writer, rep *batch.Report) {
	if rep == nil {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	failed := len(rep.Failed())
	_, _ = fmt.Fprintf(w, "Command:\t%s\n", rep.Command)
	_, _ = fmt.Fprintf(w, "Companies:\t%d\n", rep.Total)
	_, _ = fmt.Fprintf(w, "Succeeded:\t%d\n", rep.Done()-failed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", failed)

	counts := rep.Counts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", k, counts[scrape.Kind(k)])
	}
	if rep.Cancelled {
		_, _ = fmt.Fprintf(w, "Not started:\t%d\n", rep.Total-rep.Done())
	}
	_ = w.Flush()
}
