package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/browser/browsertest"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/scrape"
	"github.com/sells-group/bursa-cli/internal/store"
)

func targets(n int) []model.ScrapeTarget {
	out := make([]model.ScrapeTarget, n)
	for i := range out {
		id := fmt.Sprintf("%04d", i+1)
		out[i] = model.ScrapeTarget{CompanyID: id, URL: "https://example.test/" + id}
	}
	return out
}

func testRunner[T any](t *testing.T, work Work[T]) (*Runner[T], *browsertest.Launcher) {
	t.Helper()
	cfg := &config.Config{
		Browser: config.BrowserConfig{UserAgents: []string{"ua-1", "ua-2"}},
		Batch:   config.BatchConfig{Concurrency: 3},
	}
	l := browsertest.NewLauncher(nil)
	r := NewRunner(cfg, "test", browser.Launcher(l), work)
	return r, l
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	r, l := testRunner(t, func(ctx context.Context, _ browser.Page, _ model.ScrapeTarget) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return 1, nil
	})
	r.CooldownMin = 5 * time.Millisecond
	r.CooldownMax = 10 * time.Millisecond

	rep := r.Run(context.Background(), targets(10))

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(3), peak.Load())
	assert.Len(t, rep.Succeeded(), 10)
	assert.Empty(t, rep.Failed())
	assert.Equal(t, 0, l.OpenSessions())
	assert.Len(t, l.UserAgents, 10)
	for _, ua := range l.UserAgents {
		assert.Contains(t, []string{"ua-1", "ua-2"}, ua)
	}
}

func TestRunner_CooldownHoldsSlot(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	r, _ := testRunner(t, func(_ context.Context, _ browser.Page, tgt model.ScrapeTarget) (int, error) {
		mu.Lock()
		order = append(order, "work:"+tgt.CompanyID)
		mu.Unlock()
		return 0, nil
	})
	r.Concurrency = 1
	r.CooldownMin = time.Second
	r.CooldownMax = time.Second
	r.sleep = func(_ context.Context, d time.Duration) {
		mu.Lock()
		order = append(order, "cool:"+d.String())
		mu.Unlock()
	}

	r.Run(context.Background(), targets(2))
	assert.Equal(t, []string{"work:0001", "cool:1s", "work:0002", "cool:1s"}, order)
}

func TestRunner_IsolatesFailures(t *testing.T) {
	r, _ := testRunner(t, func(_ context.Context, _ browser.Page, tgt model.ScrapeTarget) (string, error) {
		switch tgt.CompanyID {
		case "0002":
			return "", scrape.NewError(scrape.KindNoRowsFound, "", errors.New("empty"))
		case "0004":
			return "", errors.New("connection reset")
		}
		return tgt.CompanyID, nil
	})
	var saved []string
	r.OnSuccess = func(tgt model.ScrapeTarget, v string) error {
		if tgt.CompanyID == "0003" {
			return errors.New("disk full")
		}
		saved = append(saved, v)
		return nil
	}
	var seen int
	r.OnOutcome = func(Outcome) { seen++ }

	rep := r.Run(context.Background(), targets(5))

	assert.ElementsMatch(t, []string{"0001", "0005"}, saved)
	assert.Equal(t, []string{"0001", "0005"}, rep.Succeeded())
	assert.Equal(t, 5, seen)
	failed := rep.Failed()
	require.Len(t, failed, 3)
	assert.Equal(t, "0002", failed[0].CompanyID)
	assert.Equal(t, scrape.KindNoRowsFound, failed[0].Kind())
	assert.Equal(t, "0002", failed[0].Err.CompanyID)
	assert.Equal(t, map[scrape.Kind]int{scrape.KindNoRowsFound: 1, scrape.KindNetworkError: 2}, rep.Counts())
	assert.False(t, rep.Cancelled)
}

func TestRunner_CancelReturnsPartialReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, l := testRunner(t, func(ctx context.Context, _ browser.Page, tgt model.ScrapeTarget) (int, error) {
		if tgt.CompanyID == "0003" {
			cancel()
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 1, nil
	})
	r.Concurrency = 1

	rep := r.Run(ctx, targets(10))

	assert.True(t, rep.Cancelled)
	assert.Equal(t, []string{"0001", "0002"}, rep.Succeeded())
	failed := rep.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, scrape.KindCancelled, failed[0].Kind())
	assert.Less(t, rep.Done(), 10)
	assert.Equal(t, 0, l.OpenSessions())
}

func TestRunner_Journal(t *testing.T) {
	j, err := store.NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() }) //nolint:errcheck
	require.NoError(t, j.Migrate(context.Background()))

	r, _ := testRunner(t, func(_ context.Context, _ browser.Page, tgt model.ScrapeTarget) (int, error) {
		if tgt.CompanyID == "0002" {
			return 0, scrape.NewError(scrape.KindNavigationFailed, "", errors.New("no tab"))
		}
		return 1, nil
	})
	r.Journal = j

	rep := r.Run(context.Background(), targets(3))

	ids, err := j.SucceededIDs(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"0001": true, "0003": true}, ids)

	runs, err := j.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)
	assert.Equal(t, store.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)
}
