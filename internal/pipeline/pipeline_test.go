package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/load"
	"github.com/sells-group/bursa-cli/internal/monitoring"
)

func stepNames(stages []Stage) []string {
	var out []string
	for _, s := range stages {
		for _, st := range s.Steps {
			out = append(out, s.Name+"/"+st.Name)
		}
	}
	return out
}

func TestStages_Order(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"listing/listing",
		"urls/urls",
		"scrape/balance",
		"scrape/cashflow",
		"scrape/income",
		"scrape/market",
		"scrape/profile",
		"match/match",
		"combine/combine",
		"load/load",
	}, stepNames(Stages(load.Append)))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	all := Stages(load.Append)

	got, err := Select(all, "")
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	got, err = Plan(Options{Only: "scrape"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Parallel)
	assert.Len(t, got[0].Steps, 5)

	got, err = Select(all, " income ")
	require.NoError(t, err)
	assert.Equal(t, []string{"scrape/income"}, stepNames(got))

	got, err = Select(all, "load")
	require.NoError(t, err)
	assert.Equal(t, []string{"load/load"}, stepNames(got))

	_, err = Select(all, "deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown stage or step "deploy"`)
	assert.Contains(t, err.Error(), "cashflow")
}

func TestRun_FailedStepDoesNotStopLaterSteps(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	step := func(name string, err error) Step {
		return Step{Name: name, Run: func(context.Context, *Env) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return err
		}}
	}

	results, err := Run(context.Background(), &Env{}, []Stage{
		{Name: "a", Steps: []Step{step("a", nil)}},
		{Name: "b", Steps: []Step{step("b", errors.New("boom"))}},
		{Name: "c", Steps: []Step{step("c", nil)}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: step b")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"a", "b", "c"}, order)

	require.Len(t, results, 3)
	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, StatusOK, results[2].Status)
}

func TestRun_ParallelStageRunsTogether(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	release := make(chan struct{})
	started := make(chan struct{}, 3)
	step := func(name string) Step {
		return Step{Name: name, Run: func(context.Context, *Env) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			started <- struct{}{}
			<-release
			inFlight.Add(-1)
			return nil
		}}
	}

	go func() {
		for range 3 {
			<-started
		}
		close(release)
	}()

	results, err := Run(context.Background(), &Env{}, []Stage{
		{Name: "scrape", Parallel: true, Steps: []Step{step("x"), step("y"), step("z")}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, int32(3), peak.Load())
}

func TestRun_CancelSkipsRemainingStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran []string
	results, err := Run(ctx, &Env{}, []Stage{
		{Name: "a", Steps: []Step{{Name: "a", Run: func(context.Context, *Env) error {
			ran = append(ran, "a")
			cancel()
			return nil
		}}}},
		{Name: "b", Steps: []Step{{Name: "b", Run: func(context.Context, *Env) error {
			ran = append(ran, "b")
			return nil
		}}}},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, ran)
	require.Len(t, results, 2)
	assert.Equal(t, StatusSkipped, results[1].Status)
}

func TestRun_RecordsDuration(t *testing.T) {
	results, err := Run(context.Background(), &Env{}, []Stage{
		{Name: "a", Steps: []Step{{Name: "a", Run: func(context.Context, *Env) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		}}}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Duration, 5*time.Millisecond)
}

func TestRun_AlertsOnStepFailure(t *testing.T) {
	alerts := make(chan monitoring.Alert, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a monitoring.Alert
		if err := json.NewDecoder(r.Body).Decode(&a); err == nil {
			alerts <- a
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	env := &Env{Alerts: monitoring.NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})}
	_, err := Run(context.Background(), env, []Stage{
		{Name: "match", Steps: []Step{{Name: "match", Run: func(context.Context, *Env) error {
			return errors.New("registry down")
		}}}},
	})
	require.Error(t, err)

	require.Len(t, alerts, 1)
	a := <-alerts
	assert.Equal(t, monitoring.AlertStepFailure, a.Type)
	assert.Contains(t, a.Message, "registry down")
}
