// Package monitoring raises webhook alerts when a scrape batch or pipeline
// step goes badly.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/batch"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/scrape"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBatchFailureRate AlertType = "batch_failure_rate"
	AlertBlocked          AlertType = "batch_blocked"
	AlertStepFailure      AlertType = "pipeline_step_failure"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates batch reports against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether alerts have somewhere to go.
func (a *Alerter) Enabled() bool {
	return a != nil && a.cfg.WebhookURL != ""
}

// Evaluate checks a finished batch and returns any alerts.
func (a *Alerter) Evaluate(rep *batch.Report) []Alert {
	if a == nil || rep == nil {
		return nil
	}
	var alerts []Alert
	now := time.Now().UTC()

	finished := rep.Done()
	failed := len(rep.Failed())
	if finished > 0 && finished >= a.cfg.MinFinished {
		rate := float64(failed) / float64(finished)
		if rate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertBatchFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"%s: failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
					rep.Command, rate*100, a.cfg.FailureRateThreshold*100, failed, finished,
				),
				Details: map[string]any{
					"run_id":       rep.RunID,
					"failure_rate": rate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       failed,
					"finished":     finished,
				},
				Timestamp: now,
			})
		}
	}

	// Network errors include anti-bot pages; a majority means the site is
	// refusing us rather than individual pages being broken.
	if blocked := rep.Counts()[scrape.KindNetworkError]; blocked > 0 && blocked*2 > finished {
		alerts = append(alerts, Alert{
			Type:     AlertBlocked,
			Severity: "critical",
			Message:  fmt.Sprintf("%s: %d of %d companies hit network or block pages", rep.Command, blocked, finished),
			Details: map[string]any{
				"run_id":  rep.RunID,
				"blocked": blocked,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// StepFailed builds the alert for a failed pipeline step.
func StepFailed(stage, step string, err error) Alert {
	return Alert{
		Type:     AlertStepFailure,
		Severity: "high",
		Message:  fmt.Sprintf("pipeline step %s/%s failed: %v", stage, step, err),
		Details: map[string]any{
			"stage": stage,
			"step":  step,
		},
		Timestamp: time.Now().UTC(),
	}
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted. Delivery failures are logged and skipped.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if !a.Enabled() || len(alerts) == 0 {
		return 0
	}

	log := zap.L().With(zap.String("component", "monitoring"))
	sent := 0
	for _, alert := range alerts {
		fields := []zap.Field{zap.String("type", string(alert.Type)), zap.String("severity", alert.Severity)}
		if err := a.post(ctx, alert); err != nil {
			log.Error("alert not delivered", append(fields, zap.Error(err))...)
			continue
		}
		log.Info("alert delivered", fields...)
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post alert")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
	}
	return nil
}
