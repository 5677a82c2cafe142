package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/pipeline"
	"github.com/sells-group/bursa-cli/internal/store"
)

// newEnv validates the config for each mode and opens the run journal. The
// returned func stops the browser and closes the journal.
func newEnv(ctx context.Context, modes ...string) (*pipeline.Env, func(), error) {
	for _, m := range modes {
		if err := cfg.Validate(m); err != nil {
			return nil, nil, err
		}
	}

	journal, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	env := pipeline.NewEnv(cfg, journal)
	env.Progress = newProgress
	return env, func() {
		if err := env.Close(); err != nil {
			zap.L().Warn("close browser", zap.Error(err))
		}
		journal.Close() //nolint:errcheck
	}, nil
}
