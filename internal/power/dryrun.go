package power

import (
	"context"

	"codeberg.org/mutker/yubikill/internal/logger"
)

// DryRunExecutor only logs the action it would have taken.
type DryRunExecutor struct {
	logger logger.Logger
}

func NewDryRunExecutor(log logger.Logger) *DryRunExecutor {
	return &DryRunExecutor{logger: log}
}

func (e *DryRunExecutor) Execute(_ context.Context, action Action) error {
	e.logger.Warn().Str("action", action.String()).Msg("Dry run: terminal action skipped")
	return nil
}
