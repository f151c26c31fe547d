package assist

import (
	"github.com/smallbiznis/quorum/internal/llm/orchestrator"
	"github.com/smallbiznis/quorum/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("assist",
	fx.Provide(
		func(o *orchestrator.Orchestrator) Generator { return o },
		provideLimiter,
		New,
	),
)

// provideLimiter hides a nil *AssistLimiter behind a nil interface.
func provideLimiter(l *ratelimit.AssistLimiter) Limiter {
	if !l.Enabled() {
		return nil
	}
	return l
}
