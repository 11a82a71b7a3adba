package ratelimit

import "go.uber.org/fx"

// Module provides a *ProvisionLimiter, nil when RATE_LIMIT_ENABLED is off.
var Module = fx.Module("ratelimit", fx.Provide(Provide))
