// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"

	"github.com/jllopis/healthdesk/pkg/artifact"
	"github.com/jllopis/healthdesk/pkg/core"
)

// ArtifactDirCheck reports whether charts can be written to dir. Without
// it answers still work, so a failure is DEGRADED.
func ArtifactDirCheck(dir string) core.HealthChecker {
	return core.HealthCheckFunc(func(context.Context) core.HealthResult {
		if err := artifact.CheckWritable(dir); err != nil {
			return core.HealthResult{Status: core.HealthDegraded, Message: err.Error()}
		}
		return core.HealthResult{Status: core.HealthHealthy, Message: "write permissions confirmed"}
	})
}

// APIKeyCheck reports whether the model provider has a key. Providers that
// need none, such as ollama, always pass.
func APIKeyCheck(provider, key string) core.HealthChecker {
	return core.HealthCheckFunc(func(context.Context) core.HealthResult {
		if key != "" || provider == "ollama" {
			return core.HealthResult{Status: core.HealthHealthy}
		}
		return core.HealthResult{
			Status:  core.HealthUnhealthy,
			Message: "no API key configured for provider " + provider,
		}
	})
}
