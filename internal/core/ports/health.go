package ports

import "context"

// Dependency names reported under "dependencies" by GET /health. Storage
// names match the storage.driver config values.
const (
	DependencyPostgres = "postgres"
	DependencyBolt     = "bolt"
	DependencyRedis    = "redis"
)

// HealthChecker is a dependency checked by the health endpoint. A non-nil
// Ping error marks the service degraded.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}
