// internal/domain/notification/repository.go
package notification

import "context"

// Repository is the durable notification store: definitions keyed by id and
// an append-mostly log of deliveries.
type Repository interface {
	// Migrate installs tables/collections and indexes. Safe to call repeatedly.
	Migrate(ctx context.Context) error

	// Definition methods
	Put(ctx context.Context, def *Definition) error
	Get(ctx context.Context, id string) (*Definition, error)
	GetAll(ctx context.Context) ([]*Definition, error)

	// Log methods
	AppendLog(ctx context.Context, entry *LogEntry) error
	UpdateLog(ctx context.Context, entry *LogEntry) error
	GetLogsForDefinition(ctx context.Context, definitionID string) ([]*LogEntry, error) // ascending TriggeredAt
	LatestLogForDefinition(ctx context.Context, definitionID string) (*LogEntry, error)
}
