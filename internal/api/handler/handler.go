package handler

import (
	"context"
	"log/slog"

	"github.com/campuslink/portal-sync/internal/api/storage"
	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/internal/portal"
	"github.com/campuslink/portal-sync/shared/postgresql"
	"github.com/campuslink/portal-sync/shared/rabbitmq"
)

// SyncEnqueuer creates and dispatches sync jobs.
type SyncEnqueuer interface {
	Enqueue(ctx context.Context, userID int64, kind domain.JobKind) (*domain.Job, error)
}

// JobQueries is the read surface for job status endpoints.
type JobQueries interface {
	GetJobByID(ctx context.Context, jobID int64) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
}

// CredentialSaver caches portal credentials for upcoming sync jobs.
type CredentialSaver interface {
	Save(ctx context.Context, userID int64, creds portal.Credentials) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Enqueuer     SyncEnqueuer
	Queries      JobQueries
	Credentials  CredentialSaver
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// SyncHandler handles sync-related HTTP requests
type SyncHandler struct {
	logger      *slog.Logger
	enqueuer    SyncEnqueuer
	queries     JobQueries
	credentials CredentialSaver
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(deps *Dependencies) *SyncHandler {
	return &SyncHandler{
		logger:      deps.Logger,
		enqueuer:    deps.Enqueuer,
		queries:     deps.Queries,
		credentials: deps.Credentials,
	}
}
