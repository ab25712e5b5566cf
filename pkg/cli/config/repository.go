package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/repository/chromem"
	"github.com/secmon-lab/recall/pkg/repository/firestore"
	"github.com/secmon-lab/recall/pkg/repository/memory"
	"github.com/secmon-lab/recall/pkg/repository/postgres"
	"github.com/secmon-lab/recall/pkg/repository/qdrant"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendChromem   = "chromem"
	BackendPostgres  = "postgres"
	BackendQdrant    = "qdrant"
)

// Repository holds CLI flags for the fact store backend
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	chromemPath      string
	PostgresURL      string `masq:"secret"`
	qdrantHost       string
	qdrantPort       int
	QdrantAPIKey     string `masq:"secret"`
	qdrantTLS        bool
	qdrantCollection string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Fact store backend (memory, firestore, chromem, postgres, qdrant)",
			Category:    "Repository",
			Value:       BackendMemory,
			Sources:     cli.EnvVars("RECALL_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECALL_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECALL_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of the top-level Firestore collection",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECALL_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "chromem-path",
			Usage:       "Directory persisting the chromem database. Empty keeps it in memory",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECALL_CHROMEM_PATH"),
			Destination: &r.chromemPath,
		},
		&cli.StringFlag{
			Name:        "postgres-url",
			Usage:       "PostgreSQL connection URL (pgvector extension required)",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECALL_POSTGRES_URL"),
			Destination: &r.PostgresURL,
		},
		&cli.StringFlag{
			Name:        "qdrant-host",
			Usage:       "Qdrant gRPC host",
			Category:    "Repository",
			Value:       "localhost",
			Sources:     cli.EnvVars("RECALL_QDRANT_HOST"),
			Destination: &r.qdrantHost,
		},
		&cli.IntFlag{
			Name:        "qdrant-port",
			Usage:       "Qdrant gRPC port",
			Category:    "Repository",
			Value:       6334,
			Sources:     cli.EnvVars("RECALL_QDRANT_PORT"),
			Destination: &r.qdrantPort,
		},
		&cli.StringFlag{
			Name:        "qdrant-api-key",
			Usage:       "Qdrant API key",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECALL_QDRANT_API_KEY"),
			Destination: &r.QdrantAPIKey,
		},
		&cli.BoolFlag{
			Name:        "qdrant-tls",
			Usage:       "Connect to Qdrant over TLS",
			Category:    "Repository",
			Sources:     cli.EnvVars("RECALL_QDRANT_TLS"),
			Destination: &r.qdrantTLS,
		},
		&cli.StringFlag{
			Name:        "qdrant-collection",
			Usage:       "Qdrant collection holding facts",
			Category:    "Repository",
			Value:       "recall_memories",
			Sources:     cli.EnvVars("RECALL_QDRANT_COLLECTION"),
			Destination: &r.qdrantCollection,
		},
	}
}

func (r *Repository) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", r.backend),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
		slog.String("chromem_path", r.chromemPath),
		slog.String("qdrant_host", r.qdrantHost),
		slog.Int("qdrant_port", r.qdrantPort),
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.FactRepository, error) {
	logger := logging.From(ctx)

	switch r.backend {
	case BackendMemory:
		logger.Info("Using in-memory fact repository (development mode)")
		return memory.New(), nil

	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrMissingOption, "firestore-project-id is required when using firestore backend", goerr.V(OptionKey, "firestore-project-id"))
		}
		var opts []firestore.Option
		if r.collectionPrefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.collectionPrefix))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logger.Info("Using Firestore fact repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case BackendChromem:
		repo, err := chromem.New(r.chromemPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize chromem repository")
		}
		logger.Info("Using chromem fact repository", "path", r.chromemPath)
		return repo, nil

	case BackendPostgres:
		if r.PostgresURL == "" {
			return nil, goerr.Wrap(ErrMissingOption, "postgres-url is required when using postgres backend", goerr.V(OptionKey, "postgres-url"))
		}
		repo, err := postgres.New(ctx, r.PostgresURL)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize postgres repository")
		}
		logger.Info("Using PostgreSQL fact repository")
		return repo, nil

	case BackendQdrant:
		repo, err := qdrant.New(ctx, qdrant.Config{
			Host:       r.qdrantHost,
			Port:       r.qdrantPort,
			APIKey:     r.QdrantAPIKey,
			UseTLS:     r.qdrantTLS,
			Collection: r.qdrantCollection,
			Dimension:  model.EmbeddingDimension,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize qdrant repository")
		}
		logger.Info("Using Qdrant fact repository",
			"host", r.qdrantHost,
			"port", r.qdrantPort,
			"collection", r.qdrantCollection,
		)
		return repo, nil

	default:
		return nil, goerr.Wrap(ErrUnknownBackend, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}
