package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/repository/firestore"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/secmon-lab/recall/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the Firestore vector index for stored memories",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("RECALL_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Value:       "(default)",
				Sources:     cli.EnvVars("RECALL_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"project_id", projectID,
				"database_id", databaseID,
				"collection", firestore.MemoriesCollection,
				"dimension", model.EmbeddingDimension,
				"dry_run", dryRun)

			client, err := fireconf.New(ctx, projectID, databaseID, getIndexConfig(),
				fireconf.WithLogger(logger),
				fireconf.WithDryRun(dryRun),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client",
					goerr.V("project_id", projectID),
					goerr.V("database_id", databaseID),
				)
			}
			defer safe.Close(ctx, client)

			if dryRun {
				logger.Info("Dry run mode - previewing changes")
			} else {
				logger.Info("Applying migrations")
			}
			if err := client.Migrate(ctx); err != nil {
				return goerr.Wrap(err, "failed to apply migrations", goerr.V("dry_run", dryRun))
			}
			logger.Info("Migrations completed", "dry_run", dryRun)

			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration. Facts live in
// users/{user}/memories and are searched by FindNearest on the embedding.
func getIndexConfig() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.MemoriesCollection,
				Indexes: []fireconf.Index{
					{
						Fields: []fireconf.IndexField{
							{
								Path: firestore.EmbeddingField,
								Vector: &fireconf.VectorConfig{
									Dimension: model.EmbeddingDimension,
								},
							},
						},
					},
				},
			},
		},
	}
}
