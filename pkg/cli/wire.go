package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/cli/config"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/service/memindex"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/secmon-lab/recall/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// conversationConfig groups the settings every conversation command needs
type conversationConfig struct {
	generation     config.Generation
	embedding      config.Embedding
	repository     config.Repository
	persona        config.Persona
	asyncWriteBack bool
}

func (c *conversationConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, c.persona.Flags()...)
	flags = append(flags, c.generation.Flags()...)
	flags = append(flags, c.embedding.Flags()...)
	flags = append(flags, c.repository.Flags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "async-write-back",
		Usage:       "Update memory in the background after each reply",
		Category:    "Memory",
		Sources:     cli.EnvVars("RECALL_ASYNC_WRITE_BACK"),
		Destination: &c.asyncWriteBack,
	})
	return flags
}

// components are the long-lived collaborators shared by conversations
type components struct {
	profile   *config.Profile
	repo      interfaces.FactRepository
	index     *memindex.Index
	generator interfaces.Generator
	opts      []usecase.ConversationOption
}

func (c *conversationConfig) build(ctx context.Context, set config.FlagSet) (*components, error) {
	profile, err := c.persona.Configure(set)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load persona")
	}
	c.generation.Apply(profile.Model, set)

	logging.From(ctx).Info("Conversation configuration",
		slog.GroupAttrs("persona", c.persona.LogAttrs()...),
		slog.GroupAttrs("generation", c.generation.LogAttrs()...),
		slog.GroupAttrs("memory", c.embedding.LogAttrs()...),
		slog.GroupAttrs("repository", c.repository.LogAttrs()...),
	)

	generator, err := c.generation.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure generator")
	}

	repo, err := c.repository.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	index, err := c.embedding.Configure(ctx, repo)
	if err != nil {
		closeRepository(ctx, repo)
		return nil, goerr.Wrap(err, "failed to configure memory index")
	}

	return &components{
		profile:   profile,
		repo:      repo,
		index:     index,
		generator: generator,
		opts: []usecase.ConversationOption{
			usecase.WithPersona(profile.Persona),
			usecase.WithGenerationTimeout(c.generation.Timeout()),
			usecase.WithAsyncWriteBack(c.asyncWriteBack),
		},
	}, nil
}

func (x *components) newConversation(user model.UserID) *usecase.Conversation {
	return usecase.NewConversation(x.index, x.generator, user, x.opts...)
}

func (x *components) close(ctx context.Context) {
	x.index.Close()
	closeRepository(ctx, x.repo)
}

func closeRepository(ctx context.Context, repo interfaces.FactRepository) {
	safe.Close(ctx, repo)
}
