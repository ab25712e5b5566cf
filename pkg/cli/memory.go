package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/cli/config"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdMemory() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Inspect facts stored for a user",
		Commands: []*cli.Command{
			cmdMemorySearch(),
			cmdMemoryList(),
			cmdMemoryDelete(),
		},
	}
}

// memoryFlags are shared by the memory subcommands
type memoryFlags struct {
	repository config.Repository
	embedding  config.Embedding
	userID     string
	asJSON     bool
}

func (m *memoryFlags) Flags(withEmbedding bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "Owner of the facts",
			Value:       model.DefaultUserID.String(),
			Sources:     cli.EnvVars("RECALL_USER_ID"),
			Destination: &m.userID,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print results as JSON",
			Destination: &m.asJSON,
		},
	}
	flags = append(flags, m.repository.Flags()...)
	if withEmbedding {
		flags = append(flags, m.embedding.Flags()...)
	}
	return flags
}

func (m *memoryFlags) user() (model.UserID, error) {
	user := model.UserID(m.userID)
	if err := user.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid user ID")
	}
	return user, nil
}

func cmdMemorySearch() *cli.Command {
	var flags memoryFlags
	var limit int

	return &cli.Command{
		Name:      "search",
		Usage:     "Retrieve the facts most relevant to a query",
		ArgsUsage: "<query>",
		Flags: append(flags.Flags(true), &cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of facts",
			Value:       model.MemorySearchLimit,
			Destination: &limit,
		}),
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return goerr.New("query is required")
			}
			user, err := flags.user()
			if err != nil {
				return err
			}

			repo, err := flags.repository.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer closeRepository(ctx, repo)

			index, err := flags.embedding.Configure(ctx, repo)
			if err != nil {
				return goerr.Wrap(err, "failed to configure memory index")
			}
			defer index.Close()

			facts, err := index.Search(ctx, query, user, limit)
			if err != nil {
				return goerr.Wrap(err, "failed to search memories", goerr.V("user_id", user))
			}

			if flags.asJSON {
				return writeJSON(os.Stdout, facts)
			}
			return printFacts(os.Stdout, facts)
		},
	}
}

func cmdMemoryList() *cli.Command {
	var flags memoryFlags

	return &cli.Command{
		Name:  "list",
		Usage: "List stored facts, newest first",
		Flags: flags.Flags(false),
		Action: func(ctx context.Context, c *cli.Command) error {
			user, err := flags.user()
			if err != nil {
				return err
			}

			repo, err := flags.repository.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer closeRepository(ctx, repo)

			memories, err := repo.List(ctx, user)
			if err != nil {
				return goerr.Wrap(err, "failed to list memories",
					goerr.V("user_id", user),
					goerr.V("backend", flags.repository.Backend()),
				)
			}

			if flags.asJSON {
				return writeJSON(os.Stdout, toMemoryViews(memories))
			}
			return printMemories(os.Stdout, memories)
		},
	}
}

func cmdMemoryDelete() *cli.Command {
	var flags memoryFlags

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a stored fact",
		ArgsUsage: "<memory-id>",
		Flags:     flags.Flags(false),
		Action: func(ctx context.Context, c *cli.Command) error {
			id := model.MemoryID(c.Args().First())
			if id == "" {
				return goerr.New("memory ID is required")
			}
			user, err := flags.user()
			if err != nil {
				return err
			}

			repo, err := flags.repository.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer closeRepository(ctx, repo)

			if err := repo.Delete(ctx, user, id); err != nil {
				return goerr.Wrap(err, "failed to delete memory", goerr.V("user_id", user), goerr.V("memory_id", id))
			}
			_, err = fmt.Fprintf(os.Stdout, "deleted %s\n", id)
			return err
		},
	}
}

type memoryView struct {
	ID        model.MemoryID `json:"id"`
	Claim     string         `json:"claim"`
	CreatedAt string         `json:"created_at"`
}

func toMemoryViews(memories []*model.Memory) []memoryView {
	views := make([]memoryView, len(memories))
	for i, m := range memories {
		views[i] = memoryView{
			ID:        m.ID,
			Claim:     m.Claim,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}
	return views
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

func printFacts(w io.Writer, facts []model.Fact) error {
	if len(facts) == 0 {
		_, err := fmt.Fprintln(w, "No memories found")
		return err
	}
	for _, f := range facts {
		if _, err := fmt.Fprintf(w, "- %s\n", f.Text); err != nil {
			return err
		}
	}
	return nil
}

func printMemories(w io.Writer, memories []*model.Memory) error {
	if len(memories) == 0 {
		_, err := fmt.Fprintln(w, "No memories found")
		return err
	}
	dim := color.New(color.Faint)
	for _, m := range memories {
		if _, err := fmt.Fprintf(w, "%s %s %s\n",
			dim.Sprint(m.CreatedAt.Format("2006-01-02 15:04")),
			dim.Sprint(m.ID),
			m.Claim,
		); err != nil {
			return err
		}
	}
	return nil
}
