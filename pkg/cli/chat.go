package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var cfg conversationConfig

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Start an interactive conversation on the terminal",
		Flags:   cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			deps, err := cfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer deps.close(ctx)

			conv := deps.newConversation(deps.profile.UserID)
			driver := usecase.NewDriver(conv, os.Stdin, os.Stdout,
				usecase.WithAssistantName(deps.profile.AssistantName),
			)
			runErr := driver.Run(ctx)

			if err := conv.Close(context.WithoutCancel(ctx)); err != nil {
				return goerr.Wrap(err, "failed to finish memory write-back")
			}
			return runErr
		},
	}
}
