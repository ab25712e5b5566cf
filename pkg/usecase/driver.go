package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/secmon-lab/recall/pkg/utils/safe"
)

// TurnSender runs one conversation turn
type TurnSender interface {
	Send(ctx context.Context, text string) (*model.Turn, error)
}

const exitCommand = "exit"

// DefaultAssistantName labels assistant replies when no name is configured
const DefaultAssistantName = "Assistant"

// Driver is a line-oriented interactive session. Each input line is one
// turn; "exit" (any case) or end of input ends the session.
type Driver struct {
	conv TurnSender
	in   io.Reader
	out  io.Writer
	name string

	userLabel      *color.Color
	assistantLabel *color.Color
	errorLabel     *color.Color
}

type DriverOption func(*Driver)

// WithAssistantName sets the label printed before assistant replies
func WithAssistantName(name string) DriverOption {
	return func(d *Driver) {
		d.name = name
	}
}

func NewDriver(conv TurnSender, in io.Reader, out io.Writer, opts ...DriverOption) *Driver {
	d := &Driver{
		conv:           conv,
		in:             in,
		out:            out,
		name:           DefaultAssistantName,
		userLabel:      color.New(color.FgGreen, color.Bold),
		assistantLabel: color.New(color.FgCyan, color.Bold),
		errorLabel:     color.New(color.FgRed),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run reads turns until exit, end of input or context cancellation
func (d *Driver) Run(ctx context.Context) error {
	logger := logging.From(ctx)
	scanner := bufio.NewScanner(d.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	d.printf(ctx, "Chat with %s (type '%s' to quit)\n", d.name, exitCommand)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d.printf(ctx, "%s", d.userLabel.Sprint("You: "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return goerr.Wrap(err, "failed to read input")
			}
			d.printf(ctx, "\nGoodbye!\n")
			return nil
		}

		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), exitCommand) {
			d.printf(ctx, "Goodbye!\n")
			return nil
		}

		reply, err := d.conv.Send(ctx, line)
		switch {
		case errors.Is(err, ErrEmptyTurn):
			continue
		case err != nil:
			logger.Debug("turn failed", "error", err)
			d.printf(ctx, "%s %s\n", d.errorLabel.Sprint("Error:"), err.Error())
			continue
		}

		d.printf(ctx, "%s %s\n", d.assistantLabel.Sprint(d.name+":"), reply.Text)
	}
}

func (d *Driver) printf(ctx context.Context, format string, args ...any) {
	safe.Write(ctx, d.out, []byte(fmt.Sprintf(format, args...)))
}
