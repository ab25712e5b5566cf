package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/utils/async"
	"github.com/secmon-lab/recall/pkg/utils/errutil"
	"github.com/secmon-lab/recall/pkg/utils/logging"
)

// Conversation runs the memory-augmented turn cycle for one session and owns
// its transcript. Send calls are serialised, and with async write-back the
// next turn starts only after the previous write-back has finished.
type Conversation struct {
	mu         sync.Mutex
	memory     interfaces.MemoryIndex
	generator  interfaces.Generator
	userID     model.UserID
	transcript *model.Transcript
	pending    <-chan struct{}

	persona           string
	searchLimit       int
	generationTimeout time.Duration
	asyncWriteBack    bool
}

type ConversationOption func(*Conversation)

// WithPersona sets the base system instruction
func WithPersona(persona string) ConversationOption {
	return func(c *Conversation) {
		c.persona = persona
	}
}

// WithGenerationTimeout bounds the generation call of each turn. Zero means
// no timeout beyond the caller's context.
func WithGenerationTimeout(d time.Duration) ConversationOption {
	return func(c *Conversation) {
		c.generationTimeout = d
	}
}

// WithAsyncWriteBack returns the reply before memory write-back completes
func WithAsyncWriteBack(enabled bool) ConversationOption {
	return func(c *Conversation) {
		c.asyncWriteBack = enabled
	}
}

// NewConversation creates a conversation bound to userID. An empty userID
// falls back to model.DefaultUserID.
func NewConversation(memory interfaces.MemoryIndex, generator interfaces.Generator, userID model.UserID, opts ...ConversationOption) *Conversation {
	if userID == "" {
		userID = model.DefaultUserID
	}

	c := &Conversation{
		memory:      memory,
		generator:   generator,
		userID:      userID,
		transcript:  model.NewTranscript(),
		persona:     DefaultPersona,
		searchLimit: model.MemorySearchLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserID returns the identity the conversation is bound to
func (c *Conversation) UserID() model.UserID {
	return c.userID
}

// Transcript returns a copy of the turns so far
func (c *Conversation) Transcript() []model.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Turns()
}

// Close waits for an in-flight memory write-back. It must be called before
// the memory index is released.
func (c *Conversation) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitWriteBack(ctx)
}

// Send runs one turn cycle and returns the assistant turn.
//
// Empty input returns ErrEmptyTurn without any change. A retrieval failure
// is logged and the turn proceeds with no facts. A generation failure
// returns ErrGenerationFailed; the user turn stays in the transcript and
// memory is not updated. A write-back failure is reported but does not fail
// the turn.
func (c *Conversation) Send(ctx context.Context, text string) (*model.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTurn
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.waitWriteBack(ctx); err != nil {
		return nil, err
	}

	logger := logging.From(ctx).With(UserIDKey, c.userID.String())

	c.transcript.Append(model.NewUserTurn(text))

	last, _ := c.transcript.Last()
	facts := c.retrieve(ctx, last.Text)
	logger.Debug("retrieved memories", "count", len(facts))

	req := ComposePrompt(c.persona, model.FactTexts(facts), c.transcript.Turns())

	reply, err := c.generate(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(ErrGenerationFailed, err), "failed to generate reply",
			goerr.V(UserIDKey, c.userID),
			goerr.V(TurnCountKey, c.transcript.Len()),
		)
	}

	assistant := model.NewAssistantTurn(reply)
	c.transcript.Append(assistant)

	c.writeBack(ctx, model.ToMemoryMessages(c.transcript.Turns()))

	return &assistant, nil
}

func (c *Conversation) retrieve(ctx context.Context, query string) []model.Fact {
	facts, err := c.memory.Search(ctx, query, c.userID, c.searchLimit)
	if err != nil {
		logging.From(ctx).Warn("memory search failed, continuing without memories",
			"error", err,
			UserIDKey, c.userID.String(),
		)
		return nil
	}
	return facts
}

func (c *Conversation) generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	if c.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.generationTimeout)
		defer cancel()
	}

	reply, err := c.generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (c *Conversation) writeBack(ctx context.Context, messages []model.MemoryMessage) {
	add := func(ctx context.Context) error {
		if err := c.memory.Add(ctx, messages, c.userID); err != nil {
			return goerr.Wrap(err, "failed to update memory", goerr.V(UserIDKey, c.userID))
		}
		return nil
	}

	if c.asyncWriteBack {
		c.pending = async.Dispatch(ctx, add)
		return
	}

	if err := add(ctx); err != nil {
		_ = errutil.Handle(ctx, err, "memory write-back failed")
	}
}

func (c *Conversation) waitWriteBack(ctx context.Context) error {
	if c.pending == nil {
		return nil
	}

	select {
	case <-c.pending:
		c.pending = nil
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "interrupted while waiting for memory write-back",
			goerr.V(UserIDKey, c.userID))
	}
}
