package gemini_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/service/generation"
	"github.com/secmon-lab/recall/pkg/service/generation/gemini"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	reply string
	err   error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.reply, genai.RoleModel)},
		},
	}, nil
}

var transcript = []model.Turn{
	model.NewUserTurn("Hi"),
	model.NewAssistantTurn("Hello!"),
	model.NewUserTurn("What do I like?"),
}

func TestContents(t *testing.T) {
	contents := gemini.ToContents(transcript)
	gt.Array(t, contents).Length(3).Required()
	gt.Value(t, contents[0].Role).Equal("user")
	gt.Value(t, contents[1].Role).Equal("model")
	gt.Value(t, contents[2].Parts[0].Text).Equal("What do I like?")

	back, err := gemini.FromContents(contents)
	gt.NoError(t, err).Required()
	gt.Value(t, back).Equal(transcript)

	t.Run("unknown role", func(t *testing.T) {
		_, err := gemini.FromContents([]*genai.Content{{Role: "tool"}})
		gt.Error(t, err)
	})
}

func TestClient_Generate(t *testing.T) {
	req := model.GenerationRequest{
		SystemInstruction: "P\n\nUser Memories:\n- likes tea",
		Messages:          transcript,
	}

	t.Run("sends system instruction and parameters", func(t *testing.T) {
		fake := &fakeModels{reply: "You like tea."}
		client := gemini.NewClient(fake, gemini.WithModel("gemini-test"), gemini.WithMaxTokens(100))

		reply, err := client.Generate(context.Background(), req)
		gt.NoError(t, err).Required()
		gt.Value(t, reply).Equal("You like tea.")

		gt.Value(t, fake.model).Equal("gemini-test")
		gt.Array(t, fake.contents).Length(3)
		gt.Value(t, fake.config.SystemInstruction.Parts[0].Text).Equal(req.SystemInstruction)
		gt.Value(t, *fake.config.Temperature).Equal(float32(0))
		gt.Value(t, fake.config.MaxOutputTokens).Equal(int32(100))
	})

	t.Run("defaults", func(t *testing.T) {
		fake := &fakeModels{reply: "ok"}
		_, err := gemini.NewClient(fake).Generate(context.Background(), req)
		gt.NoError(t, err).Required()
		gt.Value(t, fake.model).Equal(gemini.DefaultModel)
		gt.Value(t, fake.config.MaxOutputTokens).Equal(int32(generation.DefaultMaxTokens))
	})

	t.Run("api error", func(t *testing.T) {
		apiErr := errors.New("quota exceeded")
		_, err := gemini.NewClient(&fakeModels{err: apiErr}).Generate(context.Background(), req)
		gt.Bool(t, errors.Is(err, apiErr)).True()
	})

	t.Run("empty reply", func(t *testing.T) {
		_, err := gemini.NewClient(&fakeModels{reply: "  "}).Generate(context.Background(), req)
		gt.Bool(t, errors.Is(err, generation.ErrEmptyResponse)).True()
	})
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := gemini.New(context.Background(), "", "", "")
	gt.Error(t, err)
}
