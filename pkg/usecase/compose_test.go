package usecase_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/usecase"
)

func TestComposePrompt(t *testing.T) {
	transcript := []model.Turn{
		model.NewUserTurn("What do I like?"),
	}

	t.Run("facts are listed under the memories header", func(t *testing.T) {
		req := usecase.ComposePrompt("P", []string{"likes tea", "lives in Oslo"}, transcript)
		gt.Value(t, req.SystemInstruction).Equal("P\n\nUser Memories:\n- likes tea\n- lives in Oslo")
		gt.Value(t, req.Messages).Equal(transcript)
	})

	t.Run("header is kept without facts", func(t *testing.T) {
		req := usecase.ComposePrompt("P", nil, transcript)
		gt.Value(t, req.SystemInstruction).Equal("P\n\nUser Memories:\n")
	})

	t.Run("carries the full transcript", func(t *testing.T) {
		full := []model.Turn{
			model.NewUserTurn("hi"),
			model.NewAssistantTurn("hello"),
			model.NewUserTurn("again"),
		}
		req := usecase.ComposePrompt("P", nil, full)
		gt.Value(t, req.Messages).Equal(full)
	})

	t.Run("is deterministic", func(t *testing.T) {
		a := usecase.ComposePrompt("P", []string{"x"}, transcript)
		b := usecase.ComposePrompt("P", []string{"x"}, transcript)
		gt.Value(t, a).Equal(b)
	})

	t.Run("does not alias the input transcript", func(t *testing.T) {
		input := []model.Turn{model.NewUserTurn("before")}
		req := usecase.ComposePrompt("P", nil, input)
		input[0].Text = "after"
		gt.Value(t, req.Messages[0].Text).Equal("before")
	})
}
