package cli_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/cli"
	"github.com/secmon-lab/recall/pkg/domain/model"
)

func TestPrintFacts(t *testing.T) {
	var buf bytes.Buffer
	gt.NoError(t, cli.PrintFacts(&buf, []model.Fact{{Text: "Lives in Oslo"}, {Text: "Has a dog"}}))
	gt.Value(t, buf.String()).Equal("- Lives in Oslo\n- Has a dog\n")

	buf.Reset()
	gt.NoError(t, cli.PrintFacts(&buf, nil))
	gt.Value(t, buf.String()).Equal("No memories found\n")
}

func TestPrintMemories(t *testing.T) {
	color.NoColor = true

	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	gt.NoError(t, cli.PrintMemories(&buf, []*model.Memory{
		{ID: "m1", Claim: "Prefers green tea", CreatedAt: created},
	}))
	gt.Value(t, buf.String()).Equal("2024-05-01 09:30 m1 Prefers green tea\n")
}

func TestToMemoryViews(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	views := cli.ToMemoryViews([]*model.Memory{{ID: "m1", Claim: "Has a dog", CreatedAt: created}})
	gt.Array(t, views).Length(1).Required()
	gt.Value(t, views[0].Claim).Equal("Has a dog")
	gt.Value(t, views[0].CreatedAt).Equal("2024-05-01T09:30:00Z")
}
