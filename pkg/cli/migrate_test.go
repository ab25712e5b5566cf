package cli_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/cli"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/repository/firestore"
)

func TestGetIndexConfig(t *testing.T) {
	cfg := cli.GetIndexConfig()
	gt.Array(t, cfg.Collections).Length(1).Required()

	col := cfg.Collections[0]
	gt.Value(t, col.Name).Equal(firestore.MemoriesCollection)
	gt.Array(t, col.Indexes).Length(1).Required()

	fields := col.Indexes[0].Fields
	gt.Array(t, fields).Length(1).Required()
	gt.Value(t, fields[0].Path).Equal(firestore.EmbeddingField)
	gt.Value(t, fields[0].Vector).NotNil().Required()
	gt.Value(t, fields[0].Vector.Dimension).Equal(model.EmbeddingDimension)
}

func TestGetIndexConfig_Validate(t *testing.T) {
	gt.NoError(t, cli.GetIndexConfig().Validate())
}
