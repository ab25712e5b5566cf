package postgres_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/repository/postgres"
)

func TestEncodeVector(t *testing.T) {
	gt.Value(t, postgres.EncodeVector([]float32{1, 2.5, -3})).Equal("[1,2.5,-3]")
	gt.Value(t, postgres.EncodeVector(nil)).Equal("[]")
}

func TestDecodeVector(t *testing.T) {
	t.Run("pgvector text output", func(t *testing.T) {
		v, err := postgres.DecodeVector("[0.1,0.2, 0.3]")
		gt.NoError(t, err).Required()
		gt.Value(t, v).Equal([]float32{0.1, 0.2, 0.3})
	})

	t.Run("encoded vectors decode back", func(t *testing.T) {
		in := []float32{0.25, -1, 42}
		v, err := postgres.DecodeVector(postgres.EncodeVector(in))
		gt.NoError(t, err).Required()
		gt.Value(t, v).Equal(in)
	})

	t.Run("empty vector", func(t *testing.T) {
		v, err := postgres.DecodeVector("[]")
		gt.NoError(t, err).Required()
		gt.Array(t, v).Length(0)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := postgres.DecodeVector("0.1,0.2")
		gt.Error(t, err)
		_, err = postgres.DecodeVector("[a,b]")
		gt.Error(t, err)
	})
}
