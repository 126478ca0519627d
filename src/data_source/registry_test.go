package datasource

import (
	"context"
	"testing"

	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedSource struct{ name string }

func (s namedSource) Name() string  { return s.name }
func (s namedSource) Index() string { return "IDX " + s.name }
func (s namedSource) FetchSnapshot(context.Context) (*models.MSnapshot, error) {
	return &models.MSnapshot{Source: s.name}, nil
}

func TestSourceRegistry(t *testing.T) {
	r := NewSourceRegistry([]interfaces.ISnapshotSource{namedSource{"nifty"}, namedSource{"fo"}}, logger.NewNopLogger())

	require.NoError(t, r.AddSource(namedSource{"bank"}))
	assert.Error(t, r.AddSource(namedSource{"fo"}))

	var names []string
	for _, s := range r.GetAllSources() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"bank", "fo", "nifty"}, names)

	src, err := r.GetSource("fo")
	require.NoError(t, err)
	assert.Equal(t, "IDX fo", src.Index())

	require.NoError(t, r.RemoveSource("fo"))
	_, err = r.GetSource("fo")
	assert.Error(t, err)
	assert.Error(t, r.RemoveSource("fo"))
}
