package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, versions)
}

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(files, "sql/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(files, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestEventsSchema(t *testing.T) {
	data, err := fs.ReadFile(files, "sql/000002_create_events.up.sql")
	require.NoError(t, err)
	ddl := string(data)

	assert.Contains(t, ddl, "SPATIAL INDEX events_coordinates_spatial (coordinates)")
	assert.Contains(t, ddl, "UNIQUE KEY wannagos_event_user_unique (event_id, user_id)")
	assert.Equal(t, 3, strings.Count(ddl, "REFERENCES events (id) ON DELETE CASCADE"))
}
