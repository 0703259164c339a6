package sqlite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/breaklinks/internal/fields"
	"github.com/mesh-intelligence/breaklinks/pkg/sqlite"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

const doc = `
items:
  - id: home
    name: Home
  - id: page
    name: Page
    fields:
      - {id: Target, type: droplink, value: home}
`

func attach(t *testing.T, b *sqlite.Backend) {
	t.Helper()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
}

func TestBackendRegistries(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		backend *sqlite.Backend
		want    int
	}{
		{"standard handlers index droplinks", sqlite.NewBackend(), 1},
		{"empty registry indexes nothing", sqlite.NewBackendWithRegistry(&fields.Registry{}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attach(t, tt.backend)
			n, err := tt.backend.ImportYAML(ctx, strings.NewReader(doc))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			home, err := tt.backend.GetItem(ctx, "home")
			require.NoError(t, err)
			count, err := tt.backend.GetReferrerCount(ctx, home)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestBackendSatisfiesInterfaces(t *testing.T) {
	var b any = sqlite.NewBackend()
	_, ok := b.(types.ContentStore)
	assert.True(t, ok)
	_, ok = b.(types.LinkIndex)
	assert.True(t, ok)
}
