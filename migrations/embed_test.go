package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEveryUpHasDown(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	seen := make(map[string]int)
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			seen[strings.TrimSuffix(f, ".up.sql")]++
		case strings.HasSuffix(f, ".down.sql"):
			seen[strings.TrimSuffix(f, ".down.sql")]++
		default:
			t.Fatalf("unexpected migration file %s", f)
		}
	}
	for version, n := range seen {
		require.Equalf(t, 2, n, "migration %s needs both up and down", version)
	}
}
