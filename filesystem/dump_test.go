package filesystem

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dumpString(t *testing.T, fs *FileSystem) string {
	t.Helper()
	var buf bytes.Buffer
	assert.NoError(t, fs.Dump(&buf))
	return buf.String()
}

func parseDumpString(t *testing.T, s string) []DumpEntry {
	t.Helper()
	entries, err := ParseDump(strings.NewReader(s))
	assert.NoError(t, err)
	return entries
}

// assertWellFormed checks that the dump starts at the root and lists every
// parent before its children
func assertWellFormed(t *testing.T, entries []DumpEntry) {
	t.Helper()
	if !assert.NotEmpty(t, entries) {
		return
	}
	assert.Equal(t, DumpEntry{Path: "/", Kind: tecnicofs.KindDir}, entries[0])
	seen := map[string]tecnicofs.Kind{"/": tecnicofs.KindDir}
	for _, e := range entries[1:] {
		parent := path.Dir(e.Path)
		kind, ok := seen[parent]
		assert.True(t, ok, "parent of %s listed after it", e.Path)
		assert.Equal(t, tecnicofs.KindDir, kind, "parent of %s is not a directory", e.Path)
		seen[e.Path] = e.Kind
	}
}

func buildNestedTree(t *testing.T, fs *FileSystem) {
	t.Helper()
	for _, c := range []struct {
		p string
		k tecnicofs.Kind
	}{
		{"/docs", tecnicofs.KindDir},
		{"/docs/b.txt", tecnicofs.KindFile},
		{"/docs/a.txt", tecnicofs.KindFile},
		{"/bin", tecnicofs.KindDir},
		{"/bin/tool", tecnicofs.KindFile},
		{"/readme", tecnicofs.KindFile},
		{"/docs/sub", tecnicofs.KindDir},
	} {
		_, err := fs.Create(c.p, c.k)
		require.NoError(t, err)
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDump_Golden(t *testing.T) {
	t.Parallel()

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			t.Parallel()
			g := newGoldie(t)

			fs := createTestFS(t, s, config.DefaultNodeTableSize)
			g.Assert(t, "empty_tree", []byte(dumpString(t, fs)))

			buildNestedTree(t, fs)
			g.Assert(t, "nested_tree", []byte(dumpString(t, fs)))

			require.NoError(t, fs.Delete("/docs/a.txt"))
			require.NoError(t, fs.Delete("/bin/tool"))
			require.NoError(t, fs.Delete("/bin"))
			g.Assert(t, "after_delete", []byte(dumpString(t, fs)))
			assertNoLeaks(t, fs)
		})
	}
}

func TestDump_RoundTrip(t *testing.T) {
	t.Parallel()

	fs := createTestFS(t, config.StrategyFine, config.DefaultNodeTableSize)
	buildNestedTree(t, fs)
	first := dumpString(t, fs)

	entries := parseDumpString(t, first)
	assertWellFormed(t, entries)
	require.Len(t, entries, fs.Len())

	restored := createTestFS(t, config.StrategyCoarse, config.DefaultNodeTableSize)
	require.NoError(t, restored.Restore(entries))
	assert.Equal(t, first, dumpString(t, restored))
}

func TestRestore_Error(t *testing.T) {
	t.Parallel()

	fs := createTestFS(t, config.StrategyFine, 4)
	err := fs.Restore([]DumpEntry{
		{Path: "/", Kind: tecnicofs.KindDir},
		{Path: "/a/b", Kind: tecnicofs.KindFile},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, tecnicofs.ErrParentMissing)
	assert.Contains(t, err.Error(), "/a/b f")
}

func TestParseDump_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing kind":  "/ d\n/a\n",
		"bad kind":      "/ d\n/a x\n",
		"long kind":     "/ d\n/a dir\n",
		"extra columns": "/ d\n/a d extra\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDump(strings.NewReader(in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "dump line 2")
		})
	}
}

func TestParseDump_SkipsBlank(t *testing.T) {
	t.Parallel()

	entries, err := ParseDump(strings.NewReader("/ d\n\n  \n/a f\n"))
	require.NoError(t, err)
	assert.Equal(t, []DumpEntry{
		{Path: "/", Kind: tecnicofs.KindDir},
		{Path: "/a", Kind: tecnicofs.KindFile},
	}, entries)
}

func TestDumpFile(t *testing.T) {
	t.Parallel()

	fs := createTestFS(t, config.StrategyFine, config.DefaultNodeTableSize)
	buildNestedTree(t, fs)

	out := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, fs.DumpFile(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, dumpString(t, fs), string(data))

	err = fs.DumpFile(filepath.Join(t.TempDir(), "missing", "out.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open dump file")
	assertNoLeaks(t, fs)
}
