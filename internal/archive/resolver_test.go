package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultRules(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	cases := map[string]Kind{
		"a.zip":          KindZip,
		"A.ZIP":          KindZip,
		"b.7z":           KindSevenZ,
		"c.rar":          KindRar,
		"c.part1.rar":    KindRar,
		"c.part12.rar":   KindRar,
		"C.Part3.RAR":    KindRar,
		"d.r00":          KindRar,
		"e.001":          KindSevenZ,
		"e.7z.001":       KindSevenZ,
		"notes.txt":      KindUnknown,
		"d.r01":          KindUnknown,
		"e.002":          KindUnknown,
		"zip":            KindUnknown,
		"archive.tar.gz": KindUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, r.Resolve(name), name)
	}
}

func TestResolveLongestSuffixWins(t *testing.T) {
	t.Parallel()

	r := NewResolver(
		Rule{Suffix: ".rar", Kind: KindZip},
		Rule{Suffix: ".part#.rar", Kind: KindRar},
	)
	assert.Equal(t, KindRar, r.Resolve("x.part1.rar"))
	assert.Equal(t, KindZip, r.Resolve("x.rar"))
	assert.Equal(t, KindZip, r.Resolve("x.part.rar"))
}

func TestResolverDropsInvalidRules(t *testing.T) {
	t.Parallel()

	r := NewResolver(Rule{Suffix: " ", Kind: KindZip}, Rule{Suffix: ".bin", Kind: KindUnknown}, Rule{Suffix: ".ZIP", Kind: KindZip})
	assert.Equal(t, KindUnknown, r.Resolve("x.bin"))
	assert.Equal(t, KindZip, r.Resolve("x.zip"))
}

func TestMatchSuffix(t *testing.T) {
	t.Parallel()

	n, ok := matchSuffix("movie.part07.rar", ".part#.rar")
	require.True(t, ok)
	assert.Equal(t, len(".part07.rar"), n)

	_, ok = matchSuffix("movie.partx.rar", ".part#.rar")
	assert.False(t, ok)

	_, ok = matchSuffix("ar", ".rar")
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Kind{"zip": KindZip, "internal": KindZip, ".rar": KindRar, "unrar": KindRar, "7z": KindSevenZ} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("tar")
	assert.Error(t, err)
	assert.Equal(t, "7z", KindSevenZ.String())
}
