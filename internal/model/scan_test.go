package model

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanRequest(t *testing.T) {
	t.Parallel()

	req, err := NewScanRequest(" data ", []string{"ZIP", ".rar", "zip", " ", ".7Z"}, true, 3)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(req.RootPath))
	assert.Equal(t, []string{".7z", ".rar", ".zip"}, req.Extensions)
	assert.True(t, req.Matches("Holiday.ZIP"))
	assert.True(t, req.Matches("c.part2.rar"))
	assert.False(t, req.Matches("notes.txt"))

	for _, tc := range []struct {
		root string
		exts []string
		n    int
	}{
		{root: "", exts: []string{"zip"}, n: 1},
		{root: "/data", exts: nil, n: 1},
		{root: "/data", exts: []string{"."}, n: 1},
		{root: "/data", exts: []string{"zip"}, n: 0},
	} {
		_, err := NewScanRequest(tc.root, tc.exts, false, tc.n)
		assert.True(t, errors.Is(err, ErrInvalidRequest), "%+v", tc)
	}
}

func TestVerdict(t *testing.T) {
	t.Parallel()

	ok := Pass("/data/a.zip")
	assert.True(t, ok.OK)
	assert.Empty(t, ok.Message)
	assert.Equal(t, "a.zip: OK", ok.LogLine())

	bad := Fail("/data/b.zip", "entry %s: %s", "x.bin", "checksum error")
	assert.False(t, bad.OK)
	assert.Equal(t, "b.zip: entry x.bin: checksum error", bad.LogLine())

	blank := Fail("/data/c.zip", "  ")
	assert.Equal(t, "unknown error", blank.Message)
}

func TestScanProgressPercent(t *testing.T) {
	t.Parallel()

	_, ok := ScanProgress{}.Percent()
	assert.False(t, ok)

	pct, ok := ScanProgress{TotalFiles: 3, ProcessedFiles: 1}.Percent()
	assert.True(t, ok)
	assert.Equal(t, 33, pct)

	pct, _ = ScanProgress{TotalFiles: 3, ProcessedFiles: 5}.Percent()
	assert.Equal(t, 100, pct)
}

func TestCorruptedPaths(t *testing.T) {
	t.Parallel()

	res := &ScanResult{Corrupted: map[string]string{"/b": "x", "/a": "y"}}
	assert.Equal(t, []string{"/a", "/b"}, res.CorruptedPaths())
}
