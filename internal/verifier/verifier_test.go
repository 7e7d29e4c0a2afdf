package verifier

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/arccheck/internal/archive"
)

type toolCall struct {
	tool string
	args []string
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []toolCall
	result  ToolResult
	missing map[string]bool
}

func (f *fakeRunner) Available(tool string) (string, error) {
	if f.missing[tool] {
		return "", ErrToolNotFound
	}
	return "/usr/bin/" + tool, nil
}

func (f *fakeRunner) Run(ctx context.Context, tool string, args ...string) (*ToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, toolCall{tool: tool, args: append([]string(nil), args...)})
	f.mu.Unlock()
	if _, err := f.Available(tool); err != nil {
		return nil, err
	}
	res := f.result
	return &res, nil
}

func (f *fakeRunner) lastCall(t *testing.T) toolCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func zipBytes(t *testing.T, files map[string][]byte, method uint16) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// spannedZip marks the end of central directory record as living on the
// second disk.
func spannedZip(t *testing.T) []byte {
	data := zipBytes(t, map[string][]byte{"a.txt": []byte("abc")}, zip.Deflate)
	data[len(data)-eocdLen+4] = 1
	return data
}

func newSet(t *testing.T, runner ToolRunner) *Set {
	t.Helper()
	s, err := NewSet(Options{Runner: runner})
	require.NoError(t, err)
	return s
}

func TestZipVerifierPass(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "a.zip"), zipBytes(t, map[string][]byte{
		"a.bin":     bytes.Repeat([]byte("a"), 100000),
		"dir/b.bin": []byte("12345"),
	}, zip.Deflate))

	v, err := (&ZipVerifier{}).Verify(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, v.OK)
	assert.Empty(t, v.Message)
	assert.Equal(t, path, v.Path)
}

func TestZipVerifierChecksumError(t *testing.T) {
	t.Parallel()

	payload := []byte("payload that will be damaged on disk")
	data := zipBytes(t, map[string][]byte{"data.txt": payload}, zip.Store)
	idx := bytes.Index(data, payload)
	require.GreaterOrEqual(t, idx, 0)
	data[idx] ^= 0xff

	path := writeFile(t, filepath.Join(t.TempDir(), "b.zip"), data)
	v, err := (&ZipVerifier{ChunkSize: 4}).Verify(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Contains(t, v.Message, "data.txt")
	assert.Contains(t, v.Message, zip.ErrChecksum.Error())
}

func TestZipVerifierTruncated(t *testing.T) {
	t.Parallel()

	data := zipBytes(t, map[string][]byte{"a.txt": bytes.Repeat([]byte("x"), 4096)}, zip.Deflate)
	path := writeFile(t, filepath.Join(t.TempDir(), "t.zip"), data[:len(data)/2])
	v, err := (&ZipVerifier{}).Verify(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Contains(t, v.Message, "corrupted zip archive")
}

func TestZipVerifierSpanned(t *testing.T) {
	t.Parallel()

	t.Run("complete", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "s.z01"), []byte("part"))
		writeFile(t, filepath.Join(dir, "s.z02"), []byte("part"))
		path := writeFile(t, filepath.Join(dir, "s.zip"), spannedZip(t))
		v, err := (&ZipVerifier{}).Verify(context.Background(), path)
		require.NoError(t, err)
		assert.False(t, v.OK)
		assert.Equal(t, msgZipSpanNotSupport, v.Message)
	})
	t.Run("gap", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "s.z01"), []byte("part"))
		writeFile(t, filepath.Join(dir, "s.z03"), []byte("part"))
		path := writeFile(t, filepath.Join(dir, "s.zip"), spannedZip(t))
		v, err := (&ZipVerifier{}).Verify(context.Background(), path)
		require.NoError(t, err)
		assert.False(t, v.OK)
		assert.Contains(t, v.Message, "s.z02")
	})
	t.Run("no parts", func(t *testing.T) {
		path := writeFile(t, filepath.Join(t.TempDir(), "s.zip"), spannedZip(t))
		v, err := (&ZipVerifier{}).Verify(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, msgZipSpanNoParts, v.Message)
	})
}

func TestZipVerifierCancelled(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "a.zip"), zipBytes(t, map[string][]byte{"a": []byte("a")}, zip.Deflate))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&ZipVerifier{}).Verify(ctx, path)
	assert.True(t, errors.Is(err, ErrInterrupted))
}

func TestRarVerifierMissingToolOnPath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.part1.rar", "c.part2.rar", "c.part3.rar"} {
		writeFile(t, filepath.Join(dir, name), []byte("rar"))
	}
	t.Setenv("PATH", t.TempDir())

	s := newSet(t, nil)
	v, err := s.For(archive.KindRar).Verify(context.Background(), filepath.Join(dir, "c.part1.rar"))
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, "rar test failed: unrar is not available", v.Message)
}

func TestRarVerifierIncompleteOldStyle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"d.r00", "d.r02", "d.rar"} {
		writeFile(t, filepath.Join(dir, name), []byte("rar"))
	}
	runner := &fakeRunner{}
	v, err := newSet(t, runner).For(archive.KindRar).Verify(context.Background(), filepath.Join(dir, "d.r00"))
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Contains(t, v.Message, "d.r01")
	assert.Empty(t, runner.calls)
}

func TestRarVerifierCompleteOldStyleStartsFromRar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"d.r00", "d.r01", "d.rar"} {
		writeFile(t, filepath.Join(dir, name), []byte("rar"))
	}
	runner := &fakeRunner{}
	v, err := newSet(t, runner).For(archive.KindRar).Verify(context.Background(), filepath.Join(dir, "d.r00"))
	require.NoError(t, err)
	assert.True(t, v.OK)
	call := runner.lastCall(t)
	assert.Equal(t, DefaultUnrarTool, call.tool)
	assert.Equal(t, []string{"t", "-idq", filepath.Join(dir, "d.rar")}, call.args)
}

func TestRarVerifierSameVerdictForAnyPart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"c.part1.rar", "c.part2.rar", "c.part3.rar"} {
		writeFile(t, filepath.Join(dir, name), []byte("rar"))
	}
	runner := &fakeRunner{result: ToolResult{ExitCode: 3, Stderr: "CRC failed in c.bin\n"}}
	rar := newSet(t, runner).For(archive.KindRar)

	first, err := rar.Verify(context.Background(), filepath.Join(dir, "c.part1.rar"))
	require.NoError(t, err)
	second, err := rar.Verify(context.Background(), filepath.Join(dir, "c.part2.rar"))
	require.NoError(t, err)

	assert.False(t, first.OK)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, "rar test failed (exit 3): CRC failed in c.bin", first.Message)
	assert.Equal(t, filepath.Join(dir, "c.part1.rar"), runner.lastCall(t).args[2])
}

func TestRarVerifierStdoutFallback(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "x.rar"), []byte("rar"))
	runner := &fakeRunner{result: ToolResult{ExitCode: 1, Stdout: "x.rar is not RAR archive"}}
	v, err := newSet(t, runner).For(archive.KindRar).Verify(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "rar test failed (exit 1): x.rar is not RAR archive", v.Message)
	assert.Equal(t, []string{"t", "-idq", path}, runner.lastCall(t).args)
}

func TestSevenZipVerifierSplit(t *testing.T) {
	t.Parallel()

	t.Run("incomplete", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "e.7z.001"), []byte("7z"))
		writeFile(t, filepath.Join(dir, "e.7z.003"), []byte("7z"))
		runner := &fakeRunner{}
		v, err := newSet(t, runner).For(archive.KindSevenZ).Verify(context.Background(), filepath.Join(dir, "e.7z.001"))
		require.NoError(t, err)
		assert.False(t, v.OK)
		assert.Contains(t, v.Message, "e.7z.002")
		assert.Empty(t, runner.calls)
	})
	t.Run("complete", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "e.7z.001"), []byte("7z"))
		writeFile(t, filepath.Join(dir, "e.7z.002"), []byte("7z"))
		runner := &fakeRunner{}
		v, err := newSet(t, runner).For(archive.KindSevenZ).Verify(context.Background(), filepath.Join(dir, "e.7z.001"))
		require.NoError(t, err)
		assert.True(t, v.OK)
		call := runner.lastCall(t)
		assert.Equal(t, DefaultSevenZipTool, call.tool)
		assert.Equal(t, []string{"t", "-bd", filepath.Join(dir, "e.7z.001")}, call.args)
	})
	t.Run("rar signed split", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "r.001"), append([]byte("Rar!\x1a\x07\x00"), 0x01))
		writeFile(t, filepath.Join(dir, "r.002"), []byte("rest"))
		writeFile(t, filepath.Join(dir, "r.7z"), []byte("tail"))
		runner := &fakeRunner{}
		v, err := newSet(t, runner).For(archive.KindSevenZ).Verify(context.Background(), filepath.Join(dir, "r.001"))
		require.NoError(t, err)
		assert.True(t, v.OK)
		assert.Equal(t, DefaultUnrarTool, runner.lastCall(t).tool)
	})
}

func TestSevenZipVerifierMissingTool(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "x.7z"), []byte("7z"))
	runner := &fakeRunner{missing: map[string]bool{DefaultSevenZipTool: true}}
	v, err := newSet(t, runner).For(archive.KindSevenZ).Verify(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, "7z test failed: 7z is not available", v.Message)
}

func TestSevenZipBuiltinRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "x.7z"), []byte("definitely not a 7z archive"))
	s, err := NewSet(Options{SevenZipEngine: EngineBuiltin, Runner: &fakeRunner{}})
	require.NoError(t, err)
	v, err := s.For(archive.KindSevenZ).Verify(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Contains(t, v.Message, "corrupted 7z archive")
}

func TestNewSet(t *testing.T) {
	t.Parallel()

	_, err := NewSet(Options{SevenZipEngine: "magic"})
	assert.Error(t, err)

	s := newSet(t, &fakeRunner{})
	assert.Nil(t, s.For(archive.KindUnknown))
	assert.IsType(t, &ZipVerifier{}, s.For(archive.KindZip))
	assert.IsType(t, &RarVerifier{}, s.For(archive.KindRar))
	assert.IsType(t, &SevenZipVerifier{}, s.For(archive.KindSevenZ))
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecRunnerExitCode(t *testing.T) {
	t.Parallel()

	tool := writeScript(t, `echo "bad crc" 1>&2; echo "out"; exit 2`)
	res, err := NewExecRunner().Run(context.Background(), tool, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "bad crc\n", res.Stderr)
	assert.Equal(t, "out\n", res.Stdout)
}

func TestExecRunnerKillsOnCancel(t *testing.T) {
	t.Parallel()

	tool := writeScript(t, `exec sleep 30`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewExecRunner().Run(ctx, tool)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecRunnerMissingTool(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner().Run(context.Background(), filepath.Join(t.TempDir(), "missing-tool"))
	assert.True(t, errors.Is(err, ErrToolNotFound))
}
