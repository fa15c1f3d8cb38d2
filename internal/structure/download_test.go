// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package structure

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	names []string
	data  [][]byte
	err   error
}

func (p *recordingPublisher) Put(_ context.Context, name string, data []byte) error {
	p.names = append(p.names, name)
	p.data = append(p.data, data)
	return p.err
}

func TestFileName(t *testing.T) {
	tests := []struct {
		urn  string
		want string
	}{
		{"urn:cts:greekLit:tlg0012.tlg001", "urn-cts-greekLit-tlg0012.tlg001.json"},
		{"urn:cts:latinLit:phi0448.phi001", "urn-cts-latinLit-phi0448.phi001.json"},
	}
	for _, tt := range tests {
		if got := FileName(tt.urn); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.urn, got, tt.want)
		}
	}
}

func TestDownload_WritesStructure(t *testing.T) {
	dir := t.TempDir()
	f := newTestFetcher(iliadResolver(), &bytes.Buffer{})
	d := &Downloader{Fetcher: f, OutputDir: dir}

	path, err := d.Download(context.Background(), iliad)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "urn-cts-greekLit-tlg0012.tlg001.json"), path)

	want, err := f.Fetch(context.Background(), iliad)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownload_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "text_structures")
	d := &Downloader{Fetcher: newTestFetcher(iliadResolver(), &bytes.Buffer{}), OutputDir: dir}

	path, err := d.Download(context.Background(), iliad)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestDownload_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(iliad))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	d := &Downloader{Fetcher: newTestFetcher(iliadResolver(), &bytes.Buffer{}), OutputDir: dir}
	_, err := d.Download(context.Background(), iliad)
	require.NoError(t, err)

	ts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, iliad, ts.URN)
}

func TestDownload_NoEditionWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := iliadResolver()
	r.work.Texts = r.work.Texts[:1]

	d := &Downloader{Fetcher: newTestFetcher(r, &bytes.Buffer{}), OutputDir: dir}
	path, err := d.Download(context.Background(), iliad)

	assert.ErrorIs(t, err, ErrNoEdition)
	assert.Empty(t, path)
	assert.NoFileExists(t, filepath.Join(dir, FileName(iliad)))
}

func TestDownload_Publishes(t *testing.T) {
	dir := t.TempDir()
	pub := &recordingPublisher{}
	d := &Downloader{Fetcher: newTestFetcher(iliadResolver(), &bytes.Buffer{}), OutputDir: dir, Publisher: pub}

	path, err := d.Download(context.Background(), iliad)
	require.NoError(t, err)

	require.Equal(t, []string{FileName(iliad)}, pub.names)
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, onDisk, pub.data[0])
}

func TestDownload_PublishFailureKeepsFile(t *testing.T) {
	dir := t.TempDir()
	pub := &recordingPublisher{err: errors.New("bucket unavailable")}
	d := &Downloader{Fetcher: newTestFetcher(iliadResolver(), &bytes.Buffer{}), OutputDir: dir, Publisher: pub}

	path, err := d.Download(context.Background(), iliad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing")
	assert.FileExists(t, path)
}

func TestDownloadBatch_ContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	d := &Downloader{Fetcher: newTestFetcher(iliadResolver(), &bytes.Buffer{}), OutputDir: dir}

	var buf bytes.Buffer
	result := d.DownloadBatch(context.Background(), []string{"not a urn", iliad}, &buf)

	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Total())
	assert.True(t, result.HasFailures())
	assert.Equal(t, []string{filepath.Join(dir, FileName(iliad))}, result.Paths)

	out := buf.String()
	assert.Contains(t, out, "failed: not a urn")
	assert.Contains(t, out, "downloaded: ")
	assert.True(t, strings.HasSuffix(out, "Batch summary: 1 downloaded, 1 failed (total: 2)\n"), out)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	nullFile := filepath.Join(dir, "null.json")
	require.NoError(t, os.WriteFile(nullFile, []byte("null"), 0o644))
	_, err = Load(nullFile)
	assert.Error(t, err)

	badFile := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badFile, []byte("{"), 0o644))
	_, err = Load(badFile)
	assert.Error(t, err)
}
