// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/cts-structure/pkg/types"
)

// Publisher uploads a downloaded structure to secondary storage.
type Publisher interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Downloader fetches structures and writes them as JSON files.
type Downloader struct {
	Fetcher *Fetcher

	// OutputDir receives one <FileName(urn)> file per work.
	OutputDir string

	// Publisher, when set, receives a copy of every written file.
	Publisher Publisher

	// Delay is the pause between consecutive works in DownloadBatch.
	Delay time.Duration
}

// BatchResult holds the outcome of a batch download run.
type BatchResult struct {
	Downloaded int
	Failed     int
	Paths      []string
}

// Total returns the number of works processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Failed
}

// HasFailures reports whether any work failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// FileName returns the file name for a work URN: colons become hyphens.
func FileName(urn string) string {
	return strings.ReplaceAll(urn, ":", "-") + ".json"
}

// Download fetches the structure of urn and writes it to
// OutputDir/FileName(urn), replacing any existing file. If the fetch fails
// nothing is written and the error is returned.
func (d *Downloader) Download(ctx context.Context, urn string) (string, error) {
	ts, err := d.Fetcher.Fetch(ctx, urn)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(ts)
	if err != nil {
		return "", fmt.Errorf("marshaling structure: %w", err)
	}

	if err := os.MkdirAll(d.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", d.OutputDir, err)
	}

	name := FileName(urn)
	path := filepath.Join(d.OutputDir, name)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	if d.Publisher != nil {
		if err := d.Publisher.Put(ctx, name, data); err != nil {
			return path, fmt.Errorf("publishing %s: %w", name, err)
		}
	}
	return path, nil
}

// DownloadBatch downloads each URN in turn, printing per-work status and
// a summary to w. It continues after individual failures.
func (d *Downloader) DownloadBatch(ctx context.Context, urns []string, w io.Writer) BatchResult {
	var result BatchResult
	for i, urn := range urns {
		if i > 0 && d.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d.Delay):
			}
		}
		if ctx.Err() != nil {
			fmt.Fprintf(w, "failed: %s (%v)\n", urn, ctx.Err())
			result.Failed++
			continue
		}

		path, err := d.Download(ctx, urn)
		if err != nil {
			fmt.Fprintf(w, "failed: %s (%v)\n", urn, err)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "downloaded: %s\n", path)
		result.Downloaded++
		result.Paths = append(result.Paths, path)
	}
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d failed (total: %d)\n",
		result.Downloaded, result.Failed, result.Total())
	return result
}

// Load reads a structure written by Download.
func Load(path string) (*types.TextStructure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ts types.TextStructure
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if ts.URN == "" {
		return nil, fmt.Errorf("parsing %s: missing urn", path)
	}
	return &ts, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
