package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

type FileStatus string

const (
	StatusUploaded FileStatus = "UPLOADED"
	StatusValid    FileStatus = "VALID"
	StatusInvalid  FileStatus = "INVALID"
	StatusFailed   FileStatus = "FAILED"
)

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	Path    string
	Status  FileStatus
	Items   int
	Summary ImportSummary
	Err     error
}

// Failed reports whether the file, or any item in it, was not imported.
func (r FileResult) Failed() bool {
	return r.Status == StatusInvalid || r.Status == StatusFailed || r.Summary.Failed > 0
}

type Report struct {
	Files []FileResult
}

func (r Report) FailedFiles() int {
	n := 0
	for _, f := range r.Files {
		if f.Failed() {
			n++
		}
	}
	return n
}

func (r Report) Totals() (created, updated, failed int) {
	for _, f := range r.Files {
		created += f.Summary.Created
		updated += f.Summary.Updated
		failed += f.Summary.Failed
	}
	return created, updated, failed
}

// FindFiles lists files in dir matching pattern in lexical order.
func FindFiles(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Importer is the upload side of a batch. *Client implements it.
type Importer interface {
	Import(ctx context.Context, name string, doc []byte) (ImportSummary, error)
}

// Run validates every file locally and uploads the valid ones through imp.
// A nil imp validates only. onFile, if set, sees each result as it completes.
func Run(ctx context.Context, imp Importer, files []string, onFile func(FileResult)) Report {
	var report Report
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		res := processFile(ctx, imp, path)
		report.Files = append(report.Files, res)
		if onFile != nil {
			onFile(res)
		}
	}
	return report
}

func processFile(ctx context.Context, imp Importer, path string) FileResult {
	logger := log.Ctx(ctx).With().Str("file", path).Logger()
	res := FileResult{Path: path}

	doc, err := os.ReadFile(path)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		logger.Error().Err(err).Msg("Failed to read file")
		return res
	}

	res.Items, err = Validate(doc)
	if err != nil {
		res.Status, res.Err = StatusInvalid, err
		logger.Warn().Err(err).Msg("Skipping invalid document")
		return res
	}

	if imp == nil {
		res.Status = StatusValid
		return res
	}

	res.Summary, err = imp.Import(ctx, filepath.Base(path), doc)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		logger.Error().Err(err).Msg("Upload failed")
		return res
	}
	res.Status = StatusUploaded
	logger.Debug().
		Int("created", res.Summary.Created).
		Int("updated", res.Summary.Updated).
		Int("failed", res.Summary.Failed).
		Msg("Document uploaded")
	return res
}
