// Package source loads raw play-by-play games from the filesystem.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
)

const defaultConcurrency = 8

// FileError is a file that could not be read or decoded.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// Result holds the games of a directory plus the files that were skipped.
type Result struct {
	Games  []model.RawGame
	Failed []FileError
}

// DirLoader reads every *.json file of a directory.
type DirLoader struct {
	dir         string
	concurrency int
	log         logger.Logger
}

// Option applies a configuration option to the DirLoader.
type Option func(*DirLoader)

// WithLogger sets the loader's logger.
func WithLogger(l logger.Logger) Option {
	return func(d *DirLoader) {
		if l != nil {
			d.log = l
		}
	}
}

// WithConcurrency caps concurrent file reads.
func WithConcurrency(n int) Option {
	return func(l *DirLoader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// NewDirLoader creates a loader for dir.
func NewDirLoader(dir string, opts ...Option) *DirLoader {
	l := &DirLoader{
		dir:         dir,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Get().Named("source")
	}
	return l
}

// Load reads and decodes all game files. A bad file is reported in
// Result.Failed and does not stop the others.
func (l *DirLoader) Load(ctx context.Context) (Result, error) {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.json"))
	if err != nil {
		return Result{}, fmt.Errorf("list %s: %w", l.dir, err)
	}
	sort.Strings(paths)

	perFile := make([][]model.RawGame, len(paths))
	var (
		mu     sync.Mutex
		failed []FileError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			games, err := LoadFile(path)
			if err != nil {
				l.log.Warn(gctx, "skipping game file", logger.String("path", path), logger.Error(err))
				mu.Lock()
				failed = append(failed, FileError{Path: path, Err: err})
				mu.Unlock()
				return nil
			}
			perFile[i] = games
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("load %s: %w", l.dir, err)
	}

	var res Result
	for _, games := range perFile {
		res.Games = append(res.Games, games...)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Path < failed[j].Path })
	res.Failed = failed

	l.log.Info(ctx, "loaded games",
		logger.String("dir", l.dir),
		logger.Int("files", len(paths)),
		logger.Int("games", len(res.Games)),
		logger.Int("failed", len(failed)))
	return res, nil
}

// LoadFile reads and decodes one file.
func LoadFile(path string) ([]model.RawGame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
