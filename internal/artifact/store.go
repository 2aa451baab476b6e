// Package artifact loads the classifier and the client feature table once at
// startup and keeps them in memory, read-only.
package artifact

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/photoli93/Projet-7/internal/classifier"
	"github.com/photoli93/Projet-7/internal/features"
	"github.com/photoli93/Projet-7/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrArtifactMissing = errors.New("artifact missing")
	ErrArtifactEmpty   = errors.New("artifact empty")
	ErrArtifactCorrupt = errors.New("artifact corrupt")
	ErrDataLoad        = errors.New("feature data load failed")
)

// Store holds the loaded classifier and feature table.
type Store struct {
	Classifier classifier.Classifier
	Features   *features.Table

	ModelFormat string
	ModelBytes  int64
	// Fingerprint identifies the model bytes and table contents; it changes
	// whenever either artifact does.
	Fingerprint string
}

// TableSource produces the feature table from something other than a CSV
// file (the SQL repository).
type TableSource interface {
	Load(ctx context.Context, table, idColumn string) (*features.Table, error)
}

type Options struct {
	ModelPath   string
	ModelFormat string // lightgbm|logistic, default lightgbm

	// csv source
	DataPath string
	IDColumn string

	// sql source; used instead of DataPath when set
	Source TableSource
	Table  string
}

// Load reads the model artifact then the feature table. Any failure is
// wrapped in one of the Err* sentinels and is meant to abort startup.
func Load(ctx context.Context, opts Options, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ModelFormat == "" {
		opts.ModelFormat = classifier.FormatLightGBM
	}

	raw, err := readModel(opts.ModelPath)
	if err != nil {
		return nil, err
	}
	clf, err := classifier.Decode(opts.ModelFormat, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupt, err)
	}
	size := int64(len(raw))
	log.Info("model artifact loaded",
		zap.String("path", opts.ModelPath),
		zap.String("format", opts.ModelFormat),
		zap.Int64("size_bytes", size),
	)

	tbl, err := loadTable(ctx, opts)
	if err != nil {
		return nil, err
	}
	log.Info("feature table loaded",
		zap.Int("rows", tbl.Len()),
		zap.Int("columns", len(tbl.Columns())),
	)

	metrics.ArtifactBytes.Set(float64(size))
	metrics.FeatureRows.Set(float64(tbl.Len()))

	return &Store{
		Classifier:  clf,
		Features:    tbl,
		ModelFormat: opts.ModelFormat,
		ModelBytes:  size,
		Fingerprint: Fingerprint(raw, tbl),
	}, nil
}

// Fingerprint hashes the raw model artifact together with the table header
// and every row.
func Fingerprint(model []byte, tbl *features.Table) string {
	d := xxhash.New()
	_, _ = d.Write(model)
	for _, c := range tbl.Columns() {
		_, _ = d.WriteString(c)
		_, _ = d.Write([]byte{0})
	}
	var buf [8]byte
	for i := 0; i < tbl.Len(); i++ {
		for _, v := range tbl.Row(i) {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = d.Write(buf[:])
		}
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func readModel(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: model %s", ErrArtifactMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: model %s has zero length", ErrArtifactEmpty, path)
	}
	return raw, nil
}

func loadTable(ctx context.Context, opts Options) (*features.Table, error) {
	if opts.Source != nil {
		tbl, err := opts.Source.Load(ctx, opts.Table, opts.IDColumn)
		if err != nil {
			return nil, fmt.Errorf("%w: table %s: %w", ErrDataLoad, opts.Table, err)
		}
		return tbl, nil
	}

	f, err := os.Open(opts.DataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: data %s", ErrArtifactMissing, opts.DataPath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrDataLoad, opts.DataPath, err)
	}
	defer f.Close()

	tbl, err := features.ReadCSV(bufio.NewReader(f), opts.IDColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataLoad, opts.DataPath, err)
	}
	return tbl, nil
}
