package datasets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"titlecache/internal/config"
	"titlecache/internal/fetcher"
	"titlecache/internal/logging"
	"titlecache/internal/services"
)

// Dataset file names published by the bulk service.
const (
	TitleAkas       = "title.akas.tsv.gz"
	TitleBasics     = "title.basics.tsv.gz"
	TitleCrew       = "title.crew.tsv.gz"
	TitleEpisode    = "title.episode.tsv.gz"
	TitlePrincipals = "title.principals.tsv.gz"
	TitleRatings    = "title.ratings.tsv.gz"
	NameBasics      = "name.basics.tsv.gz"
)

// Files lists every known dataset.
var Files = []string{TitleAkas, TitleBasics, TitleCrew, TitleEpisode, TitlePrincipals, TitleRatings, NameBasics}

const (
	partialSuffix   = ".part"
	downloadTimeout = 30 * time.Minute
)

// Downloader refreshes dataset files that are missing or too old.
type Downloader struct {
	client  *fetcher.Client
	baseURL string
	dir     string
	maxAge  time.Duration
	minFree uint64
	logger  *slog.Logger
	now     func() time.Time
	free    func(path string) (uint64, error)
}

// Option configures optional Downloader behavior.
type Option func(*Downloader)

// WithClock overrides the time source used for age checks.
func WithClock(now func() time.Time) Option {
	return func(d *Downloader) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) { d.logger = logger }
}

// New builds a Downloader from cfg that fetches through client.
func New(cfg *config.Config, client *fetcher.Client, opts ...Option) *Downloader {
	d := &Downloader{
		client:  client,
		baseURL: cfg.Datasets.BaseURL,
		dir:     cfg.Paths.DatasetsDir,
		maxAge:  cfg.DatasetMaxAge(),
		minFree: uint64(cfg.Datasets.MinFreeMiB) << 20,
		now:     time.Now,
		free:    freeBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "datasets")
	return d
}

// NewFromConfig builds a Downloader with a retrying client sized for large
// downloads.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Downloader {
	client := fetcher.New(
		fetcher.WithTimeout(downloadTimeout),
		fetcher.WithRetryMaxAttempts(cfg.Remote.MaxRetries),
		fetcher.WithRetryBackoff(cfg.RetryBaseDelay(), cfg.RetryMaxDelay()),
		fetcher.WithLogger(logger),
	)
	return New(cfg, client, WithLogger(logger))
}

// Dir returns the directory holding the dataset files.
func (d *Downloader) Dir() string { return d.dir }

// Path returns the local path of the named dataset.
func (d *Downloader) Path(name string) string { return filepath.Join(d.dir, name) }

// Ensure downloads each named file that is missing or older than the
// configured maximum age. The result reports, per name, whether a download
// happened. With no names every known dataset is checked.
func (d *Downloader) Ensure(ctx context.Context, files ...string) ([]bool, error) {
	if len(files) == 0 {
		files = Files
	}
	for _, name := range files {
		if !slices.Contains(Files, name) {
			return nil, services.Wrap(services.ErrValidation, "datasets", "ensure", fmt.Sprintf("unknown dataset %q", name), nil)
		}
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "datasets", "ensure", "create datasets directory", err)
	}

	downloaded := make([]bool, len(files))
	for i, name := range files {
		stale, err := d.stale(name)
		if err != nil {
			return downloaded, services.Wrap(services.ErrStorage, "datasets", "ensure", "stat "+name, err)
		}
		if !stale {
			continue
		}
		if err := d.download(ctx, name); err != nil {
			return downloaded, err
		}
		downloaded[i] = true
	}
	return downloaded, nil
}

func (d *Downloader) stale(name string) (bool, error) {
	info, err := os.Stat(d.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if d.maxAge <= 0 {
		return false, nil
	}
	return d.now().Sub(info.ModTime()) > d.maxAge, nil
}

func (d *Downloader) download(ctx context.Context, name string) error {
	if d.minFree > 0 {
		free, err := d.free(d.dir)
		if err != nil {
			return services.Wrap(services.ErrStorage, "datasets", "check free space", d.dir, err)
		}
		if free < d.minFree {
			return services.Wrap(services.ErrStorage, "datasets", "check free space",
				fmt.Sprintf("%d MiB free in %s, need %d MiB", free>>20, d.dir, d.minFree>>20), nil)
		}
	}

	target := d.Path(name)
	tempPath := target + partialSuffix
	url := d.baseURL + name
	start := d.now()
	d.logger.Info("downloading dataset",
		logging.String(logging.FieldEventType, "dataset_download_started"),
		logging.String("file", name),
		logging.String("url", url),
	)

	var written countingWriter
	err := d.client.Download(ctx, url, func() (io.WriteCloser, error) {
		f, err := os.Create(tempPath)
		if err != nil {
			return nil, err
		}
		written = countingWriter{w: f}
		return &written, nil
	})
	if err != nil {
		_ = os.Remove(tempPath)
		logging.WarnWithContext(d.logger, "dataset download failed", "dataset_download_failed",
			logging.String("file", name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access or datasets.base_url"),
			logging.String(logging.FieldImpact, "seeding continues with the previous copy if one exists"),
		)
		return fmt.Errorf("download %s: %w", name, err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return services.Wrap(services.ErrStorage, "datasets", "download", "replace "+name, err)
	}
	d.logger.Info("dataset downloaded",
		logging.String(logging.FieldEventType, "dataset_downloaded"),
		logging.String("file", name),
		logging.Int64("bytes", written.n),
		logging.Duration("elapsed", d.now().Sub(start)),
	)
	return nil
}

type countingWriter struct {
	w io.WriteCloser
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (c *countingWriter) Close() error { return c.w.Close() }
