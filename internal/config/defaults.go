package config

const (
	defaultDataDir             = "~/.local/share/titlecache"
	defaultDatabaseName        = "titles.db"
	defaultDatasetsSubdir      = "datasets"
	defaultLogSubdir           = "logs"
	defaultRemoteBaseURL       = "https://api.imdbapi.dev"
	defaultRemoteBatchSize     = 5
	defaultRemoteTimeout       = 15
	defaultRemoteMaxRetries    = 5
	defaultRetryBaseDelayMS    = 2000
	defaultRetryMaxDelayMS     = 60000
	defaultRemoteWorkers       = 2
	defaultTitleType           = "movie"
	defaultCacheTTLHours       = 24
	defaultDatasetsBaseURL     = "https://datasets.imdbws.com/"
	defaultDatasetsMaxAgeHours = 24
	defaultDatasetsMinFreeMiB  = 512
	defaultSeederInterval      = 60
	defaultSeederProgressEvery = 100
	defaultAPIBind             = "127.0.0.1:8080"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTitlesFacet         = "$.primaryTitle"
	defaultGenresFacet         = "$.genres[*]"
	defaultCountriesFacet      = "$.originCountries[*].name"

	// MaxBatchSize is the largest id list the remote batchGet endpoint accepts.
	MaxBatchSize = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Remote: Remote{
			BaseURL:          defaultRemoteBaseURL,
			BatchSize:        defaultRemoteBatchSize,
			TimeoutSeconds:   defaultRemoteTimeout,
			MaxRetries:       defaultRemoteMaxRetries,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
			RetryMaxDelayMS:  defaultRetryMaxDelayMS,
			Workers:          defaultRemoteWorkers,
			TitleType:        defaultTitleType,
		},
		Cache: Cache{
			TTLHours: defaultCacheTTLHours,
		},
		Datasets: Datasets{
			BaseURL:     defaultDatasetsBaseURL,
			MaxAgeHours: defaultDatasetsMaxAgeHours,
			TitleTypes:  []string{defaultTitleType},
			MinFreeMiB:  defaultDatasetsMinFreeMiB,
		},
		Seeder: Seeder{
			IntervalSeconds: defaultSeederInterval,
			ProgressEvery:   defaultSeederProgressEvery,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Snapshot: Snapshot{
			Titles:    defaultTitlesFacet,
			Genres:    defaultGenresFacet,
			Countries: defaultCountriesFacet,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
