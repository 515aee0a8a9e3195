package config

const (
	defaultDataDir             = "~/.local/share/pressline/data"
	defaultLogDir              = "~/.local/share/pressline/logs"
	defaultGeneratorBaseURL    = "https://api.openai.com/v1/chat/completions"
	defaultGeneratorModel      = "gpt-4o"
	defaultGeneratorTimeout    = 120
	defaultImageBaseURL        = "https://api.unsplash.com"
	defaultVideoBaseURL        = "https://www.googleapis.com/youtube/v3"
	defaultMediaTimeout        = 30
	defaultMediaMinWidth       = 1200
	defaultMediaMinHeight      = 800
	defaultMediaCacheTTL       = 60
	defaultPublisherStatus     = "publish"
	defaultPublisherTimeout    = 60
	defaultWordCount           = 3200
	defaultRetryAttempts       = 3
	defaultRetryBaseDelayMS    = 500
	defaultWordCountMarginPct  = 5
	defaultMaxConcurrency      = 4
	defaultRequestsPerMinute   = 30
	defaultPostIntervalSeconds = 0
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Generator: Generator{
			BaseURL:           defaultGeneratorBaseURL,
			Model:             defaultGeneratorModel,
			TimeoutSeconds:    defaultGeneratorTimeout,
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Media: Media{
			ImageBaseURL:      defaultImageBaseURL,
			VideoBaseURL:      defaultVideoBaseURL,
			MinWidth:          defaultMediaMinWidth,
			MinHeight:         defaultMediaMinHeight,
			TimeoutSeconds:    defaultMediaTimeout,
			CacheTTLMinutes:   defaultMediaCacheTTL,
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Publisher: Publisher{
			Status:              defaultPublisherStatus,
			TimeoutSeconds:      defaultPublisherTimeout,
			PostIntervalSeconds: defaultPostIntervalSeconds,
		},
		Pipeline: Pipeline{
			DefaultWordCount:  defaultWordCount,
			RetryAttempts:     defaultRetryAttempts,
			RetryBaseDelayMS:  defaultRetryBaseDelayMS,
			WordCountMarginPc: defaultWordCountMarginPct,
		},
		Batch: Batch{
			MaxConcurrency: defaultMaxConcurrency,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
