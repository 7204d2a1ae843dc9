package config

const (
	defaultDataDir            = "~/.local/share/bgjob"
	defaultBusyTimeoutMS      = 5000
	defaultMaxRetries         = 3
	defaultTimeEstimate       = 20
	defaultMaxTraversalDepth  = 1024
	defaultClaimAttempts      = 3
	defaultWorkerQueue        = ""
	defaultWorkerConcurrency  = 1
	defaultPollInterval       = 5
	defaultErrorRetryInterval = 10
	defaultRateBurst          = 1
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	databaseFileName          = "bgjob.db"
	logFileName               = "bgjob.log"
	lockDirName               = "locks"
	defaultConfigLocation     = "~/.config/bgjob/config.toml"
	projectConfigFileName     = "bgjob.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Store: Store{
			BusyTimeoutMS: defaultBusyTimeoutMS,
		},
		Jobs: Jobs{
			DefaultMaxRetries:   defaultMaxRetries,
			DefaultTimeEstimate: defaultTimeEstimate,
			MaxTraversalDepth:   defaultMaxTraversalDepth,
			ClaimAttempts:       defaultClaimAttempts,
		},
		Worker: Worker{
			Queue:              defaultWorkerQueue,
			Concurrency:        defaultWorkerConcurrency,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			RateBurst:          defaultRateBurst,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
