package config

const (
	defaultDataDir               = "~/.local/share/blindtest"
	defaultLogDir                = "~/.local/share/blindtest/logs"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultExportOutput          = "output.mp4"
	defaultProbeConcurrency      = 4
	defaultTerminateGraceSeconds = 5
	defaultArchiveCompression    = CompressionNone
	defaultServerBind            = "127.0.0.1:7590"
	defaultEventsPerSecond       = 4
	defaultNotifyTimeoutSeconds  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Archive compression modes.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Export: Export{
			DefaultOutput:         defaultExportOutput,
			ProbeConcurrency:      defaultProbeConcurrency,
			TerminateGraceSeconds: defaultTerminateGraceSeconds,
		},
		Archive: Archive{
			Compression: defaultArchiveCompression,
		},
		Server: Server{
			Bind:            defaultServerBind,
			EventsPerSecond: defaultEventsPerSecond,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
