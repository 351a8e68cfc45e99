package log

// Config configures the global logger. Mirrors config.LogConfig's shape
// one level down so internal/log has no import-cycle dependency on
// internal/config.
type Config struct {
	Level  string
	Format string // "text" or "json"
	Time   string // time.Format layout, used only by the "text" formatter
	File   FileConfig
}

// FileConfig configures an additional rotated file output.
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}
