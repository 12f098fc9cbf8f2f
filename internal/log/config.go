package log

// Config controls logger construction.
type Config struct {
	// Name is attached to every entry as the "logger" field.
	Name string `conf:"name" yaml:"name" json:"name"`

	// Level is one of debug, info, warn, error.
	Level string `conf:"level" yaml:"level" json:"level"`

	// Format is one of json, console.
	Format string `conf:"format" yaml:"format" json:"format"`

	// Output is one of stdout, stderr, file.
	Output string `conf:"output" yaml:"output" json:"output"`

	// File configures rotation when Output is file.
	File FileConfig `conf:"file" yaml:"file" json:"file"`

	// Debug enables caller annotation and stack traces on error entries.
	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
}

// FileConfig configures lumberjack based log rotation.
type FileConfig struct {
	Path       string `conf:"path" yaml:"path" json:"path"`
	MaxSize    int    `conf:"max_size" yaml:"max_size" json:"max_size"`
	MaxBackups int    `conf:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `conf:"max_age" yaml:"max_age" json:"max_age"`
	Compress   bool   `conf:"compress" yaml:"compress" json:"compress"`
}
