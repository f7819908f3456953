package types

// Processing defaults
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
	DefaultMaxWorkers   = 4
)

// ProcessingConfig controls chunking and fan-out. It is read-only once
// validated and shared by value across all chunk tasks.
type ProcessingConfig struct {
	ChunkSize    int  `yaml:"chunk_size" split_words:"true"`
	ChunkOverlap int  `yaml:"chunk_overlap" split_words:"true"`
	MaxWorkers   int  `yaml:"max_workers" split_words:"true"`
	Markdown     bool `yaml:"markdown"` // Also split at markdown headings
}

// DefaultProcessingConfig returns the defaults used by the CLI
func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		MaxWorkers:   DefaultMaxWorkers,
	}
}

// ValidateChunking checks the chunk size and overlap only
func (c ProcessingConfig) ValidateChunking() error {
	if c.ChunkSize <= 0 {
		return ConfigError("chunk size must be positive, got %d", c.ChunkSize)
	}

	if c.ChunkOverlap < 0 {
		return ConfigError("chunk overlap cannot be negative, got %d", c.ChunkOverlap)
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return ConfigError("chunk overlap (%d) must be smaller than chunk size (%d)", c.ChunkOverlap, c.ChunkSize)
	}

	return nil
}

// Validate checks all processing settings
func (c ProcessingConfig) Validate() error {
	if err := c.ValidateChunking(); err != nil {
		return err
	}

	if c.MaxWorkers <= 0 {
		return ConfigError("worker count must be positive, got %d", c.MaxWorkers)
	}

	return nil
}
