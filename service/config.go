package service

import (
	"os"
	"strconv"
	"time"
)

const (
	defaultMaxFileSize    = 50 * 1024 * 1024 // 50MB
	defaultMaxTextLength  = 8000             // chars fed to AI collaborators
	defaultSectionLineCap = 50
	defaultEmbeddingDim   = 768
	defaultMaxRetries     = 3
	defaultInitialBackoff = time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultLLMTimeout     = 120 * time.Second
)

// Config carries the pipeline tunables. Zero values are replaced with
// defaults by ConfigFromEnv or by the services that consume it.
type Config struct {
	MaxFileSize    int64
	MaxTextLength  int
	SectionLineCap int
	EmbeddingDim   int
	MaxRetries     int
	InitialBackoff time.Duration
	RequestTimeout time.Duration
	LLMTimeout     time.Duration

	// AllowedMimeTypes is the upload allow-list, keyed by sniffed MIME type
	AllowedMimeTypes map[string]bool
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		MaxFileSize:    defaultMaxFileSize,
		MaxTextLength:  defaultMaxTextLength,
		SectionLineCap: defaultSectionLineCap,
		EmbeddingDim:   defaultEmbeddingDim,
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		RequestTimeout: defaultRequestTimeout,
		LLMTimeout:     defaultLLMTimeout,
		AllowedMimeTypes: map[string]bool{
			"application/pdf": true,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
			"text/plain": true,
		},
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back to
// defaults for anything unset
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("MAX_FILE_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxFileSize = n
		}
	}
	if v := os.Getenv("MAX_TEXT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTextLength = n
		}
	}
	if v := os.Getenv("SECTION_LINE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SectionLineCap = n
		}
	}
	if v := os.Getenv("AI_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRetries = n
		}
	}

	return cfg
}
