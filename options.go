package docgo

import (
	"log/slog"

	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/persist"
)

type options struct {
	codec       codec.Codec
	compression persist.Compression
	logger      *Logger
}

// Option configures Open behavior.
type Option func(*options)

// WithCodec configures the codec used for encoding and decoding collection
// files. Every built-in codec is JSON-semantics-preserving, so switching
// codecs between runs is safe.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures transparent compression of collection files.
// Files written with a different setting are still read; they are rewritten
// in the configured format on their next flush.
func WithCompression(c persist.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := docgo.NewJSONLogger(slog.LevelInfo)
//	db, _ := docgo.Open("./data", docgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
