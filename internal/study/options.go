package study

import "github.com/rcliao/studymap/internal/logger"

type options struct {
	log      *logger.Logger
	debounce *Debouncer
}

// Option configures a controller.
type Option func(*options)

func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithDebouncer shares d between controllers so duplicate submissions from
// any view collapse.
func WithDebouncer(d *Debouncer) Option {
	return func(o *options) { o.debounce = d }
}

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
