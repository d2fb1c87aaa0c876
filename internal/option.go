package internal

import (
	"errors"
	"io"
	"os"
)

// Option configures Run and RunMCP.
type Option func(*application)

type application struct {
	config *Config
	logOut io.Writer
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errors.New("config is required")
	}
	return app, nil
}

// WithConfig sets the configuration. It is required.
func WithConfig(cfg *Config) Option {
	return func(a *application) { a.config = cfg }
}

// WithLogOutput redirects console logs, stdout by default. RunMCP switches
// to stderr since stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) { a.logOut = w }
}
