package noteservice

import (
	"log/slog"

	"github.com/starford/notebridge/internal/render"
	"github.com/starford/notebridge/internal/textproc"
)

// Option is a functional option for configuring a Service.
type Option func(*Service)

// WithLogger sets the logger used for pipeline warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTextOptions sets the link prefixes of the text pipeline.
func WithTextOptions(o textproc.Options) Option {
	return func(s *Service) {
		s.textOpts = o
	}
}

// WithRenderOptions sets HTML rendering options. The internal link prefix is
// always taken from the text options.
func WithRenderOptions(o render.Options) Option {
	return func(s *Service) {
		s.renderOpts = o
	}
}

// WithIDProvider overrides where known note ids come from.
func WithIDProvider(p IDProvider) Option {
	return func(s *Service) {
		if p != nil {
			s.ids = p
		}
	}
}
