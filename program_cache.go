package doc

// ProgramCache stores compiled condition programs keyed by expression text.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache shares a compiled-program cache across condition
// evaluations.
func WithProgramCache(cache ProgramCache) Option {
	return func(c *controllerConfig) {
		c.programCache = cache
	}
}
