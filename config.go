package doc

import (
	"fmt"
	"time"

	"github.com/goliatone/go-document/internal/hydrate"
	"github.com/goliatone/go-document/pkg/activity"
)

// Config is the recognized option surface for a controller. The zero value
// disables auto-save and per-change validation. Routes are carried for the
// caller's post-operation navigation and never interpreted here.
type Config struct {
	AutoSave           bool              `json:"auto_save"`
	AutoSaveIntervalMS int               `json:"auto_save_interval"`
	AutoSaveMaxRetries int               `json:"auto_save_max_retries"`
	ValidateOnChange   bool              `json:"validate_on_change"`
	ValidateOnAutoSave bool              `json:"validate_on_auto_save"`
	Routes             map[string]string `json:"routes,omitempty"`
}

// AutoSaveInterval returns the debounce interval, falling back to the
// 30 second default.
func (c Config) AutoSaveInterval() time.Duration {
	if c.AutoSaveIntervalMS <= 0 {
		return DefaultAutoSaveInterval
	}
	return time.Duration(c.AutoSaveIntervalMS) * time.Millisecond
}

// ParseConfig decodes a loosely-typed option payload, the shape callers pass
// over configuration boundaries, into a Config.
func ParseConfig(doctype string, payload map[string]any) (Config, error) {
	decoder := hydrate.NewDecoder(
		hydrate.WithUseNumber[Config](),
		hydrate.WithPostHook[Config](func(_ hydrate.Context, cfg *Config) error {
			if cfg.AutoSave && cfg.AutoSaveMaxRetries < 0 {
				return fmt.Errorf("auto_save_max_retries must not be negative")
			}
			if cfg.AutoSaveMaxRetries == 0 {
				cfg.AutoSaveMaxRetries = DefaultAutoSaveMaxRetries
			}
			return nil
		}),
	)
	return decoder.Decode(hydrate.Context{Doctype: doctype}, payload)
}

// Option configures a controller at construction time.
type Option func(*controllerConfig)

type controllerConfig struct {
	cfg           Config
	transport     Transport
	schemas       SchemaSource
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	logger        EvaluatorLogger
	hooks         []Hooks
	activityHooks activity.Hooks
	activityCfg   activity.Config
}

func applyOptions(opts []Option) controllerConfig {
	cfg := controllerConfig{
		cfg: Config{AutoSaveMaxRetries: DefaultAutoSaveMaxRetries},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithConfig replaces the whole recognized-option surface.
func WithConfig(cfg Config) Option {
	return func(c *controllerConfig) {
		c.cfg = cfg
	}
}

// WithTransport wires the persistence collaborator.
func WithTransport(transport Transport) Option {
	return func(c *controllerConfig) {
		c.transport = transport
	}
}

// WithSchemaSource wires the field catalog provider.
func WithSchemaSource(source SchemaSource) Option {
	return func(c *controllerConfig) {
		c.schemas = source
	}
}

// WithAutoSave enables the auto-save scheduler. A zero interval keeps the
// default; maxRetries below one keeps the default of three.
func WithAutoSave(interval time.Duration, maxRetries int) Option {
	return func(c *controllerConfig) {
		c.cfg.AutoSave = true
		if interval > 0 {
			c.cfg.AutoSaveIntervalMS = int(interval / time.Millisecond)
		}
		if maxRetries > 0 {
			c.cfg.AutoSaveMaxRetries = maxRetries
		}
	}
}

// WithValidateOnChange toggles the per-field validation pass on SetValue.
func WithValidateOnChange(enabled bool) Option {
	return func(c *controllerConfig) {
		c.cfg.ValidateOnChange = enabled
	}
}

// WithValidateOnAutoSave toggles full validation before scheduled saves.
func WithValidateOnAutoSave(enabled bool) Option {
	return func(c *controllerConfig) {
		c.cfg.ValidateOnAutoSave = enabled
	}
}

// WithHooks installs a declarative hook map. May be given more than once;
// handlers accumulate in registration order.
func WithHooks(hooks Hooks) Option {
	return func(c *controllerConfig) {
		c.hooks = append(c.hooks, hooks)
	}
}

// WithEvaluator configures the engine used for field display conditions.
func WithEvaluator(evaluator Evaluator) Option {
	return func(c *controllerConfig) {
		c.evaluator = evaluator
	}
}

// WithEvaluatorLogger attaches a logger for condition evaluations.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(c *controllerConfig) {
		if logger == nil {
			c.logger = noopEvaluatorLogger{}
			return
		}
		c.logger = logger
	}
}

// WithFunctionRegistry exposes custom helpers to condition expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(c *controllerConfig) {
		if registry == nil {
			return
		}
		c.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for condition expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(c *controllerConfig) {
		if c.functions == nil {
			c.functions = NewFunctionRegistry()
		}
		_ = c.functions.Register(name, fn)
	}
}

// WithActivityHooks attaches audit-trail hooks notified after successful
// lifecycle operations. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(c *controllerConfig) {
		normalized := make([]activity.ActivityHook, 0, len(hooks))
		for _, hook := range hooks {
			if hook == nil {
				continue
			}
			normalized = append(normalized, hook)
		}
		if len(normalized) == 0 {
			return
		}
		c.activityHooks = activity.Hooks(normalized)
		if !c.activityCfg.Enabled {
			c.activityCfg = activity.Config{Enabled: true}
		}
	}
}

// WithActivityConfig overrides activity emission defaults.
func WithActivityConfig(cfg activity.Config) Option {
	return func(c *controllerConfig) {
		c.activityCfg = cfg
	}
}
