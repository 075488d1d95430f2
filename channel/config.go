package channel

import "github.com/arcwire/reactor/api"

// Config is the concrete api.Config: a recognized-option surface backed
// by an api.OptionMap. Set consults the owning channel's transport via
// SupportsOption and, per spec §6, logs a warning and skips any
// configured option the transport doesn't understand rather than
// storing it.
type Config struct {
	options   *api.OptionMap
	transport api.Transport
}

// NewConfig returns an empty Config whose Set checks transport's
// SupportsOption before applying a value.
func NewConfig(transport api.Transport) *Config {
	return &Config{options: api.NewOptionMap(), transport: transport}
}

func (c *Config) Set(key api.OptionKey, value any) error {
	if value != nil && c.transport != nil && !c.transport.SupportsOption(key) {
		log.Warn().Str("option", key.Name()).Msg("option not supported by this channel's transport, skipping")
		return nil
	}
	return c.options.Set(key, value)
}

func (c *Config) Get(key api.OptionKey) (any, bool) {
	return c.options.Get(key)
}

func (c *Config) Options() *api.OptionMap { return c.options }
