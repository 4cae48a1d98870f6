// Package config loads the bot's declarative configuration: identity, server endpoint and the
// per-channel policies (join password, operator-grant rule).
//
// The document is TOML. Scalar top-level keys describe the bot; every top-level table is a
// channel policy named by the table key:
//
//	nick = "chanop"
//	user = "chanop"
//	real = "channel operator bot"
//	host = "irc.libera.chat"
//	port = 6667
//
//	["#chanop"]
//	oper = "*!*@trusted.example"
//
//	["#secret"]
//	pass = "hunter2"
//	oper = "/^(alice|bob)!~?\\w+@.*\\.example$/"
//
// Process-level knobs (HTTP address, audit sinks, log format) are environment settings, see Settings.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/onnwee/chanop/irc"
)

// DefaultPort is used when the document omits port.
const DefaultPort = 6667

// EnvPrefix scopes environment overrides of scalar document keys, e.g. CHANOP_CFG_HOST.
const EnvPrefix = "CHANOP_CFG_"

var (
	// ErrMissingKey is returned when a required key is absent or empty.
	ErrMissingKey = errors.New("missing required config key")
	// ErrInvalidRule is returned when an operator-grant rule does not compile.
	ErrInvalidRule = errors.New("invalid operator rule")
	// ErrInvalidValue is returned for out-of-range or mistyped values.
	ErrInvalidValue = errors.New("invalid config value")
)

// Network selects the gateway implementation.
type Network string

const (
	NetworkIRC    Network = "irc"
	NetworkTwitch Network = "twitch"
)

// Identity is who the bot says it is. Fixed for a session.
type Identity struct {
	Nick     string
	User     string
	RealName string
}

// ChannelPolicy is the desired state for one channel.
type ChannelPolicy struct {
	Name     string
	Password string
	Oper     *Mask
}

// Config is the complete, validated document. Treat it as immutable once returned by Load;
// reloads build a new Config and swap the pointer.
type Config struct {
	Identity Identity
	Host     string
	Port     int
	IPv6     bool
	TLS      bool
	Network  Network
	Channels map[string]ChannelPolicy

	// Source is the path the document was read from; Reload reads it again.
	Source string
}

// Endpoint returns the connection target.
func (c *Config) Endpoint() irc.Endpoint {
	return irc.Endpoint{Host: c.Host, Port: c.Port, IPv6: c.IPv6, TLS: c.TLS}
}

// Policy returns the policy for channel. Absent channels yield ok=false: no rule, no password.
func (c *Config) Policy(channel string) (ChannelPolicy, bool) {
	if c == nil {
		return ChannelPolicy{}, false
	}
	p, ok := c.Channels[channel]
	return p, ok
}

// ChannelNames returns the configured channel names sorted.
func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads and validates the document at path. Nothing is returned on error, so a failed
// reload can never leave a half-built Config in place.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: config path", ErrMissingKey)
	}
	k, err := withDefaults()
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg, err := fromKoanf(k)
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}

// Parse builds a Config from an in-memory TOML document. Used by tests and the check command.
func Parse(doc []byte) (*Config, error) {
	k, err := withDefaults()
	if err != nil {
		return nil, err
	}
	if err := k.Load(rawbytes.Provider(doc), toml.Parser()); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Identity: Identity{
			Nick:     k.String("nick"),
			User:     k.String("user"),
			RealName: k.String("real"),
		},
		Host:     k.String("host"),
		Port:     k.Int("port"),
		IPv6:     k.Bool("ipv6"),
		TLS:      k.Bool("tls"),
		Network:  Network(strings.ToLower(k.String("network"))),
		Channels: map[string]ChannelPolicy{},
	}

	// Channel sections are read from the raw tree: channel names may contain the key delimiter.
	for name, v := range k.Raw() {
		section, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		p, err := channelPolicy(name, section)
		if err != nil {
			return nil, err
		}
		cfg.Channels[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func channelPolicy(name string, section map[string]interface{}) (ChannelPolicy, error) {
	p := ChannelPolicy{Name: name}
	if v, ok := section["pass"]; ok {
		s, ok := v.(string)
		if !ok {
			return p, fmt.Errorf("%w: [%s] pass must be a string", ErrInvalidValue, name)
		}
		p.Password = s
	}
	if v, ok := section["oper"]; ok {
		s, ok := v.(string)
		if !ok {
			return p, fmt.Errorf("%w: [%s] oper must be a string", ErrInvalidValue, name)
		}
		if strings.TrimSpace(s) != "" {
			m, err := CompileMask(s)
			if err != nil {
				return p, fmt.Errorf("[%s]: %w", name, err)
			}
			p.Oper = m
		}
	}
	return p, nil
}

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	required := []struct{ key, val string }{
		{"nick", c.Identity.Nick},
		{"user", c.Identity.User},
		{"real", c.Identity.RealName},
		{"host", c.Host},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return fmt.Errorf("%w: %s", ErrMissingKey, r.key)
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidValue, c.Port)
	}
	switch c.Network {
	case NetworkIRC, NetworkTwitch:
	default:
		return fmt.Errorf("%w: network %q (want irc or twitch)", ErrInvalidValue, c.Network)
	}
	for name := range c.Channels {
		if name == "" || strings.ContainsAny(name, " ,\a") {
			return fmt.Errorf("%w: channel name %q", ErrInvalidValue, name)
		}
	}
	return nil
}

// defaults are the values of optional document keys.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":    DefaultPort,
		"ipv6":    false,
		"tls":     false,
		"network": string(NetworkIRC),
	}
}

func withDefaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	return k, nil
}
