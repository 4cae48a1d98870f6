package config

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
)

// Encode renders c back into the document format with defaults filled in. Parse(Encode(c))
// yields an equivalent Config. With redact set, channel passwords are replaced by "***".
func (c *Config) Encode(redact bool) ([]byte, error) {
	doc := map[string]any{
		"nick":    c.Identity.Nick,
		"user":    c.Identity.User,
		"real":    c.Identity.RealName,
		"host":    c.Host,
		"port":    c.Port,
		"ipv6":    c.IPv6,
		"tls":     c.TLS,
		"network": string(c.Network),
	}
	for name, p := range c.Channels {
		section := map[string]any{}
		if p.Password != "" {
			section["pass"] = p.Password
			if redact {
				section["pass"] = "***"
			}
		}
		if p.Oper != nil {
			section["oper"] = p.Oper.String()
		}
		doc[name] = section
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
