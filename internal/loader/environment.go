package loader

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment values. ENV.<TYPE>.<name> carries a record
// of a typed entity, ENV.<name> an environment property.
const EnvPrefix = "ENV."

// GatewayPrefix is the prefix environment properties are stored under
const GatewayPrefix = "gateway."

// Environment entity types
const (
	EnvPrivateKey  = "PRIVATE_KEY"
	EnvTrustedCert = "TRUSTED_CERT"
	EnvListenPort  = "LISTEN_PORT"
)

type envLoader func(b *bundle.Bundle, name, value string) error

var envLoaders = map[string]envLoader{
	EnvPrivateKey: func(b *bundle.Bundle, name, value string) error {
		pk := &bundle.PrivateKey{}
		if err := yaml.Unmarshal([]byte(value), pk); err != nil {
			return err
		}
		pk.Alias = name
		b.PrivateKeys[name] = pk
		return nil
	},
	EnvTrustedCert: func(b *bundle.Bundle, name, value string) error {
		tc := &bundle.TrustedCert{}
		if err := yaml.Unmarshal([]byte(value), tc); err != nil {
			return err
		}
		tc.Name = name
		b.TrustedCerts[name] = tc
		return nil
	},
	EnvListenPort: func(b *bundle.Bundle, name, value string) error {
		lp := &bundle.ListenPort{}
		if err := yaml.Unmarshal([]byte(value), lp); err != nil {
			return err
		}
		lp.Name = name
		b.ListenPorts[name] = lp
		return nil
	},
}

// LoadEnvironment builds the bundle of an environment from a flat set of
// values. Keys are routed by prefix:
//
//	ENV.PRIVATE_KEY.ssl   = {keystore: PKCS12_SOFTWARE, keyPassword: ...}
//	ENV.LISTEN_PORT.https = {protocol: HTTPS, port: 8443}
//	ENV.db.url            = jdbc:...      (stored as gateway.db.url)
//	gateway.db.url        = jdbc:...
//
// Other keys are ignored. Key material is looked up in the private key
// directory of dir, which may be empty.
func (l *Loader) LoadEnvironment(dir string, values map[string]string) (*bundle.Bundle, error) {
	b := bundle.New()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := values[key]
		switch {
		case strings.HasPrefix(key, EnvPrefix):
			rest := strings.TrimPrefix(key, EnvPrefix)
			if typ, name, ok := strings.Cut(rest, "."); ok && envLoaders[typ] != nil {
				if name == "" {
					return nil, fmt.Errorf("environment value %s: missing name", key)
				}
				if err := envLoaders[typ](b, name, value); err != nil {
					return nil, fmt.Errorf("environment value %s: %w", key, err)
				}
				continue
			}
			b.EnvironmentProperties[GatewayPrefix+rest] = value
		case strings.HasPrefix(key, GatewayPrefix):
			b.EnvironmentProperties[key] = value
		default:
			l.log.Debug().Str("key", key).Msg("ignoring environment value")
		}
	}

	if dir != "" {
		if err := l.loadKeyFiles(dir, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ReadEnvironmentFile reads a YAML or JSON map of environment values.
// Structured values, such as the record of an ENV.LISTEN_PORT entry, are
// kept as YAML text.
func ReadEnvironmentFile(fs afero.Fs, path string) (map[string]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading environment file: %w", err)
	}
	raw := make(map[string]yaml.Node)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding environment file %s: %w", filepath.Base(path), err)
	}
	values := make(map[string]string, len(raw))
	for k, node := range raw {
		if node.Kind == yaml.ScalarNode {
			values[k] = node.Value
			continue
		}
		out, err := yaml.Marshal(&node)
		if err != nil {
			return nil, fmt.Errorf("environment value %s: %w", k, err)
		}
		values[k] = string(out)
	}
	return values, nil
}
