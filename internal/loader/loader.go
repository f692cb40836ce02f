// Package loader reads a gateway configuration source tree into a
// bundle.Bundle.
//
// A source tree looks like:
//
//	policy/<folder path>/<name>.xml     policy and service bodies
//	config/policies.yml                 stable policy identities, by path
//	config/services.yml                 services, keyed by policy path
//	config/encass.yml                   encapsulated assertions, by name
//	config/private-keys.yml             private keys, by alias
//	config/privateKeys/<alias>.p12      key material (.p12, .pfx or .pem)
//	config/trusted-certs.yml            trusted certificates, by name
//	config/certificates/<name>.pem      certificates of trusted certs
//	config/listen-ports.yml             listen ports, by name
//	config/static-properties.yml        cluster properties
//	config/env-properties.yml           environment properties
//
// Every config file may also be written as .yaml or .json.
package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Source tree layout
const (
	PolicyDir        = "policy"
	ConfigDir        = "config"
	PrivateKeyDir    = "config/privateKeys"
	CertificateDir   = "config/certificates"
	PoliciesFile     = "policies"
	ServicesFile     = "services"
	EncassFile       = "encass"
	PrivateKeysFile  = "private-keys"
	TrustedCertsFile = "trusted-certs"
	ListenPortsFile  = "listen-ports"
	StaticPropsFile  = "static-properties"
	EnvironmentFile  = "env-properties"
)

// ConfigExtensions are tried in order when looking for a config file
var ConfigExtensions = []string{".yml", ".yaml", ".json"}

var (
	// ErrNoPolicyDir is returned when the source tree has no policy directory
	ErrNoPolicyDir = errors.New("source has no policy directory")
	// ErrUnknownServicePolicy is returned when a service names a policy file
	// that does not exist
	ErrUnknownServicePolicy = errors.New("service policy not found")
)

// Options configures a Loader
type Options struct {
	Logger zerolog.Logger
}

// DefaultOptions logs to the global logger
func DefaultOptions() *Options {
	return &Options{Logger: log.Logger}
}

// Loader reads source trees from a filesystem
type Loader struct {
	fs  afero.Fs
	log zerolog.Logger
}

// New returns a Loader reading from fs
func New(fs afero.Fs, opts *Options) *Loader {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Loader{fs: fs, log: opts.Logger}
}

// PolicyIdentity is an entry of config/policies.yml
type PolicyIdentity struct {
	GUID string `json:"guid" yaml:"guid"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Load reads the source tree rooted at dir
func (l *Loader) Load(dir string) (*bundle.Bundle, error) {
	b := bundle.New()
	if err := l.loadPolicies(dir, b); err != nil {
		return nil, err
	}

	identities := make(map[string]PolicyIdentity)
	if _, err := l.readConfig(dir, PoliciesFile, &identities); err != nil {
		return nil, err
	}
	for p, identity := range identities {
		policy, ok := b.PolicyByPath(p)
		if !ok {
			l.log.Warn().Str("policy", p).Msg("identity configured for unknown policy")
			continue
		}
		policy.GUID, policy.ID = identity.GUID, identity.ID
	}

	if err := l.loadServices(dir, b); err != nil {
		return nil, err
	}
	if err := l.loadRecords(dir, b); err != nil {
		return nil, err
	}
	if err := l.loadKeyFiles(dir, b); err != nil {
		return nil, err
	}
	if err := l.loadCertificateFiles(dir, b); err != nil {
		return nil, err
	}

	l.log.Debug().
		Int("policies", len(b.Policies)).
		Int("services", len(b.Services)).
		Int("encasses", len(b.Encasses)).
		Str("dir", dir).
		Msg("loaded source")
	return b, nil
}

func (l *Loader) loadPolicies(dir string, b *bundle.Bundle) error {
	root := filepath.Join(dir, PolicyDir)
	if ok, err := afero.DirExists(l.fs, root); err != nil || !ok {
		return fmt.Errorf("%w: %s", ErrNoPolicyDir, root)
	}
	return afero.Walk(l.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.ToLower(filepath.Ext(p)) != bundle.PolicyExtension {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		body, err := afero.ReadFile(l.fs, p)
		if err != nil {
			return fmt.Errorf("reading policy %s: %w", rel, err)
		}
		return b.AddPolicy(&bundle.Policy{
			Path: rel,
			Name: strings.TrimSuffix(path.Base(rel), path.Ext(rel)),
			Body: body,
		})
	})
}

// loadServices moves the policies named in the services file from
// b.Policies to b.Services
func (l *Loader) loadServices(dir string, b *bundle.Bundle) error {
	services := make(map[string]*bundle.Service)
	if _, err := l.readConfig(dir, ServicesFile, &services); err != nil {
		return err
	}
	for p, svc := range services {
		policy, ok := b.PolicyByPath(p)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownServicePolicy, p)
		}
		if svc == nil {
			svc = &bundle.Service{}
		}
		delete(b.Policies, policy.Path)
		svc.Path = policy.Path
		svc.Name = policy.Name
		svc.Body = policy.Body
		b.Services[svc.Path] = svc
	}
	return nil
}

func (l *Loader) loadRecords(dir string, b *bundle.Bundle) error {
	targets := []struct {
		name string
		into any
	}{
		{EncassFile, &b.Encasses},
		{PrivateKeysFile, &b.PrivateKeys},
		{TrustedCertsFile, &b.TrustedCerts},
		{ListenPortsFile, &b.ListenPorts},
		{StaticPropsFile, &b.StaticProperties},
		{EnvironmentFile, &b.EnvironmentProperties},
	}
	for _, t := range targets {
		if _, err := l.readConfig(dir, t.name, t.into); err != nil {
			return err
		}
	}
	// an entry without a body decodes to nil
	for name, e := range b.Encasses {
		if e == nil {
			e = &bundle.Encass{}
			b.Encasses[name] = e
		}
		e.Name = name
	}
	for alias, pk := range b.PrivateKeys {
		if pk == nil {
			pk = &bundle.PrivateKey{}
			b.PrivateKeys[alias] = pk
		}
		pk.Alias = alias
	}
	for name, tc := range b.TrustedCerts {
		if tc == nil {
			tc = &bundle.TrustedCert{}
			b.TrustedCerts[name] = tc
		}
		tc.Name = name
	}
	for name, lp := range b.ListenPorts {
		if lp == nil {
			lp = &bundle.ListenPort{}
			b.ListenPorts[name] = lp
		}
		lp.Name = name
	}
	return nil
}

// loadKeyFiles records the keystore file of every alias found in the
// private key directory
func (l *Loader) loadKeyFiles(dir string, b *bundle.Bundle) error {
	files, err := l.listDir(filepath.Join(dir, PrivateKeyDir))
	if err != nil {
		return err
	}
	for _, name := range files {
		switch strings.ToLower(path.Ext(name)) {
		case ".p12", ".pfx", ".pem":
			alias := strings.TrimSuffix(name, path.Ext(name))
			b.PrivateKeyFiles[alias] = path.Join(PrivateKeyDir, name)
		}
	}
	return nil
}

// loadCertificateFiles fills the encoded form of trusted certs configured
// without one from config/certificates/<name>.pem|.crt|.cer
func (l *Loader) loadCertificateFiles(dir string, b *bundle.Bundle) error {
	files, err := l.listDir(filepath.Join(dir, CertificateDir))
	if err != nil {
		return err
	}
	for _, name := range files {
		ext := strings.ToLower(path.Ext(name))
		if ext != ".pem" && ext != ".crt" && ext != ".cer" {
			continue
		}
		tc, ok := b.TrustedCerts[strings.TrimSuffix(name, path.Ext(name))]
		if !ok || tc.Encoded != "" {
			continue
		}
		data, err := afero.ReadFile(l.fs, filepath.Join(dir, CertificateDir, name))
		if err != nil {
			return fmt.Errorf("reading certificate %s: %w", name, err)
		}
		encoded, err := encodeCertificate(data)
		if err != nil {
			return fmt.Errorf("certificate %s: %w", name, err)
		}
		tc.Encoded = encoded
	}
	return nil
}

// encodeCertificate returns the Base64 DER of a PEM or DER certificate file
func encodeCertificate(data []byte) (string, error) {
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return "", fmt.Errorf("unexpected PEM block %q", block.Type)
		}
		return base64.StdEncoding.EncodeToString(block.Bytes), nil
	}
	if bytes.HasPrefix(data, []byte("-----")) {
		return "", fmt.Errorf("invalid PEM data")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (l *Loader) listDir(dir string) ([]string, error) {
	ok, err := afero.DirExists(l.fs, dir)
	if err != nil || !ok {
		return nil, err
	}
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var names []string
	for _, info := range infos {
		if !info.IsDir() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

// readConfig decodes config/<name>.<ext> into out. It reports false when no
// such file exists. JSON is read with the YAML decoder.
func (l *Loader) readConfig(dir, name string, out any) (bool, error) {
	for _, ext := range ConfigExtensions {
		p := filepath.Join(dir, ConfigDir, name+ext)
		ok, err := afero.Exists(l.fs, p)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		data, err := afero.ReadFile(l.fs, p)
		if err != nil {
			return false, fmt.Errorf("reading %s: %w", p, err)
		}
		if err := yaml.Unmarshal(data, out); err != nil {
			return false, fmt.Errorf("decoding %s: %w", p, err)
		}
		l.log.Debug().Str("file", p).Msg("read config")
		return true, nil
	}
	return false, nil
}
