// Package bundle holds the configuration-side model: typed records loaded
// from a source tree, keyed by name, that the builders turn into entities.
package bundle

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/alevsk/gwbundle/internal/folder"
	"github.com/alevsk/gwbundle/internal/idgen"
)

// PolicyExtension is appended to a policy name to form its path
const PolicyExtension = ".xml"

// Policy is a policy fragment stored under policy/<folder path>/<name>.xml
type Policy struct {
	// Path is the root relative path, e.g. "api/billing/charge.xml"
	Path string `json:"-" yaml:"-"`
	Name string `json:"-" yaml:"-"`
	// GUID is stable across builds when present in config/policies.yml
	GUID string `json:"guid,omitempty" yaml:"guid,omitempty"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Body []byte `json:"-" yaml:"-"`
}

// FolderPath returns the directory part of the policy path
func (p *Policy) FolderPath() string {
	return folderPathOf(p.Path)
}

// Service publishes a policy on an HTTP resolution path
type Service struct {
	// Path is the root relative path of the service policy
	Path        string   `json:"-" yaml:"-"`
	Name        string   `json:"-" yaml:"-"`
	URL         string   `json:"httpMapping" yaml:"httpMapping"`
	HTTPMethods []string `json:"httpMethods,omitempty" yaml:"httpMethods,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Body        []byte   `json:"-" yaml:"-"`
}

// FolderPath returns the directory part of the service path
func (s *Service) FolderPath() string {
	return folderPathOf(s.Path)
}

// IsEnabled defaults to true when unset
func (s *Service) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DefaultHTTPMethods is used when a service does not list its verbs
var DefaultHTTPMethods = []string{"GET", "POST", "PUT", "DELETE"}

// Methods returns the configured verbs or DefaultHTTPMethods
func (s *Service) Methods() []string {
	if len(s.HTTPMethods) == 0 {
		return slices.Clone(DefaultHTTPMethods)
	}
	return s.HTTPMethods
}

// EncassArgument is an input of an encapsulated assertion
type EncassArgument struct {
	Name            string `json:"name" yaml:"name"`
	Type            string `json:"type" yaml:"type"`
	RequireExplicit bool   `json:"requireExplicit,omitempty" yaml:"requireExplicit,omitempty"`
}

// EncassResult is an output of an encapsulated assertion
type EncassResult struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Encass exposes a policy as a reusable assertion
type Encass struct {
	Name       string           `json:"-" yaml:"-"`
	GUID       string           `json:"guid,omitempty" yaml:"guid,omitempty"`
	PolicyPath string           `json:"policy" yaml:"policy"`
	Arguments  []EncassArgument `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Results    []EncassResult   `json:"results,omitempty" yaml:"results,omitempty"`
	ID         string           `json:"id,omitempty" yaml:"id,omitempty"`
}

// KeystoreType names the gateway keystore holding a private key
type KeystoreType string

const (
	KeystoreGeneric KeystoreType = "GENERIC"
	KeystorePKCS12  KeystoreType = "PKCS12_SOFTWARE"
	KeystoreHSM     KeystoreType = "LUNA_HARDWARE"
)

var keystoreIDs = map[KeystoreType]string{
	KeystoreGeneric: "00000000000000000000000000000000",
	KeystorePKCS12:  idgen.DefaultKeystoreID,
	KeystoreHSM:     "00000000000000000000000000000003",
}

// KeystoreID returns the gateway identifier of the keystore type, defaulting
// to the software keystore
func (k KeystoreType) KeystoreID() string {
	if id, ok := keystoreIDs[k]; ok {
		return id
	}
	return idgen.DefaultKeystoreID
}

// KeystoreTypeForID returns the keystore type with the gateway identifier,
// defaulting to the software keystore
func KeystoreTypeForID(id string) KeystoreType {
	for t, known := range keystoreIDs {
		if known == id {
			return t
		}
	}
	return KeystorePKCS12
}

// PrivateKey is a key entry that must exist in a gateway keystore
type PrivateKey struct {
	Alias       string       `json:"-" yaml:"-"`
	Keystore    KeystoreType `json:"keystore,omitempty" yaml:"keystore,omitempty"`
	Algorithm   string       `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	KeyPassword string       `json:"keyPassword,omitempty" yaml:"keyPassword,omitempty"`
	// File is the keystore file holding the key and its chain. Filled from
	// Bundle.PrivateKeyFiles during the build when empty.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// KeyID returns the deterministic entity id of the key
func (p *PrivateKey) KeyID() string {
	return idgen.PrivateKeyID(p.Keystore.KeystoreID(), p.Alias)
}

// TrustedCert is a certificate the gateway trusts for the given purposes
type TrustedCert struct {
	Name string `json:"-" yaml:"-"`
	// Encoded is the base64 DER form of the certificate
	Encoded    string          `json:"encoded,omitempty" yaml:"encoded,omitempty"`
	Properties map[string]bool `json:"properties,omitempty" yaml:",inline"`
	ID         string          `json:"id,omitempty" yaml:"id,omitempty"`
}

// TrustedCertProperties lists the trust flags a trusted cert can carry
var TrustedCertProperties = []string{
	"verifyHostname",
	"trustedForSsl",
	"trustedAsSamlAttestingEntity",
	"trustAnchor",
	"revocationCheckingEnabled",
	"trustedForSigningClientCerts",
	"trustedForSigningServerCerts",
	"trustedAsSamlIssuer",
}

// ListenPort is a gateway connector
type ListenPort struct {
	Name            string   `json:"-" yaml:"-"`
	Protocol        string   `json:"protocol" yaml:"protocol"`
	Port            int      `json:"port" yaml:"port"`
	EnabledFeatures []string `json:"enabledFeatures,omitempty" yaml:"enabledFeatures,omitempty"`
	Enabled         *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ID              string   `json:"id,omitempty" yaml:"id,omitempty"`
}

// IsEnabled defaults to true when unset
func (l *ListenPort) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// Bundle aggregates every record loaded from a source tree. It is populated
// by loaders and read by builders and filters.
type Bundle struct {
	Policies    map[string]*Policy
	Services    map[string]*Service
	Encasses    map[string]*Encass
	PrivateKeys map[string]*PrivateKey
	// PrivateKeyFiles maps a key alias to the keystore file holding it
	PrivateKeyFiles       map[string]string
	TrustedCerts          map[string]*TrustedCert
	ListenPorts           map[string]*ListenPort
	StaticProperties      map[string]string
	EnvironmentProperties map[string]string

	// Folders is derived from policy and service paths by BuildFolderTree
	Folders    map[string]*folder.Folder
	FolderTree *folder.Tree
}

// New returns an empty Bundle
func New() *Bundle {
	return &Bundle{
		Policies:              make(map[string]*Policy),
		Services:              make(map[string]*Service),
		Encasses:              make(map[string]*Encass),
		PrivateKeys:           make(map[string]*PrivateKey),
		PrivateKeyFiles:       make(map[string]string),
		TrustedCerts:          make(map[string]*TrustedCert),
		ListenPorts:           make(map[string]*ListenPort),
		StaticProperties:      make(map[string]string),
		EnvironmentProperties: make(map[string]string),
		Folders:               make(map[string]*folder.Folder),
	}
}

// ErrDuplicateRecord is returned when a record name is loaded twice
var ErrDuplicateRecord = fmt.Errorf("duplicate record")

// AddPolicy registers a policy under its path
func (b *Bundle) AddPolicy(p *Policy) error {
	if _, ok := b.Policies[p.Path]; ok {
		return fmt.Errorf("%w: policy %s", ErrDuplicateRecord, p.Path)
	}
	b.Policies[p.Path] = p
	return nil
}

// RootFolderName is the display name of the root folder
const RootFolderName = "Root Node"

// BuildFolderTree derives the folder hierarchy from policy and service paths.
// The root folder always exists and keeps the well known root id; other
// folder ids come from gen. Folders already present are kept, so a second
// call only adds what is new.
func (b *Bundle) BuildFolderTree(gen idgen.Generator) error {
	if _, ok := b.Folders[""]; !ok {
		b.Folders[""] = &folder.Folder{ID: idgen.RootFolderID, Name: RootFolderName}
	}

	var dirs []string
	for _, p := range b.Policies {
		dirs = append(dirs, p.FolderPath())
	}
	for _, s := range b.Services {
		dirs = append(dirs, s.FolderPath())
	}
	slices.Sort(dirs)
	for _, dir := range slices.Compact(dirs) {
		b.ensureFolder(dir, gen)
	}

	tree, err := folder.NewTree(slices.Collect(maps.Values(b.Folders)))
	if err != nil {
		return fmt.Errorf("building folder tree: %w", err)
	}
	b.FolderTree = tree
	return nil
}

func (b *Bundle) ensureFolder(dir string, gen idgen.Generator) *folder.Folder {
	if f, ok := b.Folders[dir]; ok {
		return f
	}
	parent := b.ensureFolder(folderPathOf(dir), gen)
	f := &folder.Folder{ID: gen.Generate(), ParentFolderID: parent.ID, Name: path.Base(dir)}
	b.Folders[dir] = f
	return f
}

// FolderFor returns the folder holding the item at the given path
func (b *Bundle) FolderFor(itemPath string) (*folder.Folder, error) {
	f, ok := b.Folders[folderPathOf(itemPath)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", folder.ErrFolderNotFound, folderPathOf(itemPath))
	}
	return f, nil
}

// PolicyByPath looks a policy up by root relative path; the extension is
// optional
func (b *Bundle) PolicyByPath(p string) (*Policy, bool) {
	p = strings.TrimPrefix(p, "/")
	if !strings.HasSuffix(p, PolicyExtension) {
		p += PolicyExtension
	}
	policy, ok := b.Policies[p]
	return policy, ok
}

// EncassForPolicy returns the encapsulated assertion backed by the policy at
// the given path
func (b *Bundle) EncassForPolicy(p string) (*Encass, bool) {
	policy, ok := b.PolicyByPath(p)
	if !ok {
		return nil, false
	}
	for _, name := range slices.Sorted(maps.Keys(b.Encasses)) {
		e := b.Encasses[name]
		if other, ok := b.PolicyByPath(e.PolicyPath); ok && other == policy {
			return e, true
		}
	}
	return nil, false
}

func folderPathOf(p string) string {
	dir := path.Dir(strings.Trim(p, "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
