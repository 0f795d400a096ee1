// Package tenant resolves a client identifier to its configuration and its
// database connection.  Each storefront client is described by a
// <clients-dir>/<client-id>.env file; its database and JWT secret are never
// shared with another client.
package tenant

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// ErrClientNotFound is returned when no configuration file exists for a
// client id (or the id is not a valid client name).
var ErrClientNotFound = errors.New("client not found")

// Storage providers and catalog sources accepted in client files.
const (
	StorageLocal      = "local"
	StorageAWS        = "aws"
	StorageCloudinary = "cloudinary"

	CatalogStatic   = "static"
	CatalogDatabase = "database"
)

var clientIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ClientConfig is the immutable configuration of one client.  Field tags
// are the keys of the client's .env file.
type ClientConfig struct {
	ID          string `env:"CLIENT_ID"`
	Name        string `env:"CLIENT_NAME"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET"`

	StripeSecretKey    string `env:"STRIPE_SECRET_KEY"`
	PayPalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`

	EmailService string `env:"EMAIL_SERVICE"`
	EmailHost    string `env:"EMAIL_HOST"`
	EmailPort    int    `env:"EMAIL_PORT"`
	EmailUser    string `env:"EMAIL_USER"`
	EmailPass    string `env:"EMAIL_PASS"`
	EmailFrom    string `env:"EMAIL_FROM"`

	StorageProvider     string `env:"STORAGE_PROVIDER"`
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion           string `env:"AWS_REGION"`
	AWSBucketName       string `env:"AWS_BUCKET_NAME"`
	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`

	CatalogSource string `env:"CATALOG_SOURCE"`
	WelcomeEmail  bool   `env:"WELCOME_EMAIL"`
}

// HasSMTP reports whether enough mail settings are present to send mail.
func (c ClientConfig) HasSMTP() bool {
	return c.EmailHost != "" && c.EmailPort > 0 && c.EmailFrom != ""
}

// PaymentProviders lists the payment providers configured for the client.
func (c ClientConfig) PaymentProviders() []string {
	out := []string{}
	if c.StripeSecretKey != "" {
		out = append(out, "stripe")
	}
	if c.PayPalClientID != "" && c.PayPalClientSecret != "" {
		out = append(out, "paypal")
	}
	return out
}

// ValidationError lists every problem found in a client file.
type ValidationError struct {
	ClientID string
	Missing  []string
	Invalid  []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("client %s: %s", e.ClientID, strings.Join(parts, "; "))
}

// Validate checks required keys and enumerated values.
func (c ClientConfig) Validate() error {
	verr := &ValidationError{ClientID: c.ID}
	required := []struct{ key, val string }{
		{"CLIENT_ID", c.ID},
		{"CLIENT_NAME", c.Name},
		{"DATABASE_URL", c.DatabaseURL},
		{"JWT_SECRET", c.JWTSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			verr.Missing = append(verr.Missing, r.key)
		}
	}
	switch c.StorageProvider {
	case StorageLocal, StorageAWS, StorageCloudinary:
	default:
		verr.Invalid = append(verr.Invalid, "STORAGE_PROVIDER="+c.StorageProvider)
	}
	switch c.CatalogSource {
	case CatalogStatic, CatalogDatabase:
	default:
		verr.Invalid = append(verr.Invalid, "CATALOG_SOURCE="+c.CatalogSource)
	}
	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return verr
	}
	return nil
}

// Tenant is what the resolver attaches to a request.
type Tenant struct {
	ID     string
	Config ClientConfig
	DB     *sql.DB
}

// Loader reads and caches client configurations.  A cached entry is never
// refreshed; changing a client file requires a restart.
type Loader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]ClientConfig
}

// NewLoader returns a Loader reading <dir>/<id>.env files.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]ClientConfig)}
}

// Load returns the configuration for id.
func (l *Loader) Load(id string) (ClientConfig, error) {
	l.mu.RLock()
	cfg, ok := l.cache[id]
	l.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	if !clientIDPattern.MatchString(id) {
		return ClientConfig{}, fmt.Errorf("%w: %q", ErrClientNotFound, id)
	}
	path := filepath.Join(l.dir, id+".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ClientConfig{}, fmt.Errorf("%w: %s", ErrClientNotFound, id)
		}
		return ClientConfig{}, fmt.Errorf("stat client file %s: %w", path, err)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("read client file %s: %w", path, err)
	}
	cfg, err = decode(id, values)
	if err != nil {
		return ClientConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}

	l.mu.Lock()
	if cached, ok := l.cache[id]; ok {
		cfg = cached
	} else {
		l.cache[id] = cfg
	}
	l.mu.Unlock()
	return cfg, nil
}

// IDs lists every client that has a configuration file, sorted.
func (l *Loader) IDs() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".env") {
			continue
		}
		id := strings.TrimSuffix(name, ".env")
		if clientIDPattern.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadAll loads every client file and returns all failures joined.
func (l *Loader) LoadAll() ([]ClientConfig, error) {
	ids, err := l.IDs()
	if err != nil {
		return nil, err
	}
	var (
		out  []ClientConfig
		errs []error
	)
	for _, id := range ids {
		cfg, err := l.Load(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, cfg)
	}
	return out, errors.Join(errs...)
}

func decode(id string, values map[string]string) (ClientConfig, error) {
	cfg := ClientConfig{
		ID:              id,
		StorageProvider: StorageLocal,
		CatalogSource:   CatalogStatic,
	}
	// Blank values would overwrite the defaults above.
	nonEmpty := make(map[string]string, len(values))
	for k, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			nonEmpty[k] = v
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "env",
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return ClientConfig{}, err
	}
	if err := dec.Decode(nonEmpty); err != nil {
		return ClientConfig{}, &ValidationError{ClientID: id, Invalid: []string{err.Error()}}
	}
	if cfg.ID != id {
		return ClientConfig{}, &ValidationError{ClientID: id, Invalid: []string{"CLIENT_ID=" + cfg.ID + " does not match file name"}}
	}
	cfg.StorageProvider = strings.ToLower(cfg.StorageProvider)
	cfg.CatalogSource = strings.ToLower(cfg.CatalogSource)
	return cfg, nil
}
