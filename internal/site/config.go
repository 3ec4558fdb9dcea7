package site

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation"
)

// Defaults applied by Config.Normalize.
const (
	DefaultAssetDir                     = "./website"
	DefaultMinimumProtocolVersion       = "TLSv1.2_2021"
	DefaultPriceClass                   = "PriceClass_100"
	DefaultCertificateValidationTimeout = "45m"
	DefaultCacheControl                 = "public, max-age=0, must-revalidate"
	IndexDocument                       = "index.html"
)

// ErrMissingDomain is returned when no apex domain name is configured.
var ErrMissingDomain = errors.New("domainName is required")

// ConfigError reports an invalid configuration field. Returned before any resource is declared.
type ConfigError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// SiteConfig identifies the site being hosted.
type SiteConfig struct {
	DomainName string `yaml:"domainName" json:"domainName"`
	SubDomain  string `yaml:"subDomain,omitempty" json:"subDomain,omitempty"`
}

// SiteDomain is the fully qualified host the site is served from. It doubles as the bucket name.
func (c SiteConfig) SiteDomain() string {
	if c.SubDomain == "" {
		return c.DomainName
	}
	return c.SubDomain + "." + c.DomainName
}

// Normalize trims whitespace, lowercases and strips a trailing root dot from both labels.
func (c SiteConfig) Normalize() SiteConfig {
	clean := func(s string) string {
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
	}
	return SiteConfig{DomainName: clean(c.DomainName), SubDomain: clean(c.SubDomain)}
}

// Validate checks the derived siteDomain is usable both as a DNS name and as an S3 bucket name.
func (c SiteConfig) Validate() error {
	if c.DomainName == "" {
		return &ConfigError{Field: "domainName", Reason: "must be set", Cause: ErrMissingDomain}
	}
	if strings.Contains(c.SubDomain, ".") {
		return &ConfigError{Field: "subDomain", Reason: fmt.Sprintf("%q must be a single label; put further labels in domainName", c.SubDomain)}
	}
	domain := c.SiteDomain()
	if !strings.Contains(domain, ".") {
		return &ConfigError{Field: "domainName", Reason: fmt.Sprintf("%q is not fully qualified", domain)}
	}
	if net.ParseIP(domain) != nil {
		return &ConfigError{Field: "domainName", Reason: fmt.Sprintf("%q is an IP address", domain)}
	}
	if errs := validation.IsDNS1123Subdomain(domain); len(errs) > 0 {
		return &ConfigError{Field: "domainName", Reason: fmt.Sprintf("%q is not a valid DNS name: %s", domain, strings.Join(errs, "; "))}
	}
	// S3 bucket naming rules on top of the DNS ones.
	if len(domain) < 3 || len(domain) > 63 {
		return &ConfigError{Field: "domainName", Reason: fmt.Sprintf("%q must be 3-63 characters to be used as a bucket name", domain)}
	}
	if strings.HasPrefix(domain, "xn--") || strings.HasSuffix(domain, "-s3alias") || strings.HasSuffix(domain, "--ol-s3") {
		return &ConfigError{Field: "domainName", Reason: fmt.Sprintf("%q uses a prefix or suffix reserved by S3", domain)}
	}
	return nil
}

// Config is the file-based configuration consumed by the CLI and the stack program.
type Config struct {
	SiteConfig `yaml:",inline"`

	AssetDir                     string            `yaml:"assetDir,omitempty" json:"assetDir,omitempty"`
	RetainOnDelete               bool              `yaml:"retainOnDelete,omitempty" json:"retainOnDelete,omitempty"`
	MinimumProtocolVersion       string            `yaml:"minimumProtocolVersion,omitempty" json:"minimumProtocolVersion,omitempty"`
	PriceClass                   string            `yaml:"priceClass,omitempty" json:"priceClass,omitempty"`
	CertificateValidationTimeout string            `yaml:"certificateValidationTimeout,omitempty" json:"certificateValidationTimeout,omitempty"`
	Prune                        *bool             `yaml:"prune,omitempty" json:"prune,omitempty"`
	Exclude                      []string          `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	CacheControl                 string            `yaml:"cacheControl,omitempty" json:"cacheControl,omitempty"`
	CanaryFile                   string            `yaml:"canaryFile,omitempty" json:"canaryFile,omitempty"`
	Tags                         map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

var (
	minimumProtocolVersions = []string{"SSLv3", "TLSv1", "TLSv1_2016", "TLSv1.1_2016", "TLSv1.2_2018", "TLSv1.2_2019", "TLSv1.2_2021"}
	priceClasses            = []string{"PriceClass_100", "PriceClass_200", "PriceClass_All"}
)

// Normalize returns a copy with defaults applied and domain labels normalised.
func (c Config) Normalize() Config {
	c.SiteConfig = c.SiteConfig.Normalize()
	if strings.TrimSpace(c.AssetDir) == "" {
		c.AssetDir = DefaultAssetDir
	}
	if c.MinimumProtocolVersion == "" {
		c.MinimumProtocolVersion = DefaultMinimumProtocolVersion
	}
	if c.PriceClass == "" {
		c.PriceClass = DefaultPriceClass
	}
	if c.CertificateValidationTimeout == "" {
		c.CertificateValidationTimeout = DefaultCertificateValidationTimeout
	}
	if c.Prune == nil {
		b := true
		c.Prune = &b
	}
	if c.CacheControl == "" {
		c.CacheControl = DefaultCacheControl
	}
	return c
}

// Validate checks a normalised Config.
func (c Config) Validate() error {
	if err := c.SiteConfig.Validate(); err != nil {
		return err
	}
	if !contains(minimumProtocolVersions, c.MinimumProtocolVersion) {
		return &ConfigError{Field: "minimumProtocolVersion", Reason: fmt.Sprintf("%q is not one of %s", c.MinimumProtocolVersion, strings.Join(minimumProtocolVersions, ", "))}
	}
	if !contains(priceClasses, c.PriceClass) {
		return &ConfigError{Field: "priceClass", Reason: fmt.Sprintf("%q is not one of %s", c.PriceClass, strings.Join(priceClasses, ", "))}
	}
	if d, err := time.ParseDuration(c.CertificateValidationTimeout); err != nil {
		return &ConfigError{Field: "certificateValidationTimeout", Reason: "must be a duration such as 45m", Cause: err}
	} else if d <= 0 {
		return &ConfigError{Field: "certificateValidationTimeout", Reason: "must be positive"}
	}
	return nil
}

// Load reads a YAML or JSON config file (chosen by extension), then normalises and validates it.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read site config %s: %w", path, err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q; expected .yaml, .yml, or .json", filepath.Ext(path))
	}
	cfg = cfg.Normalize()
	if !filepath.IsAbs(cfg.AssetDir) {
		cfg.AssetDir = filepath.Join(filepath.Dir(path), cfg.AssetDir)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// TeardownWarning is the message logged whenever the bucket and its objects will be deleted
// together with the stack.
func TeardownWarning(siteDomain string) string {
	return fmt.Sprintf("bucket %s is not retained: removing the stack deletes the bucket and every object in it; set retainOnDelete to keep it", siteDomain)
}
