package site

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSiteDomain(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "example.com", SiteConfig{DomainName: "example.com"}.SiteDomain())
	assert.Equal(t, "blog.example.com", SiteConfig{DomainName: "example.com", SubDomain: "blog"}.SiteDomain())
	assert.Equal(t, []string{"blog.example.com"}, SiteConfig{DomainName: "example.com", SubDomain: "blog"}.Aliases())
}

func TestSiteDomain_Property(t *testing.T) {
	label := `[a-w]([a-z0-9-]{0,8}[a-z0-9])?`
	rapid.Check(t, func(t *rapid.T) {
		domain := rapid.StringMatching(label+`\.(com|org|dev|io)`).Draw(t, "domain")
		sub := rapid.OneOf(rapid.Just(""), rapid.StringMatching(label)).Draw(t, "sub")
		cfg := SiteConfig{DomainName: domain, SubDomain: sub}
		got := cfg.SiteDomain()
		if sub == "" {
			if got != domain {
				t.Fatalf("siteDomain = %q, want %q", got, domain)
			}
		} else if got != sub+"."+domain {
			t.Fatalf("siteDomain = %q, want %q", got, sub+"."+domain)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid pair rejected: %v", err)
		}
		if aliases := cfg.Aliases(); len(aliases) != 1 || aliases[0] != got {
			t.Fatalf("aliases = %v, want [%s]", aliases, got)
		}
	})
}

func TestSiteConfig_Normalize(t *testing.T) {
	t.Parallel()
	got := SiteConfig{DomainName: " Example.COM. ", SubDomain: "Blog"}.Normalize()
	assert.Equal(t, SiteConfig{DomainName: "example.com", SubDomain: "blog"}, got)
	require.NoError(t, got.Validate())
}

func TestSiteConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		cfg   SiteConfig
		field string
	}{
		{"missing domain", SiteConfig{}, "domainName"},
		{"single label", SiteConfig{DomainName: "localhost"}, "domainName"},
		{"ip address", SiteConfig{DomainName: "10.0.0.1"}, "domainName"},
		{"underscore", SiteConfig{DomainName: "my_site.com"}, "domainName"},
		{"uppercase", SiteConfig{DomainName: "Example.com"}, "domainName"},
		{"subdomain dot", SiteConfig{DomainName: "example.com", SubDomain: "blog."}, "subDomain"},
		{"multi-label subdomain", SiteConfig{DomainName: "example.com", SubDomain: "a.b"}, "subDomain"},
		{"too long for bucket", SiteConfig{DomainName: strings.Repeat("a", 60) + ".com"}, "domainName"},
		{"reserved prefix", SiteConfig{DomainName: "xn--bcher-kva.example"}, "domainName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
	assert.True(t, errors.Is(SiteConfig{}.Validate(), ErrMissingDomain))
}

func TestConfig_NormalizeDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{SiteConfig: SiteConfig{DomainName: "example.com"}}.Normalize()
	assert.Equal(t, DefaultAssetDir, cfg.AssetDir)
	assert.Equal(t, DefaultMinimumProtocolVersion, cfg.MinimumProtocolVersion)
	assert.Equal(t, DefaultPriceClass, cfg.PriceClass)
	assert.Equal(t, DefaultCertificateValidationTimeout, cfg.CertificateValidationTimeout)
	require.NotNil(t, cfg.Prune)
	assert.True(t, *cfg.Prune)
	assert.False(t, cfg.RetainOnDelete)
	require.NoError(t, cfg.Validate())
}

func TestConfig_ValidateKnobs(t *testing.T) {
	t.Parallel()
	base := Config{SiteConfig: SiteConfig{DomainName: "example.com"}}.Normalize()

	bad := base
	bad.PriceClass = "PriceClass_1"
	assert.ErrorContains(t, bad.Validate(), "priceClass")

	bad = base
	bad.MinimumProtocolVersion = "TLSv9"
	assert.ErrorContains(t, bad.Validate(), "minimumProtocolVersion")

	bad = base
	bad.CertificateValidationTimeout = "soon"
	assert.ErrorContains(t, bad.Validate(), "certificateValidationTimeout")
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("domainName: Example.com\nsubDomain: blog\nassetDir: public\nexclude:\n  - \"**/*.map\"\n"), 0o600))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "blog.example.com", cfg.SiteDomain())
	assert.Equal(t, filepath.Join(dir, "public"), cfg.AssetDir)
	assert.Equal(t, []string{"**/*.map"}, cfg.Exclude)

	jsonPath := filepath.Join(dir, "site.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"domainName":"example.com","retainOnDelete":true,"priceClass":"PriceClass_All"}`), 0o600))
	cfg, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "example.com", cfg.SiteDomain())
	assert.True(t, cfg.RetainOnDelete)
	assert.Equal(t, "PriceClass_All", cfg.PriceClass)

	tomlPath := filepath.Join(dir, "site.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`domainName = "example.com"`), 0o600))
	_, err = Load(tomlPath)
	assert.ErrorContains(t, err, "unsupported config extension")

	invalid := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("subDomain: www\n"), 0o600))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, ErrMissingDomain)
}
