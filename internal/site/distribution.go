package site

// ErrorResponse remaps an origin error status for the viewer.
type ErrorResponse struct {
	ErrorCode          int
	ResponseCode       int
	ResponsePagePath   string
	ErrorCachingMinTTL int
}

// SPAErrorResponses serves the index document with 200 when the private origin answers 403 for
// a key that does not exist, so client-side routes resolve on deep links.
func SPAErrorResponses() []ErrorResponse {
	return []ErrorResponse{{
		ErrorCode:          403,
		ResponseCode:       200,
		ResponsePagePath:   "/" + IndexDocument,
		ErrorCachingMinTTL: 1,
	}}
}

// Cache behaviour settings for the default behaviour.
var (
	AllowedMethods = []string{"GET", "HEAD", "OPTIONS"}
	CachedMethods  = []string{"GET", "HEAD"}
)

const (
	ViewerProtocolPolicy = "redirect-to-https"
	SSLSupportMethod     = "sni-only"
	HTTPVersion          = "http2"
	DefaultTTL           = 86400
	MaxTTL               = 31536000

	// CertificateRegion is the only region CloudFront reads viewer certificates from.
	CertificateRegion = "us-east-1"

	// InvalidationPath invalidates every cached object.
	InvalidationPath = "/*"
)

// Aliases returns the alternate domain names for the distribution.
func (c SiteConfig) Aliases() []string { return []string{c.SiteDomain()} }
