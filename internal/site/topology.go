package site

// Component IDs of the hosting topology. Each is a vertex in the dependency graph.
const (
	ComponentStorage               = "storage"
	ComponentCertificate           = "certificate"
	ComponentCertificateValidation = "certificate-validation"
	ComponentAccessIdentity        = "access-identity"
	ComponentAccessPolicy          = "access-policy"
	ComponentDistribution          = "distribution"
	ComponentDeployment            = "deployment"
	ComponentOutputs               = "outputs"
)

// Component describes one node of the topology and the nodes whose identifiers it consumes.
type Component struct {
	ID          string
	DependsOn   []string
	Description string
}

// Topology returns the hosting components, leaf-first. Edges point from a dependency to its
// consumer; no component may read an identifier from a node it does not list in DependsOn.
func Topology() []Component {
	return []Component{
		{ID: ComponentStorage, Description: "private S3 bucket named after the site domain"},
		{ID: ComponentCertificate, Description: "ACM certificate for the site domain (DNS validation, us-east-1)"},
		{ID: ComponentCertificateValidation, DependsOn: []string{ComponentCertificate}, Description: "blocks until ACM reports the certificate ISSUED"},
		{ID: ComponentAccessIdentity, Description: "CloudFront origin access identity"},
		{ID: ComponentAccessPolicy, DependsOn: []string{ComponentStorage, ComponentAccessIdentity}, Description: "single-statement bucket policy granting s3:GetObject to the access identity"},
		{ID: ComponentDistribution, DependsOn: []string{ComponentStorage, ComponentCertificateValidation, ComponentAccessIdentity}, Description: "CloudFront distribution aliased to the site domain"},
		{ID: ComponentDeployment, DependsOn: []string{ComponentStorage, ComponentDistribution, ComponentAccessPolicy}, Description: "uploads site assets and invalidates /*"},
		{ID: ComponentOutputs, DependsOn: []string{ComponentStorage, ComponentCertificateValidation, ComponentDistribution}, Description: "bucketName, certificateArn and distributionDomainName"},
	}
}
