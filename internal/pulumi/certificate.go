package provider

import (
	"fmt"

	aws "github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	awsacm "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/acm"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/plan"
	"github.com/mikecbrant/secure-static-site/internal/site"
)

type siteCertificate struct {
	provider    *aws.Provider
	certificate *awsacm.Certificate
}

type certificateValidation struct {
	validation *awsacm.CertificateValidation
}

// buildCertificate requests a DNS-validated certificate for the site domain. CloudFront only
// reads viewer certificates from us-east-1, so it is declared through a pinned provider.
func (b *builder) buildCertificate(_ *plan.Resolver) (any, error) {
	prov, err := aws.NewProvider(b.ctx, fmt.Sprintf("%s-%s", b.name, site.CertificateRegion), &aws.ProviderArgs{
		Region: pulumi.StringPtr(site.CertificateRegion),
	}, b.childOpts...)
	if err != nil {
		return nil, err
	}
	opts := append(append([]pulumi.ResourceOption{}, b.retainOpts...), pulumi.Provider(prov))
	cert, err := awsacm.NewCertificate(b.ctx, fmt.Sprintf("%s-certificate", b.name), &awsacm.CertificateArgs{
		DomainName:       pulumi.StringPtr(b.cfg.SiteDomain()),
		ValidationMethod: pulumi.StringPtr("DNS"),
		Tags:             b.tags(),
	}, opts...)
	if err != nil {
		return nil, err
	}
	b.validationRecords = b.surfaceValidationRecords(cert)
	return &siteCertificate{provider: prov, certificate: cert}, nil
}

// surfaceValidationRecords logs the DNS records ACM expects as soon as they are known; issuance
// blocks until an operator places them.
func (b *builder) surfaceValidationRecords(cert *awsacm.Certificate) pulumi.StringArrayOutput {
	return cert.DomainValidationOptions.ApplyT(func(opts []awsacm.CertificateDomainValidationOption) ([]string, error) {
		records := make([]string, 0, len(opts))
		for _, o := range opts {
			rec := formatValidationRecord(o)
			records = append(records, rec)
			msg := fmt.Sprintf("ACM: create DNS record %s to validate the certificate for %s", rec, valueOrDefault(o.DomainName, b.cfg.SiteDomain()))
			if err := b.ctx.Log.Info(msg, &pulumi.LogArgs{Resource: cert}); err != nil {
				return nil, err
			}
		}
		return records, nil
	}).(pulumi.StringArrayOutput)
}

func formatValidationRecord(o awsacm.CertificateDomainValidationOption) string {
	return fmt.Sprintf("%s %s %s",
		valueOrDefault(o.ResourceRecordName, ""),
		valueOrDefault(o.ResourceRecordType, "CNAME"),
		valueOrDefault(o.ResourceRecordValue, ""),
	)
}

// buildCertificateValidation waits for ACM to report the certificate ISSUED. Consumers only ever
// see this resource's certificateArn, so nothing can reference an unissued certificate.
func (b *builder) buildCertificateValidation(r *plan.Resolver) (any, error) {
	c, err := plan.Value[*siteCertificate](r, site.ComponentCertificate)
	if err != nil {
		return nil, err
	}
	opts := append(append([]pulumi.ResourceOption{}, b.childOpts...),
		pulumi.Provider(c.provider),
		pulumi.Timeouts(&pulumi.CustomTimeouts{Create: b.cfg.CertificateValidationTimeout}),
	)
	v, err := awsacm.NewCertificateValidation(b.ctx, fmt.Sprintf("%s-certificate-validation", b.name), &awsacm.CertificateValidationArgs{
		CertificateArn: c.certificate.Arn,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &certificateValidation{validation: v}, nil
}
