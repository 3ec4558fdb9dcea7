package site

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Output keys.
const (
	OutputBucketName             = "bucketName"
	OutputCertificateArn         = "certificateArn"
	OutputDistributionDomainName = "distributionDomainName"
	OutputDistributionID         = "distributionId"
	OutputSiteDomain             = "siteDomain"
)

// Outputs is the caller-visible projection of the deployed topology.
type Outputs struct {
	BucketName             string `json:"bucketName"`
	CertificateArn         string `json:"certificateArn"`
	DistributionDomainName string `json:"distributionDomainName"`
	DistributionID         string `json:"distributionId,omitempty"`
	SiteDomain             string `json:"siteDomain,omitempty"`
}

// Map returns the outputs keyed by output name; empty optional values are omitted.
func (o Outputs) Map() map[string]string {
	m := map[string]string{
		OutputBucketName:             o.BucketName,
		OutputCertificateArn:         o.CertificateArn,
		OutputDistributionDomainName: o.DistributionDomainName,
	}
	if o.DistributionID != "" {
		m[OutputDistributionID] = o.DistributionID
	}
	if o.SiteDomain != "" {
		m[OutputSiteDomain] = o.SiteDomain
	}
	return m
}

// ParseOutputs reads outputs from JSON, accepting either the plain form or the form printed by
// `pulumi stack output --json` where keys are prefixed with the component name. A stack holding
// more than one site must be disambiguated with ParseOutputsFor.
func ParseOutputs(b []byte) (Outputs, error) { return ParseOutputsFor(b, "") }

// ParseOutputsFor is ParseOutputs restricted to the component named name. An empty name selects
// the plain keys, or the only prefixed component present.
func ParseOutputsFor(b []byte, name string) (Outputs, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return Outputs{}, fmt.Errorf("invalid outputs JSON: %w", err)
	}
	prefix := ""
	switch {
	case name != "":
		prefix = name + "-"
	case raw[OutputBucketName] == nil:
		var names []string
		for k := range raw {
			if n, ok := strings.CutSuffix(k, "-"+OutputBucketName); ok {
				names = append(names, n)
			}
		}
		sort.Strings(names)
		if len(names) > 1 {
			return Outputs{}, fmt.Errorf("outputs hold several sites (%s); select one by name", strings.Join(names, ", "))
		}
		if len(names) == 1 {
			prefix = names[0] + "-"
		}
	}
	get := func(key string) string {
		s, _ := raw[prefix+key].(string)
		return s
	}
	o := Outputs{
		BucketName:             get(OutputBucketName),
		CertificateArn:         get(OutputCertificateArn),
		DistributionDomainName: get(OutputDistributionDomainName),
		DistributionID:         get(OutputDistributionID),
		SiteDomain:             get(OutputSiteDomain),
	}
	if o.BucketName == "" {
		return Outputs{}, fmt.Errorf("outputs missing %s%s", prefix, OutputBucketName)
	}
	return o, nil
}
