package site

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PolicyVersion is the IAM policy language version used for the bucket policy.
const PolicyVersion = "2012-10-17"

// ReadAction is the only action granted on the bucket.
const ReadAction = "s3:GetObject"

// PolicyDocument is an S3 bucket policy.
type PolicyDocument struct {
	Version   string            `json:"Version"`
	Statement []PolicyStatement `json:"Statement"`
}

// PolicyStatement is a single allow statement.
type PolicyStatement struct {
	Sid       string            `json:"Sid,omitempty"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource"`
}

// ObjectsArn is the resource pattern that matches every object in a bucket.
func ObjectsArn(bucketArn string) string {
	return strings.TrimSuffix(bucketArn, "/") + "/*"
}

// AccessPolicy returns the bucket policy granting the origin access identity read access to
// every object and nothing else. The document always holds exactly one statement, so applying
// it replaces whatever was there before.
func AccessPolicy(bucketArn, canonicalUserID string) (PolicyDocument, error) {
	if strings.TrimSpace(bucketArn) == "" {
		return PolicyDocument{}, fmt.Errorf("bucket ARN is required")
	}
	if strings.TrimSpace(canonicalUserID) == "" {
		return PolicyDocument{}, fmt.Errorf("access identity canonical user ID is required")
	}
	return PolicyDocument{
		Version: PolicyVersion,
		Statement: []PolicyStatement{{
			Sid:       "AllowOriginAccessIdentityRead",
			Effect:    "Allow",
			Principal: map[string]string{"CanonicalUser": canonicalUserID},
			Action:    []string{ReadAction},
			Resource:  []string{ObjectsArn(bucketArn)},
		}},
	}, nil
}

// JSON renders the document.
func (d PolicyDocument) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
