package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikecbrant/secure-static-site/internal/awssdk/internal/testutil"
)

func siteDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "guide.html"), []byte("<html>guide</html>"), 0o600))
	return dir
}

func TestDeploy_SyncThenSingleInvalidation(t *testing.T) {
	t.Parallel()
	s3 := testutil.NewFakeS3()
	cf := &testutil.FakeCloudFront{}
	l := &testutil.BufferLogger{}
	d := &Deployer{S3: s3, CloudFront: cf, Logger: l}
	req := Request{Bucket: "blog.example.com", DistributionID: "E1", SourceDir: siteDir(t), Prune: true}

	res, err := d.Deploy(context.Background(), req)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index.html", "docs/guide.html"}, res.Sync.Uploaded)
	assert.Equal(t, 1, cf.Calls())
	assert.Equal(t, []string{"/*"}, cf.In[0].InvalidationBatch.Paths.Items)
	assert.Equal(t, "I1", res.Invalidation.ID)
	assert.True(t, l.Has("deploy.ok"))
	assert.True(t, l.Has("bucket:blog.example.com"))

	// Idempotent: nothing uploaded the second time, still exactly one more invalidation.
	res, err = d.Deploy(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Sync.Uploaded)
	assert.Len(t, res.Sync.Skipped, 2)
	assert.Equal(t, 2, cf.Calls())
	assert.Equal(t, "E1", aws.ToString(cf.In[1].DistributionId))
}

func TestDeploy_WaitsForInvalidation(t *testing.T) {
	t.Parallel()
	cf := &testutil.FakeCloudFront{}
	d := &Deployer{S3: testutil.NewFakeS3(), CloudFront: cf}
	res, err := d.Deploy(context.Background(), Request{Bucket: "example.com", DistributionID: "E1", SourceDir: siteDir(t), Wait: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "Completed", res.Invalidation.Status)
	assert.GreaterOrEqual(t, cf.Gets, 1)
}

func TestDeploy_SyncFailureSkipsInvalidation(t *testing.T) {
	t.Parallel()
	s3 := testutil.NewFakeS3()
	s3.PutErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	cf := &testutil.FakeCloudFront{}
	d := &Deployer{S3: s3, CloudFront: cf}
	_, err := d.Deploy(context.Background(), Request{Bucket: "example.com", DistributionID: "E1", SourceDir: siteDir(t)})
	assert.ErrorContains(t, err, "sync assets")
	assert.Equal(t, 0, cf.Calls())
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()
	assert.Error(t, Request{DistributionID: "E1", SourceDir: "."}.Validate())
	assert.Error(t, Request{Bucket: "b", SourceDir: "."}.Validate())
	assert.Error(t, Request{Bucket: "b", DistributionID: "E1"}.Validate())
	assert.NoError(t, Request{Bucket: "b", DistributionID: "E1", SourceDir: "."}.Validate())
}
