package testutil

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

// FakeObject is an object held by FakeS3.
type FakeObject struct {
	Body         []byte
	ETag         string
	ContentType  string
	CacheControl string
}

// FakeS3 is an in-memory bucket store implementing the calls used by s3sync.
type FakeS3 struct {
	mu      sync.Mutex
	Objects map[string]map[string]FakeObject
	Puts    []string
	Deletes []string
	Heads   int
	// PageSize limits ListObjectsV2 pages so pagination is exercised.
	PageSize int
	PutErr   error
	ListErr  error
}

// NewFakeS3 returns an empty store.
func NewFakeS3() *FakeS3 { return &FakeS3{Objects: map[string]map[string]FakeObject{}} }

// Seed stores an object directly, bypassing the recorded Puts.
func (f *FakeS3) Seed(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucket(bucket)[key] = FakeObject{Body: body, ETag: md5Hex(body)}
}

func (f *FakeS3) bucket(name string) map[string]FakeObject {
	b, ok := f.Objects[name]
	if !ok {
		b = map[string]FakeObject{}
		f.Objects[name] = b
	}
	return b
}

// HeadObject returns the stored headers of an object.
func (f *FakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Heads++
	o, ok := f.bucket(aws.ToString(in.Bucket))[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NotFound{Message: aws.String(aws.ToString(in.Key))}
	}
	out := &s3.HeadObjectOutput{ETag: aws.String(`"` + o.ETag + `"`)}
	if o.ContentType != "" {
		out.ContentType = aws.String(o.ContentType)
	}
	if o.CacheControl != "" {
		out.CacheControl = aws.String(o.CacheControl)
	}
	return out, nil
}

// PutObject stores the body and records the key.
func (f *FakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.PutErr != nil {
		return nil, f.PutErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	obj := FakeObject{Body: body, ETag: md5Hex(body), ContentType: aws.ToString(in.ContentType), CacheControl: aws.ToString(in.CacheControl)}
	f.bucket(aws.ToString(in.Bucket))[key] = obj
	f.Puts = append(f.Puts, key)
	return &s3.PutObjectOutput{ETag: aws.String(`"` + obj.ETag + `"`)}, nil
}

// ListObjectsV2 lists keys in lexical order, honouring PageSize and ContinuationToken.
func (f *FakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bucket(aws.ToString(in.Bucket))
	keys := make([]string, 0, len(b))
	for k := range b {
		if k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	if f.PageSize > 0 && len(keys) > f.PageSize {
		keys = keys[:f.PageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k), ETag: aws.String(`"` + b[k].ETag + `"`)})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))
	return out, nil
}

// DeleteObjects removes the keys and records them.
func (f *FakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bucket(aws.ToString(in.Bucket))
	for _, id := range in.Delete.Objects {
		delete(b, aws.ToString(id.Key))
		f.Deletes = append(f.Deletes, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

// Keys returns the sorted keys of bucket.
func (f *FakeS3) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.Objects[bucket]))
	for k := range f.Objects[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns a stored object.
func (f *FakeS3) Object(bucket, key string) (FakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.Objects[bucket][key]
	return o, ok
}

// FakeCloudFront records invalidation requests.
type FakeCloudFront struct {
	mu   sync.Mutex
	In   []*cloudfront.CreateInvalidationInput
	Gets int
	Err  error
}

// CreateInvalidation records the input and returns a synthetic invalidation.
func (f *FakeCloudFront) CreateInvalidation(_ context.Context, in *cloudfront.CreateInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.In = append(f.In, in)
	id := fmt.Sprintf("I%d", len(f.In))
	return &cloudfront.CreateInvalidationOutput{
		Location:     aws.String("https://cloudfront.amazonaws.com/2020-05-31/distribution/" + aws.ToString(in.DistributionId) + "/invalidation/" + id),
		Invalidation: &cftypes.Invalidation{Id: aws.String(id), Status: aws.String("InProgress"), InvalidationBatch: in.InvalidationBatch},
	}, nil
}

// GetInvalidation reports every recorded invalidation as completed.
func (f *FakeCloudFront) GetInvalidation(_ context.Context, in *cloudfront.GetInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.GetInvalidationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets++
	return &cloudfront.GetInvalidationOutput{Invalidation: &cftypes.Invalidation{Id: in.Id, Status: aws.String("Completed")}}, nil
}

// Calls returns the number of recorded invalidations.
func (f *FakeCloudFront) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.In)
}

// BufferLogger is a buffer-backed logger that records calls for assertions.
type BufferLogger struct {
	mu      sync.Mutex
	Calls   []string
	Entries []string
}

// Debug records a debug-level log entry.
func (l *BufferLogger) Debug(msg string, ctx logging.Fields) { l.record("debug", msg, ctx) }

// Info records an info-level log entry.
func (l *BufferLogger) Info(msg string, ctx logging.Fields) { l.record("info", msg, ctx) }

// Warn records a warn-level log entry.
func (l *BufferLogger) Warn(msg string, ctx logging.Fields) { l.record("warn", msg, ctx) }

func (l *BufferLogger) record(level, msg string, ctx logging.Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, level)
	// simple human-readable capture for assertions; not a JSON serializer
	l.Entries = append(l.Entries, fmt.Sprintf("%s: %s ctx=%v", level, msg, ctx))
}

// Has reports whether any entry contains sub.
func (l *BufferLogger) Has(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.Entries {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}

var _ logging.Logger = (*BufferLogger)(nil)

func md5Hex(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
