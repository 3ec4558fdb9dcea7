// Package s3sync mirrors a local directory into an S3 bucket, uploading only changed objects.
package s3sync

import (
	"context"
	"crypto/md5" //nolint:gosec // S3 single-part ETags are MD5 digests
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	awserrors "github.com/mikecbrant/secure-static-site/internal/awssdk/errors"
	"github.com/mikecbrant/secure-static-site/internal/utils"
	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

// DefaultConcurrency bounds parallel uploads.
const DefaultConcurrency = 8

// deleteBatchSize is the DeleteObjects limit.
const deleteBatchSize = 1000

// Client is the subset of the S3 API used by Sync.
type Client interface {
	s3.ListObjectsV2APIClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Options controls a sync run.
type Options struct {
	Bucket       string
	SourceDir    string
	Exclude      []string
	Prune        bool
	CacheControl string
	Concurrency  int
	Logger       logging.Logger
}

// Result lists the object keys touched by a run.
type Result struct {
	Uploaded []string
	Skipped  []string
	Deleted  []string
}

// Changed reports whether the run modified the bucket.
func (r Result) Changed() bool { return len(r.Uploaded) > 0 || len(r.Deleted) > 0 }

// File is a local asset addressed by its object key.
type File struct {
	Key         string
	Path        string
	ETag        string
	ContentType string
}

// LocalFiles returns the files under dir not matched by exclude, sorted by key.
func LocalFiles(dir string, exclude []string) ([]File, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("asset directory %s: %w", dir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("asset directory %s is not a directory", dir)
	}
	paths, err := utils.GlobRecursive(dir, "**", exclude...)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil, err
		}
		etag, err := fileMD5(p)
		if err != nil {
			return nil, err
		}
		files = append(files, File{
			Key:         filepath.ToSlash(rel),
			Path:        p,
			ETag:        etag,
			ContentType: ContentType(p),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

// Fingerprint digests keys and ETags of files; it changes whenever an asset is added, removed
// or edited.
func Fingerprint(files []File) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%s\n", f.Key, f.ETag)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentType guesses the MIME type from the file extension.
func ContentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RemoteETags lists every object in bucket keyed by object key.
func RemoteETags(ctx context.Context, client s3.ListObjectsV2APIClient, bucket string) (map[string]string, error) {
	out := map[string]string{}
	p := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", bucket, awserrors.Classify(err))
		}
		for _, obj := range page.Contents {
			out[aws.ToString(obj.Key)] = strings.Trim(aws.ToString(obj.ETag), `"`)
		}
	}
	return out, nil
}

// Sync uploads new and changed files from opts.SourceDir and, when opts.Prune is set, deletes
// objects with no local counterpart. Excluded keys are neither uploaded nor deleted. Running it
// twice against unchanged input and options uploads nothing the second time.
func Sync(ctx context.Context, client Client, opts Options) (Result, error) {
	logger := logging.OrNop(opts.Logger)
	if opts.Bucket == "" {
		return Result{}, errors.New("s3sync: bucket is required")
	}
	files, err := LocalFiles(opts.SourceDir, opts.Exclude)
	if err != nil {
		return Result{}, err
	}
	remote, err := RemoteETags(ctx, client, opts.Bucket)
	if err != nil {
		return Result{}, err
	}

	var res Result
	var pending, same []File
	local := make(map[string]struct{}, len(files))
	for _, f := range files {
		local[f.Key] = struct{}{}
		if etag, ok := remote[f.Key]; ok && etag == f.ETag {
			same = append(same, f)
			continue
		}
		pending = append(pending, f)
	}
	// Identical bodies still need a re-upload when their headers differ.
	outdated, err := outdatedHeaders(ctx, client, opts, same)
	if err != nil {
		return Result{}, err
	}
	for _, f := range same {
		if _, ok := outdated[f.Key]; ok {
			pending = append(pending, f)
			continue
		}
		res.Skipped = append(res.Skipped, f.Key)
		logger.Debug("s3.sync.skip", logging.Fields{"key": f.Key})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Key < pending[j].Key })

	if err := upload(ctx, client, opts, pending, logger); err != nil {
		return res, err
	}
	for _, f := range pending {
		res.Uploaded = append(res.Uploaded, f.Key)
	}

	if opts.Prune {
		stale, err := staleKeys(remote, local, opts.Exclude)
		if err != nil {
			return res, err
		}
		if err := deleteKeys(ctx, client, opts.Bucket, stale, logger); err != nil {
			return res, err
		}
		res.Deleted = stale
	}

	logger.Info("s3.sync.ok", logging.Fields{
		"bucket":   opts.Bucket,
		"uploaded": len(res.Uploaded),
		"skipped":  len(res.Skipped),
		"deleted":  len(res.Deleted),
	})
	return res, nil
}

// outdatedHeaders returns the keys among files whose stored Content-Type or Cache-Control differs
// from what an upload would set.
func outdatedHeaders(ctx context.Context, client Client, opts Options, files []File) (map[string]struct{}, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var mu sync.Mutex
	out := map[string]struct{}{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, f := range files {
		g.Go(func() error {
			head, err := client.HeadObject(gctx, &s3.HeadObjectInput{Bucket: aws.String(opts.Bucket), Key: aws.String(f.Key)})
			if err != nil {
				return fmt.Errorf("head %s: %w", f.Key, awserrors.Classify(err))
			}
			if aws.ToString(head.ContentType) != f.ContentType || aws.ToString(head.CacheControl) != opts.CacheControl {
				mu.Lock()
				out[f.Key] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func upload(ctx context.Context, client Client, opts Options, files []File, logger logging.Logger) error {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, f := range files {
		g.Go(func() error {
			body, err := os.Open(f.Path)
			if err != nil {
				return err
			}
			defer body.Close()
			in := &s3.PutObjectInput{
				Bucket:      aws.String(opts.Bucket),
				Key:         aws.String(f.Key),
				Body:        body,
				ContentType: aws.String(f.ContentType),
			}
			if opts.CacheControl != "" {
				in.CacheControl = aws.String(opts.CacheControl)
			}
			if _, err := client.PutObject(gctx, in); err != nil {
				return fmt.Errorf("upload %s: %w", f.Key, awserrors.Classify(err))
			}
			logger.Debug("s3.sync.put", logging.Fields{"key": f.Key, "contentType": f.ContentType})
			return nil
		})
	}
	return g.Wait()
}

func staleKeys(remote map[string]string, local map[string]struct{}, exclude []string) ([]string, error) {
	var stale []string
	for key := range remote {
		if _, ok := local[key]; ok {
			continue
		}
		excluded, err := utils.MatchAny(exclude, key)
		if err != nil {
			return nil, err
		}
		if !excluded {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	return stale, nil
}

func deleteKeys(ctx context.Context, client Client, bucket string, keys []string, logger logging.Logger) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("prune %s: %w", bucket, awserrors.Classify(err))
		}
		if out != nil && len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("prune %s: %d objects failed, first %s: %s", bucket, len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
		}
		logger.Debug("s3.sync.prune", logging.Fields{"count": end - start})
	}
	return nil
}
