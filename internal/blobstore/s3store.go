package blobstore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/yourorg/rendercore/internal/logging"
)

// S3Options configures S3Store. CDNBaseURL (not the bucket's own
// endpoint) is what's returned from Upload, since the public artifact
// URL is served through a CDN in front of the bucket.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	UsePathStyle    bool
	CDNBaseURL      string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// UploadRatePerSec limits how many uploads/downloads may start per
	// second, so a burst of completing renders cannot saturate the
	// provider's connection pool.
	UploadRatePerSec float64
}

// S3Store is the production Store backend, built on aws-sdk-go-v2.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	cdnBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
	purge      PurgeFunc
}

// WithPurgeFunc attaches a provider-specific CDN purge implementation.
// Without one, PurgeURLs is a documented no-op.
func (s *S3Store) WithPurgeFunc(fn PurgeFunc) *S3Store {
	s.purge = fn
	return s
}

// NewS3Store builds an S3Store from opts, using the default AWS
// credential chain unless static keys are supplied.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.UsePathStyle {
			o.UsePathStyle = true
		}
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	rateLimit := opts.UploadRatePerSec
	if rateLimit <= 0 {
		rateLimit = 8
	}

	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     opts.Bucket,
		cdnBase:    opts.CDNBaseURL,
		httpClient: defaultHTTPClient(),
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
	}, nil
}

func (s *S3Store) Download(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	return httpDownload(ctx, s.httpClient, s.limiter, url, maxBytes)
}

func (s *S3Store) Upload(ctx context.Context, localPath, key, contentType, cacheControl string, overwrite bool) (string, error) {
	if !overwrite {
		return "", fmt.Errorf("upload %s: overwrite must be explicit", key)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s to s3://%s/%s: %w", localPath, s.bucket, key, err)
	}

	return fmt.Sprintf("%s/%s", s.cdnBase, key), nil
}

// PurgeFunc performs the provider-specific purge call for one URL. The
// CDN provider itself is an external collaborator; S3Store
// only wires the best-effort log-and-swallow contract around whatever
// PurgeFunc is supplied; a failed purge is not retried.
type PurgeFunc func(ctx context.Context, url string) error

func (s *S3Store) PurgeURLs(ctx context.Context, urls ...string) {
	s.purgeURLs(ctx, urls, s.purge)
}

func (s *S3Store) purgeURLs(ctx context.Context, urls []string, purge PurgeFunc) {
	if purge == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, u := range urls {
		if err := purge(ctx, u); err != nil {
			logPurgeFailure(u, err)
			continue
		}
		logging.InfoWithComponent(logging.ComponentBlob, "CDN purge requested", "url", u)
	}
}
