package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"insurease-backend/internal/shared/storage/policystore"
)

const deleteBatchSize = 1000

// api is the subset of the S3 client used by the store.
type api interface {
	s3.ListObjectsV2APIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Store implements policystore.Store on Amazon S3. A company is a zero-byte
// "<prefix>/<company>/" marker object; policies live next to it.
type Store struct {
	client   api
	bucket   string
	prefix   string
	kmsKeyID string
}

// New creates a new S3-backed policy store.
func New(ctx context.Context, region, bucket, prefix, kmsKeyID string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newWithClient(s3.NewFromConfig(cfg), bucket, prefix, kmsKeyID), nil
}

func newWithClient(client api, bucket, prefix, kmsKeyID string) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   normalizePrefix(prefix),
		kmsKeyID: strings.TrimSpace(kmsKeyID),
	}
}

func (s *Store) CompanyExists(ctx context.Context, company string) (bool, error) {
	dir, err := s.companyKey(company)
	if err != nil {
		return false, err
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(dir),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("s3 list bucket=%s prefix=%s: %w", s.bucket, dir, err)
	}
	return len(out.Contents) > 0, nil
}

func (s *Store) CreateCompany(ctx context.Context, company string) error {
	dir, err := s.companyKey(company)
	if err != nil {
		return err
	}
	return s.put(ctx, dir, "application/x-directory", strings.NewReader(""))
}

func (s *Store) DeleteCompany(ctx context.Context, company string) error {
	dir, err := s.companyKey(company)
	if err != nil {
		return err
	}
	keys, err := s.listKeys(ctx, dir)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return policystore.ErrNotFound
	}
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
		}
		if _, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}); err != nil {
			return fmt.Errorf("s3 delete objects bucket=%s prefix=%s: %w", s.bucket, dir, err)
		}
	}
	return nil
}

func (s *Store) PolicyExists(ctx context.Context, company, policy string) (bool, error) {
	key, err := s.policyKey(company, policy)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head object bucket=%s key=%s: %w", s.bucket, key, err)
}

func (s *Store) SavePolicy(ctx context.Context, company, policy string, r io.Reader) (int64, error) {
	key, err := s.policyKey(company, policy)
	if err != nil {
		return 0, err
	}
	counter := &countingReader{r: r}
	if err := s.put(ctx, key, "application/pdf", counter); err != nil {
		return 0, err
	}
	return counter.n, nil
}

func (s *Store) OpenPolicy(ctx context.Context, company, policy string) (io.ReadCloser, error) {
	key, err := s.policyKey(company, policy)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", policystore.ErrNotFound, key)
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

func (s *Store) DeletePolicy(ctx context.Context, company, policy string) error {
	ok, err := s.PolicyExists(ctx, company, policy)
	if err != nil {
		return err
	}
	if !ok {
		return policystore.ErrNotFound
	}
	key, _ := s.policyKey(company, policy)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *Store) Structure(ctx context.Context) (map[string][]string, error) {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return nil, fmt.Errorf("%w: bucket %s: %v", policystore.ErrBaseMissing, s.bucket, err)
	}
	root := applyPrefix(s.prefix, "")
	if root != "" {
		root += "/"
	}
	keys, err := s.listKeys(ctx, root)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, key := range keys {
		parts := strings.Split(strings.TrimPrefix(key, root), "/")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		company := parts[0]
		if _, ok := out[company]; !ok {
			out[company] = []string{}
		}
		if len(parts) == 2 && strings.HasSuffix(parts[1], policystore.Extension) {
			out[company] = append(out[company], strings.TrimSuffix(parts[1], policystore.Extension))
		}
	}
	for company := range out {
		sort.Strings(out[company])
	}
	return out, nil
}

func (s *Store) put(ctx context.Context, key, contentType string, body io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if s.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
	} else {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list bucket=%s prefix=%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *Store) companyKey(company string) (string, error) {
	name, err := policystore.CleanName(company)
	if err != nil {
		return "", err
	}
	return applyPrefix(s.prefix, name) + "/", nil
}

func (s *Store) policyKey(company, policy string) (string, error) {
	dir, err := s.companyKey(company)
	if err != nil {
		return "", err
	}
	name, err := policystore.CleanName(policy)
	if err != nil {
		return "", err
	}
	return dir + policystore.PolicyFile(name), nil
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ policystore.Store = (*Store)(nil)
