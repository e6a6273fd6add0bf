package flagstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"flagforge/internal/apperrors"
	appconfig "flagforge/internal/config"
	"flagforge/internal/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Ensure S3Store implements Store
var _ Store = (*S3Store)(nil)

// S3Store keeps documents in an S3 or S3-compatible bucket under the same
// repository-relative keys the local store uses.
type S3Store struct {
	client     *s3.Client
	bucketName string
	logger     *logger.Logger
}

func NewS3Store(cfg appconfig.S3Config) (*S3Store, error) {
	log := logger.New("flag_store_s3")

	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, log.Error("S3 credentials are empty ❌", fmt.Errorf("accessKey or secretKey is empty"))
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, log.Error("Unable to load SDK config ❌", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.%s", cfg.Region, cfg.Endpoint))
		}
	})

	// Verify credentials before accepting writes
	_, err = client.ListObjectsV2(context.TODO(), &s3.ListObjectsV2Input{
		Bucket:  aws.String(cfg.BucketName),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, log.Error("Failed to verify S3 credentials ❌", err)
	}

	log.Success("S3 flag store initialized successfully ✅")

	return &S3Store{
		client:     client,
		bucketName: cfg.BucketName,
		logger:     log,
	}, nil
}

func (s *S3Store) GetCurrentConfig(ctx context.Context, ref ResourceRef) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(ref.RepoPath()),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperrors.NotFound("config", ref.RepoPath())
		}
		return nil, s.logger.Error("Failed to fetch config from S3 ❌", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s.logger.Error("Failed to read config body ❌", err)
	}
	return data, nil
}

func (s *S3Store) WriteConfig(ctx context.Context, ref ResourceRef, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(ref.RepoPath()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return s.logger.Error("Failed to write config to S3 ❌", err)
	}
	s.logger.Info("💾 Wrote config %s to bucket %s", ref.RepoPath(), s.bucketName)
	return nil
}
