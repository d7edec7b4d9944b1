package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hypernova-labs/invoice-service/internal/config"
	"github.com/sirupsen/logrus"
)

// ObjectStorage envuelve un bucket compatible con S3 (AWS, MinIO)
type ObjectStorage struct {
	s3Client *s3.Client
	logger   *logrus.Logger
	bucket   string
}

// NewObjectStorage crea el cliente S3 con credenciales estáticas
func NewObjectStorage(cfg *config.Config, logger *logrus.Logger) (*ObjectStorage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, "",
		)),
		awsconfig.WithRegion(cfg.S3.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			// los proveedores compatibles no soportan virtual-host
			o.UsePathStyle = true
		}
	})

	return &ObjectStorage{
		s3Client: s3Client,
		logger:   logger,
		bucket:   cfg.Storage.Bucket,
	}, nil
}

// Bucket retorna el nombre del bucket configurado
func (s *ObjectStorage) Bucket() string {
	return s.bucket
}

// HealthCheck verifica que el bucket existe
func (s *ObjectStorage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("error checking bucket %s: %w", s.bucket, err)
	}
	return nil
}

// EnsureBucket crea el bucket si todavía no existe
func (s *ObjectStorage) EnsureBucket(ctx context.Context) error {
	if err := s.HealthCheck(ctx); err == nil {
		return nil
	}

	_, err := s.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("error creating bucket %s: %w", s.bucket, err)
	}

	s.logger.WithField("bucket", s.bucket).Info("Bucket created")
	return nil
}

// Put sube (o sobrescribe) un objeto
func (s *ObjectStorage) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("error uploading %s: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
		"size":   len(data),
	}).Info("Object uploaded")
	return nil
}
