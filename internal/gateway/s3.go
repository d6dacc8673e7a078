package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/whispertag/whispertag/internal/common"
	"github.com/whispertag/whispertag/internal/logging"
)

// S3Config holds the settings for an S3-compatible backend (MinIO etc.).
type S3Config struct {
	Region       string
	BaseEndpoint string
	Bucket       string
	AccessKey    string
	SecretKey    string
}

// S3Gateway stores packages in an S3-compatible bucket. The object key is the
// hex SHA-256 of the payload, which doubles as the content address, so a
// download can always be verified against the address it was fetched by.
type S3Gateway struct {
	client *s3.Client
	bucket string
	log    logging.Logger
}

func NewS3Gateway(ctx context.Context, cfg S3Config, log logging.Logger) (*S3Gateway, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Gateway{
		client: client,
		bucket: cfg.Bucket,
		log:    log.With("component", "s3_gateway"),
	}, nil
}

func (g *S3Gateway) Ready() bool {
	return g.client != nil && g.bucket != ""
}

// ContentAddress computes the address the gateway would assign to data.
func ContentAddress(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (g *S3Gateway) Upload(ctx context.Context, data []byte, id string) (string, error) {
	addr := ContentAddress(data)

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(g.bucket),
		Key:      aws.String(addr),
		Body:     bytes.NewReader(data),
		Metadata: map[string]string{"message-id": id},
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3 put: %v", common.ErrGatewayExhausted, err)
	}

	g.log.Debug(ctx, "uploaded package", "address", addr, "size", len(data))
	return addr, nil
}

func (g *S3Gateway) Download(ctx context.Context, contentAddress string) ([]byte, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(contentAddress),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 get: %v", common.ErrGatewayExhausted, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 read: %v", common.ErrGatewayExhausted, err)
	}

	// The address is content-derived; a mismatch means the bucket was
	// tampered with or the object was overwritten.
	if ContentAddress(data) != contentAddress {
		return nil, fmt.Errorf("%w: content address verification failed", common.ErrMalformedPackage)
	}

	return data, nil
}
