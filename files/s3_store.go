package files

import (
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"quorum/common"
)

// S3FileStore uploads attachments to an S3 bucket and serves them through
// the configured public prefix.
type S3FileStore struct {
	bucket    string
	urlPrefix string
	uploader  *s3manager.Uploader
}

// NewS3FileStore builds the store from S3_BUCKET, S3_REGION and
// S3_URL_PREFIX. Returns nil when no bucket is configured; main decides
// whether that is acceptable.
func NewS3FileStore() *S3FileStore {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		common.Log.Info("S3_BUCKET not set - file uploads disabled")
		return nil
	}

	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		common.Log.WithError(err).Error("could not create AWS session")
		return nil
	}

	return &S3FileStore{
		bucket:    bucket,
		urlPrefix: os.Getenv("S3_URL_PREFIX"),
		uploader:  s3manager.NewUploader(sess),
	}
}

func (s *S3FileStore) Upload(key string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		ACL:    aws.String("public-read"),
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", err
	}

	if s.urlPrefix != "" {
		return s.urlPrefix + key, nil
	}
	return "https://" + s.bucket + ".s3.amazonaws.com/" + key, nil
}
