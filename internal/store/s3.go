package store

import (
	"bytes"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

// S3Store fronts an S3-compatible bucket as a content-addressed
// store: the key is the hash, computed client-side before Put. This
// mirrors the host stack's s3Store (storage/s3.go) near verbatim —
// same ensureClient/GetObject/PutObject shape, same 404-to-ErrNotFound
// translation — generalized from "one object per tree node" to "one
// object per translated-object/raw-blob payload".
type S3Store struct {
	profile string
	region  string
	bucket  string
	client  *s3.S3
}

var _ Store = (*S3Store)(nil)

func NewS3Store(profile, region, bucket string) *S3Store {
	return &S3Store{profile: profile, region: region, bucket: bucket}
}

func (s *S3Store) Add(data []byte) (string, error) {
	if err := s.ensureClient(); err != nil {
		return "", err
	}
	hash := hashOf(data)
	_, err := s.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(hash),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", errors.Wrapf(err, "store: s3 put %s", hash)
	}
	return hash, nil
}

func (s *S3Store) Cat(hash string) ([]byte, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	output, err := s.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(hash),
	})
	if err != nil {
		if rfErr, ok := err.(awserr.RequestFailure); ok && rfErr.StatusCode() == http.StatusNotFound {
			return nil, errors.Wrapf(ErrNotFound, "hash=%q err=%+v", hash, err)
		}
		return nil, err
	}
	defer closeQuietly(output.Body)
	return io.ReadAll(output.Body)
}

func (s *S3Store) Stats() (Stats, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	out, err := s.client.ListObjects(&s3.ListObjectsInput{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return nil, err
	}
	return Stats{"bucket": s.bucket, "isTruncated": aws.BoolValue(out.IsTruncated)}, nil
}

func (s *S3Store) ensureClient() error {
	if s.client != nil {
		return nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(s.region),
		Credentials: credentials.NewSharedCredentials("", s.profile),
	})
	if err != nil {
		return err
	}
	s.client = s3.New(sess)
	return nil
}
