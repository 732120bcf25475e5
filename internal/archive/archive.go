// Package archive implements best-effort S3 archival of run artifacts
// (backtest equity curves, trade blotters, live boundary charts) after a
// run completes. It is entirely optional: with no S3 bucket configured,
// ArchiveRun is a no-op.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/errkind"
)

// Archiver uploads a run's artifact directory to S3. Constructed once per
// process; the underlying AWS config is resolved lazily on first use so a
// process with no archival configured never touches AWS credential
// discovery at all.
type Archiver struct {
	bucket string
	region string
	log    zerolog.Logger

	uploader *manager.Uploader
}

// New creates an Archiver. bucket empty disables archival; ArchiveRun then
// always returns nil without touching the network.
func New(bucket, region string, log zerolog.Logger) *Archiver {
	return &Archiver{bucket: bucket, region: region, log: log.With().Str("component", "archive").Logger()}
}

// Enabled reports whether a bucket is configured.
func (a *Archiver) Enabled() bool { return a.bucket != "" }

func (a *Archiver) ensureUploader(ctx context.Context) error {
	if a.uploader != nil {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.region))
	if err != nil {
		return errkind.Wrap(errkind.Internal, err, "failed to load AWS config for archival")
	}
	client := s3.NewFromConfig(cfg)
	a.uploader = manager.NewUploader(client)
	return nil
}

// Result reports what ArchiveRun actually uploaded.
type Result struct {
	Bucket        string   `json:"bucket"`
	Prefix        string   `json:"prefix"`
	UploadedFiles []string `json:"uploaded_files"`
	Skipped       bool     `json:"skipped"`
}

// ArchiveRun uploads every regular file under dir, recursively, to
// s3://bucket/kind/runID/<relative path>. Individual file failures are
// logged and skipped rather than aborting the whole run; only a failure to
// reach S3 at all (bad credentials, no network) is returned as an error.
func (a *Archiver) ArchiveRun(ctx context.Context, kind, runID, dir string) (*Result, error) {
	if !a.Enabled() {
		return &Result{Skipped: true}, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return &Result{Skipped: true}, nil
		}
		return nil, errkind.Wrap(errkind.Internal, err, "failed to stat artifact directory")
	}

	if err := a.ensureUploader(ctx); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%s/%s", kind, runID)
	result := &Result{Bucket: a.bucket, Prefix: prefix}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := prefix + "/" + filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("failed to open artifact for archival")
			return nil
		}
		defer f.Close()

		if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
			Body:   f,
		}); err != nil {
			a.log.Warn().Err(err).Str("key", key).Msg("failed to upload artifact")
			return nil
		}
		result.UploadedFiles = append(result.UploadedFiles, key)
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "failed to walk artifact directory")
	}

	a.log.Info().Str("run_id", runID).Str("kind", kind).Int("files", len(result.UploadedFiles)).Msg("archived run artifacts")
	return result, nil
}
