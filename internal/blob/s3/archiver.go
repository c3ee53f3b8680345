package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// minPartSize is the S3 minimum multipart part size (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// Archiver bundles an account's old cycle traces into one JSONL object so
// the per-run documents can be expired by bucket lifecycle rules without
// losing the audit history.
type Archiver struct {
	traces *TraceStore
	client *s3.Client
	bucket string
	log    *slog.Logger
}

func NewArchiver(c *Client, traces *TraceStore, log *slog.Logger) *Archiver {
	return &Archiver{
		traces: traces,
		client: c.S3(),
		bucket: c.Bucket(),
		log:    log.With("component", "trace_archiver"),
	}
}

// Archive collects every trace started before the cutoff and uploads them as
// one JSONL document under archives/<account_id>/<cutoff>.jsonl. It returns
// the number of traces archived. The per-run objects are left in place;
// deletion is the lifecycle policy's job.
func (a *Archiver) Archive(ctx context.Context, accountID string, before time.Time) (int, error) {
	traces, err := a.traces.List(ctx, accountID, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, err
	}
	if len(traces) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, trace := range traces {
		if err := enc.Encode(trace); err != nil {
			return 0, fmt.Errorf("s3blob: encode trace %s: %w", trace.RunID, err)
		}
	}

	key := fmt.Sprintf("archives/%s/%s.jsonl", accountID, before.UTC().Format(keyTimeFormat))
	uploader := manager.NewUploader(a.client, func(u *manager.Uploader) {
		u.PartSize = minPartSize
	})
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        &buf,
		ContentType: aws.String("application/jsonl"),
	}); err != nil {
		return 0, fmt.Errorf("s3blob: upload archive %s: %w", key, err)
	}

	a.log.Info("traces archived", "account_id", accountID, "count", len(traces), "key", key)
	return len(traces), nil
}
