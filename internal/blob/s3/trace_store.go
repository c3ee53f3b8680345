package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// TraceStore implements domain.TraceStore over object storage. Each trace is
// one JSON document written under two keys:
//
//	traces/runs/<run_id>.json                          lookup by run id
//	traces/accounts/<account_id>/<started_at>-<run_id>.json   time-ordered listing
//
// Traces are immutable once written, so the duplicate never diverges.
type TraceStore struct {
	client *s3.Client
	bucket string
}

var _ domain.TraceStore = (*TraceStore)(nil)

func NewTraceStore(c *Client) *TraceStore {
	return &TraceStore{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

const keyTimeFormat = "20060102T150405Z"

func runKey(runID string) string {
	return "traces/runs/" + runID + ".json"
}

func accountKey(trace domain.CycleTrace) string {
	return fmt.Sprintf("traces/accounts/%s/%s-%s.json",
		trace.AccountID, trace.StartedAt.UTC().Format(keyTimeFormat), trace.RunID)
}

// Put uploads the trace document under both keys.
func (s *TraceStore) Put(ctx context.Context, trace domain.CycleTrace) error {
	body, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("s3blob: marshal trace %s: %w", trace.RunID, err)
	}
	for _, key := range []string{runKey(trace.RunID), accountKey(trace)} {
		if err := s.put(ctx, key, body); err != nil {
			return err
		}
	}
	return nil
}

func (s *TraceStore) put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

// Get retrieves one trace by run id.
func (s *TraceStore) Get(ctx context.Context, runID string) (domain.CycleTrace, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(runKey(runID)),
	})
	if err != nil {
		if isNotFound(err) {
			return domain.CycleTrace{}, fmt.Errorf("s3blob: trace %s: %w", runID, domain.ErrNotFound)
		}
		return domain.CycleTrace{}, fmt.Errorf("s3blob: get trace %s: %w", runID, err)
	}
	defer out.Body.Close()

	var trace domain.CycleTrace
	if err := json.NewDecoder(out.Body).Decode(&trace); err != nil {
		return domain.CycleTrace{}, fmt.Errorf("s3blob: decode trace %s: %w", runID, err)
	}
	return trace, nil
}

// List returns the account's traces newest first. Keys embed the start time,
// so the window filter runs on key names and only matching documents are
// fetched.
func (s *TraceStore) List(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.CycleTrace, error) {
	prefix := "traces/accounts/" + accountID + "/"

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list traces for %s: %w", accountID, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if inWindow(key, prefix, opts) {
				keys = append(keys, key)
			}
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if opts.Offset > 0 {
		if opts.Offset >= len(keys) {
			return nil, nil
		}
		keys = keys[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(keys) {
		keys = keys[:opts.Limit]
	}

	traces := make([]domain.CycleTrace, 0, len(keys))
	for _, key := range keys {
		trace, err := s.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		traces = append(traces, trace)
	}
	return traces, nil
}

func (s *TraceStore) fetch(ctx context.Context, key string) (domain.CycleTrace, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.CycleTrace{}, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	defer out.Body.Close()

	var trace domain.CycleTrace
	if err := json.NewDecoder(out.Body).Decode(&trace); err != nil {
		return domain.CycleTrace{}, fmt.Errorf("s3blob: decode %s: %w", key, err)
	}
	return trace, nil
}

// inWindow parses the start time out of the key name and applies the
// Since/Until filter.
func inWindow(key, prefix string, opts domain.ListOpts) bool {
	if opts.Since == nil && opts.Until == nil {
		return true
	}
	name := path.Base(strings.TrimPrefix(key, prefix))
	if len(name) < len(keyTimeFormat) {
		return false
	}
	ts, err := time.Parse(keyTimeFormat, name[:len(keyTimeFormat)])
	if err != nil {
		return false
	}
	if opts.Since != nil && ts.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && ts.After(*opts.Until) {
		return false
	}
	return true
}

// isNotFound reports whether err is an S3 missing-object error.
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
