package events

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
)

const (
	objectCreatedEvent = "s3:ObjectCreated:*"

	// ManifestSuffix marks parser output uploaded next to the source document.
	ManifestSuffix = ".sections.json"
)

type ManifestEvent struct {
	DocumentID string
	FileName   string
	ObjectKey  string
	EventName  string
}

type ManifestEventSource interface {
	Run(ctx context.Context, handler func(context.Context, ManifestEvent) error) error
}

// MinioManifestSource turns bucket notifications for
// <documentId>/<name>.sections.json objects into ManifestEvents.
type MinioManifestSource struct {
	client *minio.Client
	bucket string
	prefix string
	suffix string
}

func NewMinioManifestSource(client *minio.Client, bucket, prefix, suffix string) *MinioManifestSource {
	if suffix == "" {
		suffix = ManifestSuffix
	}
	return &MinioManifestSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		suffix: suffix,
	}
}

func (s *MinioManifestSource) Run(ctx context.Context, handler func(context.Context, ManifestEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, s.suffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				ev, err := parseManifestKey(objectKey, s.suffix)
				if err != nil {
					continue
				}
				ev.EventName = record.EventName
				if err := handler(ctx, ev); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

func parseObjectKey(objectKey string) (string, string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	parts := strings.SplitN(cleaned, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("object key %q does not match document_id/filename", objectKey)
	}
	documentID := strings.TrimSpace(parts[0])
	filename := strings.TrimSpace(parts[1])
	if documentID == "" || filename == "" {
		return "", "", fmt.Errorf("object key %q missing document id or filename", objectKey)
	}
	return documentID, filename, nil
}

// parseManifestKey splits "doc-1/specs.xlsx.sections.json" into the
// document id and the source file name "specs.xlsx".
func parseManifestKey(objectKey, suffix string) (ManifestEvent, error) {
	documentID, filename, err := parseObjectKey(objectKey)
	if err != nil {
		return ManifestEvent{}, err
	}
	if !strings.HasSuffix(filename, suffix) {
		return ManifestEvent{}, fmt.Errorf("object key %q is not a %s manifest", objectKey, suffix)
	}
	source := strings.TrimSuffix(filename, suffix)
	if source == "" {
		return ManifestEvent{}, fmt.Errorf("object key %q has no source file name", objectKey)
	}
	return ManifestEvent{DocumentID: documentID, FileName: source, ObjectKey: objectKey}, nil
}
