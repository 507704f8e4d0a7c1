// Package minio は領収書ファイルを MinIO に保存します。
package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/ogurasousui/codex-expense-approval/internal/platform/config"
)

const keyPrefix = "receipts/"

// Receipt はアップロードされた領収書です。
type Receipt struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ReceiptStore は MinIO バケットに領収書を保存します。
type ReceiptStore struct {
	client *minio.Client
	bucket string
	newID  func() string
	logger *zap.Logger
}

// NewReceiptStore は設定から ReceiptStore を生成します。
func NewReceiptStore(cfg config.MinIOConfig, logger *zap.Logger) (*ReceiptStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio: endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptStore{
		client: client,
		bucket: cfg.Bucket,
		newID:  func() string { return uuid.NewString() },
		logger: logger.Named("receipts"),
	}, nil
}

// EnsureBucket はバケットが存在しない場合に作成します。
func (s *ReceiptStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("minio: create bucket: %w", err)
	}
	s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Save は領収書を保存し、記録用のファイル名を返します。
func (s *ReceiptStore) Save(ctx context.Context, r Receipt) (string, error) {
	name := SanitizeFilename(r.Filename)
	if name == "" {
		return "", nil
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := ObjectKey(s.newID(), name)
	if _, err := s.client.PutObject(ctx, s.bucket, key, r.Body, r.Size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("minio: upload %s: %w", key, err)
	}
	s.logger.Debug("receipt stored", zap.String("key", key), zap.Int64("size", r.Size))
	return name, nil
}

// NameOnlyStore はファイルを保存せず、ファイル名のみを記録します。
type NameOnlyStore struct{}

// Save は本文を読み捨て、正規化したファイル名を返します。
func (NameOnlyStore) Save(_ context.Context, r Receipt) (string, error) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, r.Body)
	}
	return SanitizeFilename(r.Filename), nil
}

// ObjectKey はオブジェクトキー receipts/<id>/<filename> を返します。
func ObjectKey(id, filename string) string {
	return keyPrefix + id + "/" + filename
}

const maxFilenameBytes = 255

// SanitizeFilename はディレクトリ成分と制御文字を取り除き、UTF-8 の文字境界で 255 バイト以内に切り詰めます。
func SanitizeFilename(raw string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if len(name) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
