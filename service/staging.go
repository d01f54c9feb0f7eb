package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/model"
	"github.com/AnTengye/topicdetect/pkg/logger"
)

const (
	keyTokenLength   = 12
	maxKeyNameLength = 100
)

// Stager persists normalized text as a named object, padded up to the job
// service's minimum object size.
type Stager struct {
	store   ObjectStore
	dir     string
	minSize int
}

func NewStager(store ObjectStore, cfg *config.StorageConfig) *Stager {
	return &Stager{
		store:   store,
		dir:     cfg.StagingDir,
		minSize: cfg.MinObjectSize,
	}
}

// Stage writes text to the local staging area, pads it, and uploads it.
// Any failure is ErrStaging and nothing is left for submission.
func (s *Stager) Stage(ctx context.Context, text *model.NormalizedText) (*model.StagedObject, error) {
	key := ObjectKey(text.SourceURL)
	path := filepath.Join(s.dir, key)
	defer os.Remove(path)

	size, padded, err := writeStagingFile(path, []byte(text.Text), s.minSize)
	if err != nil {
		return nil, wrap(ErrStaging, err)
	}

	if err := s.store.Upload(ctx, key, path); err != nil {
		return nil, wrap(ErrStaging, err)
	}

	obj := &model.StagedObject{
		Key:       key,
		Bucket:    s.store.Bucket(),
		SizeBytes: size,
		Padded:    padded,
	}
	logger.Info(ctx, "content staged",
		"bucket", obj.Bucket,
		"key", obj.Key,
		"size_bytes", obj.SizeBytes,
		"padded", obj.Padded,
	)
	return obj, nil
}

// ReadBack downloads a staged object and returns its text without padding.
func (s *Stager) ReadBack(ctx context.Context, key string) (string, error) {
	if !ValidObjectKey(key) {
		return "", wrap(ErrInputValidation, fmt.Errorf("invalid object key %q", key))
	}

	f, err := os.CreateTemp(s.dir, "readback-*.txt")
	if err != nil {
		return "", fmt.Errorf("create readback file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := s.store.Download(ctx, key, path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read readback file: %w", err)
	}
	return UnpadText(string(data)), nil
}

// writeStagingFile writes data to path, then measures it and appends newline
// padding if it is below minSize.
func writeStagingFile(path string, data []byte, minSize int) (int64, bool, error) {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return 0, false, fmt.Errorf("write staging file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, false, fmt.Errorf("stat staging file: %w", err)
	}
	size := info.Size()

	pad := PaddingFor(size, minSize)
	if pad == 0 {
		return size, false, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, false, fmt.Errorf("open staging file: %w", err)
	}
	if _, err := f.Write(bytes.Repeat([]byte{'\n'}, pad)); err != nil {
		f.Close()
		return 0, false, fmt.Errorf("pad staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, false, fmt.Errorf("close staging file: %w", err)
	}

	return size + int64(pad), true, nil
}

// PaddingFor returns how many newlines to append to an object of size bytes.
// Anything below minSize is padded to minSize+1.
func PaddingFor(size int64, minSize int) int {
	if size >= int64(minSize) {
		return 0
	}
	return int(int64(minSize) - size + 1)
}

// PadText is the in-memory form of the staging padding.
func PadText(text string, minSize int) string {
	return text + strings.Repeat("\n", PaddingFor(int64(len(text)), minSize))
}

// UnpadText strips trailing newline padding. Normalized text never ends in a
// newline, so UnpadText(PadText(t, n)) == t for any extracted text.
func UnpadText(staged string) string {
	return strings.TrimRight(staged, "\n")
}

// ObjectKey derives "<random token>-<sanitized url>.txt". The token keeps
// concurrent requests for the same URL from colliding.
func ObjectKey(sourceURL string) string {
	return RandomKeyToken() + "-" + SanitizeURL(sourceURL) + ".txt"
}

var objectKeyPattern = regexp.MustCompile(`^[0-9a-f]+-[A-Za-z0-9]*\.txt$`)

// ValidObjectKey reports whether key has the shape ObjectKey produces.
func ValidObjectKey(key string) bool {
	return objectKeyPattern.MatchString(key)
}

// SanitizeURL drops every character that is not a letter or digit.
func SanitizeURL(sourceURL string) string {
	var b strings.Builder
	for _, r := range sourceURL {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
		if b.Len() >= maxKeyNameLength {
			break
		}
	}
	return b.String()
}

// RandomKeyToken returns the short random prefix of an object key.
func RandomKeyToken() string {
	return config.RandomToken(keyTokenLength)
}

// StagedInputURI is the job input location for a staged object.
func StagedInputURI(obj *model.StagedObject) string {
	return fmt.Sprintf("s3://%s/%s", obj.Bucket, obj.Key)
}

// OutputPrefixURI is the job output location for a bucket.
func OutputPrefixURI(bucket string) string {
	return fmt.Sprintf("s3://%s", bucket)
}
