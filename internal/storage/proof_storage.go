package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/job-settlement/internal/domain/repository"
	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

const refPrefix = "blake2b:"

var ErrTooLarge = errors.New("storage: размер файла превышает лимит")

// ProofStorage - файловое хранилище подтверждений оплаты с адресацией по содержимому.
// Ссылка имеет вид "blake2b:<hex>", одинаковые файлы хранятся один раз.
type ProofStorage struct {
	rootPath       string
	maxUploadBytes int64
}

var _ repository.BlobStore = (*ProofStorage)(nil)

// NewProofStorage создаёт файловое хранилище.
func NewProofStorage(rootPath string, maxUploadMB int64) (*ProofStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}

	return &ProofStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

func (s *ProofStorage) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Store сохраняет поток и возвращает ссылку на него.
func (s *ProofStorage) Store(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.rootPath, "upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	tempPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
	}()

	hash, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("storage: %w", err)
	}

	limited := &io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	written, err := io.Copy(io.MultiWriter(tmp, hash), limited)
	if err != nil {
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		return "", fmt.Errorf("%w (%d байт)", ErrTooLarge, s.maxUploadBytes)
	}
	if written == 0 {
		return "", apperror.New(apperror.ErrCodeValidation, "файл подтверждения пуст")
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	digest := hex.EncodeToString(hash.Sum(nil))
	targetPath := s.pathFor(digest)
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}

	if _, err := os.Stat(targetPath); err == nil {
		return refPrefix + digest, nil
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return refPrefix + digest, nil
}

// Retrieve открывает ранее сохранённый файл.
func (s *ProofStorage) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.pathFor(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "файл подтверждения не найден")
		}
		return nil, fmt.Errorf("storage: не удалось открыть файл: %w", err)
	}
	return f, nil
}

// pathFor раскладывает файлы по подкаталогам из первых двух символов хеша.
func (s *ProofStorage) pathFor(digest string) string {
	return filepath.Join(s.rootPath, digest[:2], digest)
}

func parseRef(ref string) (string, error) {
	digest, ok := strings.CutPrefix(ref, refPrefix)
	if !ok || len(digest) != blake2b.Size256*2 {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректная ссылка на файл")
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректная ссылка на файл")
	}
	return digest, nil
}
