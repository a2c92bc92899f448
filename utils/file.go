package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes uploads under Root and serves them from BaseURL (app.Static).
type LocalStore struct {
	Root    string
	BaseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to ensure upload dir: %w", err)
	}
	return &LocalStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *LocalStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	destPath := filepath.Join(l.Root, filepath.FromSlash(key))
	if !strings.HasPrefix(destPath, filepath.Clean(l.Root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal upload key: %s", key)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, body); err != nil {
		return "", err
	}
	return l.BaseURL + "/" + key, nil
}

// Upload is a file received with a request.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadFromHeader opens a multipart file. The caller closes the returned closer.
func UploadFromHeader(fh *multipart.FileHeader) (*Upload, io.Closer, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return &Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        file,
	}, file, nil
}

// ObjectKey builds "<prefix>/<uuid><ext>" keeping the upload's extension.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return prefix + "/" + uuid.NewString() + ext
}
