package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket serves objects from memory
type fakeBucket struct {
	objects map[string]string
	listErr error
}

func (b *fakeBucket) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []ObjectInfo
	for key, body := range b.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(body))})
		}
	}
	return out, nil
}

func (b *fakeBucket) DownloadObject(ctx context.Context, key, destPath string) error {
	body, ok := b.objects[key]
	if !ok {
		return errors.New("no such key")
	}
	return os.WriteFile(destPath, []byte(body), 0o644)
}

func (b *fakeBucket) UploadObject(ctx context.Context, key string, data []byte) error {
	b.objects[key] = string(data)
	return nil
}

func (b *fakeBucket) UploadFile(ctx context.Context, key, srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", err
	}
	b.objects[key] = string(data)
	return "mem://" + key, nil
}

func TestFetchDataset(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{
		"datasets/2024-06/products.csv":    "id\nP1\n",
		"datasets/2024-06/sales.csv":       "product_id\nP1\n",
		"datasets/2024-06/archive/old.csv": "x\n",
		"datasets/2024-06/README.md":       "notes",
		"datasets/2024-05/products.csv":    "id\nP0\n",
	}}
	dir := t.TempDir()

	paths, err := FetchDataset(context.Background(), bucket, "datasets/2024-06/", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "archive", "old.csv"),
		filepath.Join(dir, "products.csv"),
		filepath.Join(dir, "sales.csv"),
	}, paths)

	body, err := os.ReadFile(filepath.Join(dir, "products.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\nP1\n", string(body))
	assert.NoFileExists(t, filepath.Join(dir, "README.md"))
}

func TestFetchDataset_Errors(t *testing.T) {
	_, err := FetchDataset(context.Background(), &fakeBucket{objects: map[string]string{"x/readme.md": ""}}, "x", t.TempDir())
	assert.ErrorContains(t, err, "no CSV files")

	_, err = FetchDataset(context.Background(), &fakeBucket{listErr: errors.New("access denied")}, "x", t.TempDir())
	assert.ErrorContains(t, err, "access denied")
}

func TestObjectRelativePath(t *testing.T) {
	assert.Equal(t, "sales.csv", objectRelativePath("data", "data/sales.csv"))
	assert.Equal(t, "a/sales.csv", objectRelativePath("data/", "data/a/sales.csv"))
	assert.Equal(t, "sales.csv", objectRelativePath("other", "data/sales.csv"))
	assert.Equal(t, "data/sales.csv", objectRelativePath("", "data/sales.csv"))
}
