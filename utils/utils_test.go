package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccessCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateAccessCode(8)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.Equal(t, strings.ToUpper(code), code)
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "0")
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestNormalizeAccessCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeAccessCode("  ab12cd \n"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Asha Rao", NormalizeName("  asha   rao "))
	assert.Equal(t, "IIT Madras", NormalizeName("IIT madras"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "jose muller", Fold("José Müller"))
}

func TestFormatINR(t *testing.T) {
	assert.True(t, strings.HasPrefix(FormatINR(135), "₹"))
	assert.Contains(t, FormatINR(135), "135.00")
}

func TestLocalStore_Put(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "/uploads/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "payment-proofs/abc.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/payment-proofs/abc.png", url)

	data, err := os.ReadFile(filepath.Join(root, "payment-proofs", "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = store.Put(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("payment-proofs", "Receipt.PNG")
	assert.True(t, strings.HasPrefix(key, "payment-proofs/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.True(t, strings.HasSuffix(ObjectKey("x", "noext"), ".jpg"))
}
