package minio_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blob/pkg/simpleblob"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote/minio"
)

// TestIntegration runs the provider against a live MinIO server. The bucket
// must exist and carry the cdn-uri tag, or SIMPLEBLOB_MINIO_CDN_BASE_URL must be set.
func TestIntegration(t *testing.T) {
	endpoint := os.Getenv("SIMPLEBLOB_MINIO_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("SIMPLEBLOB_MINIO_ENDPOINT not set")
	}

	settings := map[string]string{
		simpleblob.SettingUsername:     envOr("SIMPLEBLOB_MINIO_ACCESS_KEY", "minioadmin"),
		simpleblob.SettingAPIKey:       envOr("SIMPLEBLOB_MINIO_SECRET_KEY", "minioadmin"),
		simpleblob.SettingContainer:    envOr("SIMPLEBLOB_MINIO_BUCKET", "media"),
		simpleblob.SettingOnMissingURL: "fail",
		minio.SettingEndpoint:          endpoint,
		minio.SettingSecure:            envOr("SIMPLEBLOB_MINIO_SECURE", "false"),
		minio.SettingCDNBaseURL:        os.Getenv("SIMPLEBLOB_MINIO_CDN_BASE_URL"),
	}

	ctx := context.Background()
	p, err := simpleblob.New(simpleblob.WithDriver(minio.New(minio.ConfigFromSettings(settings))))
	require.NoError(t, err)
	require.NoError(t, p.Initialize(ctx, settings))

	src := simpleblob.NewLocation(uuid.New(), ".txt", "/integration/src.txt")
	dst := simpleblob.NewLocation(uuid.New(), ".txt", "/integration/dst.txt")
	t.Cleanup(func() {
		_ = p.Delete(ctx, src)
		_ = p.Delete(ctx, dst)
	})

	n, err := p.Upload(ctx, src, strings.NewReader("integration"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.True(t, p.Exists(ctx, src))

	reader, ok := p.GetDownloadStream(ctx, src)
	require.True(t, ok)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "integration", string(data))

	url, err := p.GetURL(ctx, src)
	require.NoError(t, err)
	assert.Contains(t, url, src.ID.String())

	require.NoError(t, p.Move(ctx, src, dst))
	assert.False(t, p.Exists(ctx, src))
	assert.True(t, p.Exists(ctx, dst))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
