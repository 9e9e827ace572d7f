package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  env: development
mongodb:
  uri: mongodb://localhost:27017
  database: chat
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "messages", cfg.Mongo.MessagesCollection)
	assert.Equal(t, "conversations", cfg.Mongo.ConversationsCollection)
	assert.Equal(t, "message.sent", cfg.Kafka.TopicMessageSent)
	assert.Equal(t, "marketplace-chat", cfg.Kafka.GroupID)
	assert.EqualValues(t, 10<<20, cfg.Upload.MaxBytes)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadReadsS3EndpointAndTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
request_timeout: 3s
s3:
  region: us-east-1
  bucket: chat-files
  endpoint: http://localhost:9000
  public_read: true
`))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.PublicRead)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
