// Package media stores uploaded attachments in the object store and answers
// with the descriptor the chat client embeds into messages.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/fathima-sithara/marketplace-chat/internal/models"
	"github.com/fathima-sithara/marketplace-chat/internal/storage"
)

type Service struct {
	store    storage.ObjectStore
	maxBytes int64
}

func NewService(store storage.ObjectStore, maxBytes int64) *Service {
	return &Service{store: store, maxBytes: maxBytes}
}

var ErrTooLarge = fmt.Errorf("file exceeds upload limit")

// Upload decodes the base64 payload, stores it and returns the attachment
// descriptor. Images additionally get a 320px thumbnail stored next to the
// original; thumbnail failures do not fail the upload.
func (s *Service) Upload(ctx context.Context, userID, fileName, fileType, b64 string) (*models.Attachment, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	if fileType == "" {
		fileType = http.DetectContentType(data)
	}

	key := userID + "/" + uuid.NewString() + "_" + fileName
	url, err := s.store.Put(ctx, key, fileType, data)
	if err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	if strings.HasPrefix(fileType, "image/") {
		if thumb, err := thumbnail(data); err == nil {
			_, _ = s.store.Put(ctx, key+"_thumb.jpg", "image/jpeg", thumb)
		}
	}

	return &models.Attachment{
		URL:  url,
		Name: fileName,
		Type: fileType,
		Size: int64(len(data)),
	}, nil
}

func thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, 320, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
