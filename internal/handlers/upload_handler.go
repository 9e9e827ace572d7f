package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketplace-chat/internal/auth"
	"github.com/fathima-sithara/marketplace-chat/internal/media"
	"github.com/fathima-sithara/marketplace-chat/internal/metrics"
)

type UploadHandler struct {
	svc *media.Service
	log *zap.SugaredLogger
}

func NewUploadHandler(svc *media.Service, log *zap.SugaredLogger) *UploadHandler {
	return &UploadHandler{svc: svc, log: log}
}

type uploadBody struct {
	Base64   string `json:"base64"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// Post stores one base64-encoded file and returns its descriptor.
func (h *UploadHandler) Post(c *fiber.Ctx) error {
	var body uploadBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if body.Base64 == "" || body.FileName == "" {
		return fail(c, fiber.StatusBadRequest, "base64 and fileName required")
	}

	userID := auth.CallerID(c)
	if userID == "" {
		userID = "anonymous"
	}
	att, err := h.svc.Upload(c.Context(), userID, body.FileName, body.FileType, body.Base64)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return fail(c, fiber.StatusRequestEntityTooLarge, "file too large")
		}
		h.log.Errorw("upload", "file", body.FileName, "err", err)
		return fail(c, fiber.StatusInternalServerError, "upload failed")
	}
	metrics.UploadsTotal.Inc()
	return c.JSON(fiber.Map{"success": true, "file": att})
}
