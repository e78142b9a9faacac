package controllers

import (
	"errors"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/internal/pkg/storage"
)

var errNoFile = errors.New("Nenhum arquivo enviado")

// saveUpload stores the image sent in the multipart field and returns its URL.
func saveUpload(c *fiber.Ctx, images ImageStore, field string, kind storage.Kind) (string, error) {
	if images == nil {
		return "", errors.New("image storage not configured")
	}
	file, err := c.FormFile(field)
	if err != nil {
		return "", errNoFile
	}
	if file.Size > storage.MaxUploadBytes {
		return "", storage.ErrTooLarge
	}
	return saveFile(c, images, file, kind)
}

func saveFile(c *fiber.Ctx, images ImageStore, file *multipart.FileHeader, kind storage.Kind) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return images.Save(c.UserContext(), kind, file.Filename, src)
}

// optionalUpload is saveUpload for forms where the file may be left out.
func optionalUpload(c *fiber.Ctx, images ImageStore, field string, kind storage.Kind) (string, error) {
	if _, err := c.FormFile(field); err != nil {
		return "", nil
	}
	return saveUpload(c, images, field, kind)
}

func uploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errNoFile):
		return badRequest(c, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		return apiError(c, fiber.StatusRequestEntityTooLarge, "too_large", err.Error())
	case errors.Is(err, storage.ErrUnsupportedImage):
		return apiError(c, fiber.StatusUnsupportedMediaType, "unsupported_media_type", err.Error())
	}
	fiberlog.Errorf("[Upload] %v", err)
	return apiError(c, fiber.StatusInternalServerError, "upload_failed", "Falha ao enviar a imagem.")
}
