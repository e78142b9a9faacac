package storage

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var ErrUnsupportedImage = errors.New("Formato não suportado. Envie JPG, PNG, GIF ou BMP")

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	// SVG is excluded: it can carry scripts
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
}

// ValidateImageBySniff checks the provided filename (extension) and the first bytes (head)
// against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedImage
	}

	detected := http.DetectContentType(head)
	if strings.HasPrefix(detected, "text/") || strings.Contains(detected, "xml") {
		return "", errors.New("Tipo de arquivo inválido")
	}
	if !allowedMime[detected] {
		return "", ErrUnsupportedImage
	}
	return detected, nil
}
