package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Kind selects the folder and the maximum size of an uploaded image.
type Kind string

const (
	KindObituaryPhoto Kind = "obituarios"
	KindPartnerLogo   Kind = "parceiros"
	KindAvatar        Kind = "avatars"
)

var maxSide = map[Kind]int{
	KindObituaryPhoto: 1200,
	KindPartnerLogo:   400,
	KindAvatar:        256,
}

// MaxUploadBytes caps the size of an incoming image.
const MaxUploadBytes = 10 << 20

var ErrTooLarge = errors.New("Imagem maior que 10 MB")

// Bucket is where encoded images end up.
type Bucket interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// Images validates, downsizes and stores uploaded pictures.
type Images struct {
	bucket Bucket
	now    func() time.Time
}

func NewImages(bucket Bucket) *Images {
	return &Images{bucket: bucket, now: time.Now}
}

// NewImagesFromConfig uses S3 when enabled and the local uploads dir otherwise.
func NewImagesFromConfig(ctx context.Context, cfg *Config) (*Images, error) {
	if !cfg.Enabled {
		log.Infof("[Storage] S3 disabled, storing uploads in %s", cfg.LocalDir)
		return NewImages(&LocalBucket{Dir: cfg.LocalDir}), nil
	}
	b, err := NewS3Bucket(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewImages(b), nil
}

// Save stores the image read from r and returns its public URL. PNG input
// stays PNG to keep transparency; everything else becomes JPEG.
func (s *Images) Save(ctx context.Context, kind Kind, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}
	mime, err := ValidateImageBySniff(filename, data)
	if err != nil {
		return "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if side, ok := maxSide[kind]; ok && (img.Bounds().Dx() > side || img.Bounds().Dy() > side) {
		img = imaging.Fit(img, side, side, imaging.Lanczos)
	}

	format, ext, contentType := imaging.JPEG, ".jpg", "image/jpeg"
	if mime == "image/png" {
		format, ext, contentType = imaging.PNG, ".png", "image/png"
	}
	var out bytes.Buffer
	if err := imaging.Encode(&out, img, format, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	key := ObjectKey(kind, uuid.NewString(), ext, s.now())
	return s.bucket.Put(ctx, key, out.Bytes(), contentType)
}

// Remove deletes an image previously returned by Save. URLs from elsewhere are ignored.
func (s *Images) Remove(ctx context.Context, url string) {
	key, ok := s.bucket.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.bucket.Delete(ctx, key); err != nil {
		log.Warnf("[Storage] failed to delete %s: %v", key, err)
	}
}
