// Package avatar resolves the picture shown for a customer.
package avatar

import (
	"crypto/md5"
	"fmt"
	"strings"

	"github.com/ManuelReschke/Amparo/app/models"
)

const DefaultSize = 96

// GravatarURL builds the Gravatar URL for email, falling back to the
// "mystery person" image when the address has none.
func GravatarURL(email string, size int) string {
	if size <= 0 {
		size = DefaultSize
	}
	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}

// URL prefers the uploaded avatar of the profile.
func URL(profile *models.Profile, email string, size int) string {
	if profile != nil && profile.AvatarURL != nil && *profile.AvatarURL != "" {
		return *profile.AvatarURL
	}
	return GravatarURL(email, size)
}
