// Package membershipcard builds the digital membership card shown on the
// dashboard and the data encoded in its QR code.
package membershipcard

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/Amparo/app/models"
)

// Validity is how long a freshly issued card is valid.
const Validity = 365 * 24 * time.Hour

const cpfMissing = "Não informado"

var ErrIncomplete = errors.New("profile, plan and user are required to issue a card")

// Payload is the JSON encoded in the card's QR code.
type Payload struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Plan       string `json:"plan"`
	ValidUntil string `json:"validUntil"`
	Checksum   string `json:"checksum"`
}

// Card is everything the card view needs.
type Card struct {
	FullName   string  `json:"full_name"`
	MaskedCPF  string  `json:"masked_cpf"`
	PlanName   string  `json:"plan_name"`
	ValidUntil string  `json:"valid_until"`
	QRData     string  `json:"qr_data"`
	Payload    Payload `json:"payload"`
	FileName   string  `json:"file_name"`
}

// Issue builds the card for userID at now. Profile and plan are required.
func Issue(userID string, profile *models.Profile, plan *models.Plan, now time.Time) (*Card, error) {
	if userID == "" || profile == nil || plan == nil {
		return nil, ErrIncomplete
	}
	validUntil := now.Add(Validity)

	payload := Payload{
		UserID:     userID,
		Name:       profile.FullName,
		Plan:       plan.Name,
		ValidUntil: validUntil.UTC().Format("2006-01-02"),
		Checksum:   Checksum(userID, now),
	}
	qr, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	cpf := ""
	if profile.CPF != nil {
		cpf = *profile.CPF
	}
	return &Card{
		FullName:   profile.FullName,
		MaskedCPF:  MaskCPF(cpf),
		PlanName:   plan.Name,
		ValidUntil: validUntil.Format("02/01/2006"),
		QRData:     string(qr),
		Payload:    payload,
		FileName:   FileName(profile.FullName),
	}, nil
}

// Checksum is the first 8 characters of base64(userID + unix millis).
func Checksum(userID string, at time.Time) string {
	enc := base64.StdEncoding.EncodeToString([]byte(userID + strconv.FormatInt(at.UnixMilli(), 10)))
	if len(enc) > 8 {
		return enc[:8]
	}
	return enc
}

// MaskCPF keeps only the last two digits.
func MaskCPF(cpf string) string {
	if cpf == "" {
		return cpfMissing
	}
	tail := cpf
	if len(cpf) > 2 {
		tail = cpf[len(cpf)-2:]
	}
	return "***.***.***-" + tail
}

var whitespace = regexp.MustCompile(`\s+`)

// FileName is the download name of the card PDF.
func FileName(fullName string) string {
	return "carteirinha-amparo-" + whitespace.ReplaceAllString(strings.ToLower(fullName), "-") + ".pdf"
}
