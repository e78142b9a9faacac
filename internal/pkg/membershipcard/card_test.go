package membershipcard

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Amparo/app/models"
)

func TestIssue(t *testing.T) {
	cpf := "12345678909"
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	profile := &models.Profile{ID: "u1", FullName: "Maria da Silva", CPF: &cpf}
	plan := &models.Plan{Name: "Familiar"}

	card, err := Issue("u1", profile, plan, now)
	require.NoError(t, err)

	assert.Equal(t, "***.***.***-09", card.MaskedCPF)
	assert.Equal(t, "10/03/2027", card.ValidUntil)
	assert.Equal(t, "carteirinha-amparo-maria-da-silva.pdf", card.FileName)

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(card.QRData), &p))
	assert.Equal(t, Payload{
		UserID:     "u1",
		Name:       "Maria da Silva",
		Plan:       "Familiar",
		ValidUntil: "2027-03-10",
		Checksum:   Checksum("u1", now),
	}, p)
}

func TestIssueRequiresPlan(t *testing.T) {
	_, err := Issue("u1", &models.Profile{FullName: "x"}, nil, time.Now())
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestChecksum(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	want := base64.StdEncoding.EncodeToString([]byte("abc1700000000000"))[:8]
	assert.Equal(t, want, Checksum("abc", at))
	assert.Len(t, Checksum("u", at), 8)
}

func TestMaskCPF(t *testing.T) {
	assert.Equal(t, "Não informado", MaskCPF(""))
	assert.Equal(t, "***.***.***-7", MaskCPF("7"))
}
