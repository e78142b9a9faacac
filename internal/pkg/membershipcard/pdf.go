package membershipcard

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Card dimensions in millimetres (ID-1, the size of a bank card).
const (
	cardWidth  = 85.6
	cardHeight = 53.98
	qrSize     = 30.0
)

// QRCode renders the card's QR payload as a PNG.
func QRCode(card *Card, pixels int) ([]byte, error) {
	if card == nil {
		return nil, ErrIncomplete
	}
	return qrcode.Encode(card.QRData, qrcode.Medium, pixels)
}

// QRDataURL is the QR code as an inline image source for the card page.
func QRDataURL(card *Card) (string, error) {
	png, err := QRCode(card, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// PDF renders the printable card: holder, masked CPF, plan, validity and QR code.
func PDF(card *Card) ([]byte, error) {
	if card == nil {
		return nil, ErrIncomplete
	}
	png, err := QRCode(card, 512)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: cardWidth, Ht: cardHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Carteirinha Amparo", true)
	pdf.AddPage()
	// Core fonts are cp1252; names carry accents.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFillColor(30, 64, 120)
	pdf.Rect(0, 0, cardWidth, 11, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(5, 2.5)
	pdf.CellFormat(cardWidth-10, 6, "AMPARO", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetXY(5, 2.5)
	pdf.CellFormat(cardWidth-10, 6, tr("Carteirinha digital"), "", 0, "R", false, 0, "")

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(5, 15)
	pdf.MultiCell(cardWidth-qrSize-12, 4.5, tr(card.FullName), "", "L", false)

	lines := []string{
		"CPF: " + card.MaskedCPF,
		"Plano: " + card.PlanName,
		"Válida até " + card.ValidUntil,
	}
	pdf.SetFont("Helvetica", "", 7.5)
	y := 28.0
	for _, line := range lines {
		pdf.SetXY(5, y)
		pdf.CellFormat(cardWidth-qrSize-12, 4, tr(line), "", 0, "L", false, 0, "")
		y += 5
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", cardWidth-qrSize-4, 15, qrSize, qrSize, false, opts, 0, "")

	pdf.SetFont("Helvetica", "", 5.5)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(cardWidth-qrSize-4, 46)
	pdf.CellFormat(qrSize, 3, card.Payload.Checksum, "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render card pdf: %w", err)
	}
	return buf.Bytes(), nil
}
