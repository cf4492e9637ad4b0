package pdf

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"eventpilot/internal/models"

	"github.com/signintech/gopdf"
)

const (
	pageWidth  = 400.0
	pageHeight = 540.0
	qrSize     = 180.0
	fontName   = "main"
)

type SponsorLine struct {
	Name string
	Type string
}

type GuestLine struct {
	Name     string
	JobTitle string
	Company  string
}

// CardInfo is everything printed on a registration's check-in card.
type CardInfo struct {
	SessionTitle string
	SessionDate  string
	AttendeeName string
	Location     string
	LocationURL  string
	Sponsors     []SponsorLine
	Guests       []GuestLine
}

type RegistrationCardGenerator struct {
	fontPath string
}

func NewRegistrationCardGenerator(fontPath string) *RegistrationCardGenerator {
	return &RegistrationCardGenerator{fontPath: fontPath}
}

func (g *RegistrationCardGenerator) Generate(info CardInfo, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: pageWidth, H: pageHeight}})
	pdf.AddPage()

	if err := pdf.AddTTFFont(fontName, g.fontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	addBorder(pdf)

	if err := pdf.SetFont(fontName, "", 18); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	centered(pdf, 40, info.SessionTitle)

	pdf.SetFont(fontName, "", 12)
	centered(pdf, 68, info.SessionDate)
	if info.AttendeeName != "" {
		centered(pdf, 88, info.AttendeeName)
	}

	if len(qrCode) > 0 {
		if err := addQRCode(pdf, qrCode, 115); err != nil {
			return nil, err
		}
	}

	y := 115 + qrSize + 20
	if info.LocationURL != "" {
		label := "الموقع"
		if info.Location != "" {
			label = info.Location
		}
		pdf.SetFont(fontName, "", 11)
		w := centered(pdf, y, label)
		pdf.AddExternalLink(info.LocationURL, (pageWidth-w)/2, y, w, 14)
		y += 22
	}

	if len(info.Guests) > 0 {
		pdf.SetFont(fontName, "", 10)
		for _, guest := range info.Guests {
			centered(pdf, y, guestLine(guest))
			y += 14
		}
		y += 6
	}

	if len(info.Sponsors) > 0 {
		pdf.SetFont(fontName, "", 10)
		for _, s := range info.Sponsors {
			label := s.Name
			if typeLabel, ok := models.SponsorshipLabels[s.Type]; ok {
				label = typeLabel + ": " + s.Name
			}
			centered(pdf, y, label)
			y += 14
			if y > pageHeight-40 {
				break
			}
		}
	}

	pdf.SetFont(fontName, "", 9)
	centered(pdf, pageHeight-28, "EventPilot")

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func guestLine(g GuestLine) string {
	parts := []string{g.Name}
	if g.JobTitle != "" {
		parts = append(parts, g.JobTitle)
	}
	if g.Company != "" {
		parts = append(parts, g.Company)
	}
	return strings.Join(parts, " - ")
}

// centered writes one line horizontally centered at y and returns its width.
func centered(pdf *gopdf.GoPdf, y float64, text string) float64 {
	if text == "" {
		return 0
	}
	w, err := pdf.MeasureTextWidth(text)
	if err != nil {
		w = 0
	}
	pdf.SetXY((pageWidth-w)/2, y)
	pdf.Cell(nil, text)
	return w
}

func addBorder(pdf *gopdf.GoPdf) {
	pdf.SetLineWidth(3)
	pdf.SetStrokeColor(27, 94, 32)
	pdf.RectFromUpperLeftWithStyle(8, 8, pageWidth-16, pageHeight-16, "D")
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte, y float64) error {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		return fmt.Errorf("failed to decode QR image: %w", err)
	}
	rect := &gopdf.Rect{W: qrSize, H: qrSize}
	if err := pdf.ImageFrom(img, (pageWidth-qrSize)/2, y, rect); err != nil {
		return fmt.Errorf("failed to draw QR code: %w", err)
	}
	return nil
}

// ContentDisposition builds the header value with an ASCII fallback name and
// the UTF-8 name for clients that support RFC 5987.
func ContentDisposition(download bool, asciiName, utf8Name string) string {
	kind := "inline"
	if download {
		kind = "attachment"
	}
	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`, kind, asciiName, encodeRFC5987(utf8Name))
}

func encodeRFC5987(s string) string {
	const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.!~*'()"
	var sb strings.Builder
	for _, b := range []byte(s) {
		if strings.IndexByte(unreserved, b) >= 0 {
			sb.WriteByte(b)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", b)
	}
	return sb.String()
}
