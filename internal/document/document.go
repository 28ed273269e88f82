// Package document renders the fixed-layout certificate PDF and computes
// its integrity stamp.
package document

import (
	"bytes"
	"fmt"
	"image/color"
	"net/url"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize zap logger: %v", err))
	}
	logger = l.With(zap.String("package", "document"))
}

// Palette used across the page. Values mirror the site's print styling.
var (
	colorInk        = rgb{26, 39, 68}    // dark navy
	colorAccent     = rgb{201, 168, 76}  // gold
	colorBackground = rgb{250, 248, 243} // warm off-white
	colorBody       = rgb{51, 51, 51}
	colorMuted      = rgb{89, 89, 89}
	colorFaint      = rgb{128, 128, 128}
)

type rgb struct{ r, g, b int }

const (
	pageMargin = 30.0
	qrSize     = 90.0
)

// Data carries the fields rendered on a certificate document.
type Data struct {
	CompanyName   string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	PublicCode    string
	ValidationURL string // Absolute URL encoded in the QR pointer
}

// Renderer produces certificate PDFs. The layout is fixed-form; only the
// data fields vary.
type Renderer struct {
	OrganizationName string
	ProgramName      string
}

// NewRenderer creates a renderer stamping documents with the given
// organization and program names.
func NewRenderer(organizationName, programName string) *Renderer {
	return &Renderer{OrganizationName: organizationName, ProgramName: programName}
}

// Render produces a single-page A4 landscape PDF. A QR generation failure
// is non-fatal: the document is still produced without the image, since the
// printed code remains the fallback verification path.
func (r *Renderer) Render(data Data) ([]byte, error) {
	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	// Background
	setFill(pdf, colorBackground)
	pdf.Rect(0, 0, pageW, pageH, "F")

	// Outer and inner borders
	setDraw(pdf, colorInk)
	pdf.SetLineWidth(3)
	pdf.Rect(pageMargin, pageMargin, pageW-2*pageMargin, pageH-2*pageMargin, "D")
	setDraw(pdf, colorAccent)
	pdf.SetLineWidth(1)
	pdf.Rect(pageMargin+8, pageMargin+8, pageW-2*(pageMargin+8), pageH-2*(pageMargin+8), "D")

	// Title block
	pdf.SetFont("Helvetica", "B", 24)
	setText(pdf, colorInk)
	drawCentered(pdf, pageW, 100, "CERTIFICADO DE CUMPLIMIENTO")

	pdf.SetFont("Times", "I", 18)
	setText(pdf, colorAccent)
	drawCentered(pdf, pageW, 130, r.ProgramName)

	setDraw(pdf, colorAccent)
	pdf.SetLineWidth(1.5)
	pdf.Line(pageW/2-120, 145, pageW/2+120, 145)

	pdf.SetFont("Helvetica", "", 12)
	setText(pdf, colorMuted)
	drawCentered(pdf, pageW, 170, r.OrganizationName)

	pdf.SetFont("Helvetica", "", 13)
	setText(pdf, colorBody)
	drawCentered(pdf, pageW, 210, "certifica que la empresa")

	// Company name with underline
	company := strings.ToUpper(data.CompanyName)
	pdf.SetFont("Times", "B", 22)
	setText(pdf, colorInk)
	companyW := pdf.GetStringWidth(company)
	drawCentered(pdf, pageW, 248, company)
	lineHalf := companyW/2 + 30
	if lineHalf > 200 {
		lineHalf = 200
	}
	setDraw(pdf, colorAccent)
	pdf.SetLineWidth(0.5)
	pdf.Line(pageW/2-lineHalf, 255, pageW/2+lineHalf, 255)

	pdf.SetFont("Helvetica", "", 13)
	setText(pdf, colorBody)
	drawCentered(pdf, pageW, 290, "ha cumplido satisfactoriamente con el "+r.ProgramName+".")

	pdf.SetFont("Helvetica", "", 11)
	setText(pdf, colorMuted)
	drawCentered(pdf, pageW, 320, fmt.Sprintf("Vigencia: %s — %s", formatDate(data.IssuedAt), formatDate(data.ExpiresAt)))

	pdf.SetFont("Helvetica", "B", 11)
	setText(pdf, colorInk)
	drawCentered(pdf, pageW, 345, "Código verificador: "+data.PublicCode)

	// Scannable pointer back to the validation endpoint
	if png, err := qrPNG(data.ValidationURL); err != nil {
		logger.Warn("QR generation failed, rendering without barcode", zap.Error(err), zap.String("public_code", data.PublicCode))
	} else {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("validation-qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("validation-qr", (pageW-qrSize)/2, pageH-pageMargin-55-qrSize, qrSize, qrSize, false, opts, 0, "")
	}

	pdf.SetFont("Helvetica", "", 8)
	setText(pdf, colorFaint)
	drawCentered(pdf, pageW, pageH-pageMargin-42, "Validar en: "+validationHint(data.ValidationURL))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("document: failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// qrPNG encodes the validation URL as a PNG barcode in the document palette.
func qrPNG(validationURL string) ([]byte, error) {
	q, err := qrcode.New(validationURL, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	q.ForegroundColor = color.RGBA{R: uint8(colorInk.r), G: uint8(colorInk.g), B: uint8(colorInk.b), A: 255}
	q.BackgroundColor = color.RGBA{R: uint8(colorBackground.r), G: uint8(colorBackground.g), B: uint8(colorBackground.b), A: 255}
	return q.PNG(256)
}

// validationHint shortens the validation URL to "host/validar" for the
// footer line.
func validationHint(validationURL string) string {
	u, err := url.Parse(validationURL)
	if err != nil || u.Host == "" {
		return validationURL
	}
	return u.Host + "/validar"
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// formatDate renders a date the way the certificate prints it,
// e.g. "07 de marzo de 2026".
func formatDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}

func drawCentered(pdf *fpdf.Fpdf, pageW, y float64, text string) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	s := tr(text)
	pdf.Text((pageW-pdf.GetStringWidth(s))/2, y, s)
}

func setFill(pdf *fpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setDraw(pdf *fpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }
func setText(pdf *fpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
