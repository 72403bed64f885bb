package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	// ErrTemplateMissing means the background template could not be loaded.
	// This is fatal for issuance.
	ErrTemplateMissing = errors.New("card background template missing")
	// ErrInvalidPhoto means the subject photo bytes could not be decoded.
	ErrInvalidPhoto = errors.New("invalid photo")
)

// Card layout constants, all in canvas pixels.
const (
	CardWidth  = 1064
	CardHeight = 1300

	photoWidth  = 570
	photoHeight = 570
	photoLeft  = 245
	photoTop   = 176

	sealWidth  = 150
	sealHeight = 150
	sealLeft   = 70
	sealTop    = 70

	// QR sits bottom-right.
	qrSize = 180
	qrLeft = CardWidth - qrSize - 80
	qrTop  = 1000

	textLeft = 100

	nameFontSize  = 70
	roleFontSize  = 42
	smallFontSize = 30
)

const (
	backgroundAsset = "kaprika-card-bg.png"
	sealAsset       = "kaprika-coa.png"
)

// pdfCreationDate is pinned so two renders of the same card produce the
// same document bytes.
var pdfCreationDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Identity is the card face content.
type Identity struct {
	FullName       string
	Alias          string // optional, rendered quoted under the name
	Role           string
	CardId         string
	IssueDate      string
	ExpirationDate string
}

// Renderer composes card artifacts from loaded template assets. Render has
// no side effects, callers persist the returned buffers.
type Renderer struct {
	background image.Image
	seal       image.Image // nil when the seal asset is absent
	baseURL    string

	nameFace  font.Face
	roleFace  font.Face
	smallFace font.Face
}

// VerificationURL is the address encoded in the card QR code.
func VerificationURL(baseURL, cardId string) string {
	return fmt.Sprintf("%s/verify/%s", baseURL, cardId)
}

// NewRenderer loads template assets from assetsDir. A missing background is
// fatal, a missing seal only drops that layer. fontPath overrides the
// built-in typeface when non-empty.
func NewRenderer(assetsDir, baseURL, fontPath string) (*Renderer, error) {
	background, err := imaging.Open(filepath.Join(assetsDir, backgroundAsset))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateMissing, err)
	}

	seal, err := imaging.Open(filepath.Join(assetsDir, sealAsset))
	if err != nil {
		seal = nil
	}

	nameFace, roleFace, smallFace, err := loadFaces(fontPath)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		background: background,
		seal:       seal,
		baseURL:    baseURL,
		nameFace:   nameFace,
		roleFace:   roleFace,
		smallFace:  smallFace,
	}, nil
}

func loadFaces(fontPath string) (name, role, small font.Face, err error) {
	nameTTF := gobold.TTF
	bodyTTF := goregular.TTF

	if fontPath != "" {
		raw, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not read font file: %w", err)
		}
		nameTTF = raw
		bodyTTF = raw
	}

	nameFont, err := truetype.Parse(nameTTF)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not parse font: %w", err)
	}
	bodyFont, err := truetype.Parse(bodyTTF)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not parse font: %w", err)
	}

	name = truetype.NewFace(nameFont, &truetype.Options{Size: nameFontSize})
	role = truetype.NewFace(bodyFont, &truetype.Options{Size: roleFontSize})
	small = truetype.NewFace(bodyFont, &truetype.Options{Size: smallFontSize})
	return name, role, small, nil
}

// Render composes the card raster and wraps it into a one page PDF.
func (r *Renderer) Render(identity Identity, photo []byte) (pngBytes, pdfBytes []byte, err error) {
	subject, err := imaging.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPhoto, err)
	}

	// Background stretched to the canvas, photo cover-cropped onto it.
	canvas := imaging.Resize(r.background, CardWidth, CardHeight, imaging.Lanczos)
	cropped := imaging.Fill(subject, photoWidth, photoHeight, imaging.Center, imaging.Lanczos)
	composed := imaging.Paste(canvas, cropped, image.Pt(photoLeft, photoTop))

	if r.seal != nil {
		seal := imaging.Resize(r.seal, sealWidth, sealHeight, imaging.Lanczos)
		composed = imaging.Paste(composed, seal, image.Pt(sealLeft, sealTop))
	}

	withText := r.drawText(composed, identity)

	qrImage, err := r.qrLayer(identity.CardId)
	if err != nil {
		return nil, nil, err
	}
	final := imaging.Paste(withText, qrImage, image.Pt(qrLeft, qrTop))

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, final); err != nil {
		return nil, nil, fmt.Errorf("could not encode card png: %w", err)
	}

	pdf, err := wrapInPdf(pngBuf.Bytes())
	if err != nil {
		return nil, nil, err
	}

	return pngBuf.Bytes(), pdf, nil
}

// drawText renders the identity block. Y positions shift down when an alias
// line is present so the lines do not overlap.
func (r *Renderer) drawText(canvas image.Image, identity Identity) image.Image {
	dc := gg.NewContextForImage(canvas)

	alias := strings.TrimSpace(identity.Alias)

	dc.SetFontFace(r.nameFace)
	dc.SetRGB255(0x11, 0x18, 0x27)
	dc.DrawString(identity.FullName, textLeft, 1050)

	dc.SetFontFace(r.roleFace)
	dc.SetRGB255(0x1f, 0x29, 0x37)

	roleY := 1100.0
	idY := 1150.0
	expiresY := 1190.0
	if alias != "" {
		dc.DrawString(fmt.Sprintf("%q", alias), textLeft, 1100)
		roleY = 1140
		idY = 1190
		expiresY = 1230
	}
	dc.DrawString(identity.Role, textLeft, roleY)

	dc.SetFontFace(r.smallFace)
	dc.SetRGB255(0x4b, 0x55, 0x63)
	dc.DrawString("ID: "+identity.CardId, textLeft, idY)
	dc.DrawString("EXPIRES: "+identity.ExpirationDate, textLeft, expiresY)

	return dc.Image()
}

func (r *Renderer) qrLayer(cardId string) (image.Image, error) {
	qr, err := qrcode.New(VerificationURL(r.baseURL, cardId), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("could not build verification qr: %w", err)
	}
	qr.DisableBorder = true
	return qr.Image(qrSize), nil
}

// wrapInPdf embeds the raster full bleed on a single page sized exactly to
// the canvas.
func wrapInPdf(pngBytes []byte) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: CardWidth, Ht: CardHeight},
	})
	pdf.SetCreationDate(pdfCreationDate)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("card", opts, bytes.NewReader(pngBytes))
	pdf.ImageOptions("card", 0, 0, CardWidth, CardHeight, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("could not build card pdf: %w", err)
	}
	return buf.Bytes(), nil
}
