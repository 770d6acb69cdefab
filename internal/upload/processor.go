// Package upload validates and normalizes diagnosis photos before they are
// stored and sent to the model.
package upload

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	// Register the decoders accepted from phone cameras.
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

const outputContentType = "image/jpeg"

// defaultMaxPixels bounds the decoded canvas when no limit is configured.
const defaultMaxPixels = 50_000_000

// Processor implements domain.ImageProcessor: content-sniffed image/* only,
// bounded size and pixel count, downscaled to fit MaxDimension and re-encoded as JPEG.
type Processor struct {
	maxFileSize  int64
	maxDimension int
	maxPixels    int64
	quality      int
}

// NewProcessor creates a processor from the upload configuration.
func NewProcessor(config domain.UploadConfig) *Processor {
	p := &Processor{
		maxFileSize:  config.MaxFileSize,
		maxDimension: config.MaxDimension,
		maxPixels:    config.MaxPixels,
		quality:      config.JPEGQuality,
	}
	if p.maxPixels <= 0 {
		p.maxPixels = defaultMaxPixels
	}
	if p.quality < 1 || p.quality > 100 {
		p.quality = jpeg.DefaultQuality
	}
	return p
}

// Process validates and re-encodes one upload.
func (p *Processor) Process(data []byte) (*domain.ProcessedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidImage)
	}
	if p.maxFileSize > 0 && int64(len(data)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", domain.ErrInvalidImage, len(data), p.maxFileSize)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w: content type %s is not an image", domain.ErrInvalidImage, mime.String())
	}

	// The header alone decides the decode allocation, so check it first.
	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s header: %v", domain.ErrInvalidImage, mime.String(), err)
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > p.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d image exceeds the %d pixel limit", domain.ErrInvalidImage, header.Width, header.Height, p.maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode %s: %v", domain.ErrInvalidImage, mime.String(), err)
	}

	img := p.fit(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s image as jpeg: %w", format, err)
	}

	bounds := img.Bounds()
	return &domain.ProcessedImage{
		Name:        uuid.New().String() + ".jpg",
		ContentType: outputContentType,
		Data:        buf.Bytes(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// fit scales src down to fit a maxDimension square, keeping the aspect
// ratio. Images already inside the bound are returned unchanged.
func (p *Processor) fit(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if p.maxDimension <= 0 || (w <= p.maxDimension && h <= p.maxDimension) {
		return src
	}

	scale := float64(p.maxDimension) / float64(w)
	if hs := float64(p.maxDimension) / float64(h); hs < scale {
		scale = hs
	}
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
