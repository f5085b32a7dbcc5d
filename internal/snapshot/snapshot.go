// Package snapshot annotates clean event snapshots with the recognized plate
// and writes them to disk.
package snapshot

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

const (
	// TimestampLayout is the time part of saved file names.
	TimestampLayout = "2006-01-02_15-04"

	boxStroke  = 2
	textOffset = 5
)

var (
	boxColor  = color.RGBA{R: 255, A: 255}
	textColor = color.White
)

// Saver writes annotated snapshots into a directory.
type Saver struct {
	dir string
	now func() time.Time
}

// NewSaver returns a saver for dir. The directory is created on demand.
func NewSaver(dir string) *Saver {
	return &Saver{dir: dir, now: time.Now}
}

// Dir returns the target directory.
func (s *Saver) Dir() string { return s.dir }

// EnsureDir creates the snapshot directory.
func (s *Saver) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.New(err).
			Component("snapshot").
			Category(errors.CategoryFileIO).
			Context("operation", "create_dir").
			Context("path", s.dir).
			Build()
	}
	return nil
}

// Save annotates pngData and writes it, returning the file path. box is the
// normalised [x, y, w, h] plate box and may be nil; plate may be empty.
func (s *Saver) Save(pngData []byte, camera, plate string, box []float64) (string, error) {
	annotated, err := Annotate(pngData, box, plate)
	if err != nil {
		return "", err
	}
	if err := s.EnsureDir(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, FileName(plate, camera, s.now()))
	if err := os.WriteFile(path, annotated, 0o644); err != nil {
		return "", errors.New(err).
			Component("snapshot").
			Category(errors.CategoryFileIO).
			Context("operation", "write_snapshot").
			Context("path", path).
			Build()
	}

	GetLogger().Info("saved snapshot", logger.String("path", path))
	return path, nil
}

// FileName is {PLATE}_{camera}_{timestamp}.png, without the plate part when
// plate is empty.
func FileName(plate, camera string, t time.Time) string {
	name := sanitize(camera) + "_" + t.Format(TimestampLayout) + ".png"
	if plate != "" {
		name = sanitize(strings.ToUpper(plate)) + "_" + name
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Annotate draws the plate box and the upper-cased text below it. Without a
// valid box the image is re-encoded unchanged.
func Annotate(pngData []byte, box []float64, text string) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, renderError(err, "decode")
	}

	bounds := src.Bounds()
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, src, bounds.Min, draw.Src)

	if rect, ok := plateRect(bounds, box); ok {
		drawBox(img, rect)
		if text != "" {
			drawText(img, rect.Min.X+textOffset, rect.Max.Y+textOffset, strings.ToUpper(text))
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, renderError(err, "encode")
	}
	return out.Bytes(), nil
}

// plateRect scales a normalised box onto bounds.
func plateRect(bounds image.Rectangle, box []float64) (image.Rectangle, bool) {
	if len(box) < 4 {
		return image.Rectangle{}, false
	}
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	r := image.Rect(
		bounds.Min.X+int(box[0]*w),
		bounds.Min.Y+int(box[1]*h),
		bounds.Min.X+int((box[0]+box[2])*w),
		bounds.Min.Y+int((box[1]+box[3])*h),
	)
	return r, !r.Empty()
}

func drawBox(img draw.Image, r image.Rectangle) {
	fill := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxStroke),
		image.Rect(r.Min.X, r.Max.Y-boxStroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxStroke, r.Max.Y),
		image.Rect(r.Max.X-boxStroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, fill, image.Point{}, draw.Src)
	}
}

// drawText places text with its top-left corner at (x, y).
func drawText(img draw.Image, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}

func renderError(err error, operation string) error {
	return errors.New(err).
		Component("snapshot").
		Category(errors.CategoryImageRender).
		Context("operation", operation).
		Build()
}

// GetLogger returns the snapshot module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("snapshot")
}
