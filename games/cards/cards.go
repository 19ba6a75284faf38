/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package cards draws the face of a memory card as a square PNG tile.
package cards

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultSize   = 120
	DefaultPoints = 48
	borderWidth   = 2
)

var ErrUnknownFace = errors.New("unknown card face")

var (
	borderColor = color.RGBA{0x2c, 0x3e, 0x50, 0xff}
	textColor   = color.RGBA{0x2c, 0x3e, 0x50, 0xff}
	hiddenColor = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
)

// Palette holds the tile color for each card value.
var Palette = [...]color.RGBA{
	{0xff, 0xb3, 0xba, 0xff}, // pink
	{0xba, 0xff, 0xc9, 0xff}, // green
	{0xba, 0xe1, 0xff, 0xff}, // blue
	{0xff, 0xff, 0xba, 0xff}, // yellow
	{0xff, 0xb3, 0xff, 0xff}, // purple
	{0xff, 0xd4, 0xb3, 0xff}, // orange
	{0xb3, 0xff, 0xe6, 0xff}, // turquoise
	{0xe6, 0xb3, 0xff, 0xff}, // lavender
}

// Face is a card value in [0, len(Palette)), or Hidden for a face-down card.
type Face int

const Hidden Face = -1

func (f Face) valid() bool {
	return f == Hidden || (f >= 0 && int(f) < len(Palette))
}

// Label is the text printed on the tile. Values are shown one-based.
func (f Face) Label() string {
	if f == Hidden {
		return "?"
	}

	return strconv.Itoa(int(f) + 1)
}

func (f Face) Color() color.RGBA {
	if f == Hidden || !f.valid() {
		return hiddenColor
	}

	return Palette[f]
}

// Name is the route name of the face, as accepted by ParseFace.
func (f Face) Name() string {
	if f == Hidden {
		return "hidden"
	}

	return f.Label()
}

// ParseFace accepts "hidden" or a one-based value, with or without a
// trailing ".png".
func ParseFace(name string) (Face, error) {
	name = strings.TrimSuffix(strings.ToLower(name), ".png")

	if name == "hidden" {
		return Hidden, nil
	}

	n, err := strconv.Atoi(name)
	if err != nil || n < 1 || n > len(Palette) {
		return Hidden, fmt.Errorf("%w: %q", ErrUnknownFace, name)
	}

	return Face(n - 1), nil
}

type Options struct {
	// FontPath is a TrueType or OpenType font to prefer over the bundled one.
	FontPath string
	Size     int
	Points   float64
}

// Renderer draws and caches card tiles. It is safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	face    font.Face
	size    int
	fontErr error
	cache   map[Face][]byte
}

// NewRenderer never fails. When the preferred font cannot be loaded it
// falls back to Go Regular, and then to a fixed bitmap face; the reason is
// available from FontErr.
func NewRenderer(opts Options) *Renderer {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Points <= 0 {
		opts.Points = DefaultPoints
	}

	r := &Renderer{
		size:  opts.Size,
		cache: make(map[Face][]byte),
	}

	if opts.FontPath != "" {
		face, err := loadFace(opts.FontPath, opts.Points)
		if err == nil {
			r.face = face
			return r
		}
		r.fontErr = err
	}

	face, err := parseFace(goregular.TTF, opts.Points)
	if err != nil {
		r.fontErr = errors.Join(r.fontErr, err)
		r.face = basicfont.Face7x13
		return r
	}
	r.face = face

	return r
}

func loadFace(path string, points float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	face, err := parseFace(data, points)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return face, nil
}

func parseFace(data []byte, points float64) (font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    points,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// FontErr reports why the preferred font was not used, if it was not.
func (r *Renderer) FontErr() error {
	return r.fontErr
}

func (r *Renderer) Size() int {
	return r.size
}

// Render draws a tile for f. Unknown faces are drawn as hidden.
func (r *Renderer) Render(f Face) *image.RGBA {
	if !f.valid() {
		f = Hidden
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.renderLocked(f)
}

func (r *Renderer) renderLocked(f Face) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.size, r.size))

	draw.Draw(img, img.Bounds(), image.NewUniform(f.Color()), image.Point{}, draw.Src)

	border := image.NewUniform(borderColor)
	s, b := r.size, borderWidth
	for _, edge := range []image.Rectangle{
		image.Rect(0, 0, s, b),
		image.Rect(0, s-b, s, s),
		image.Rect(0, 0, b, s),
		image.Rect(s-b, 0, s, s),
	} {
		draw.Draw(img, edge, border, image.Point{}, draw.Src)
	}

	label := f.Label()
	bounds, _ := font.BoundString(r.face, label)
	w := (bounds.Max.X - bounds.Min.X).Ceil()
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: r.face,
		Dot: fixed.P(
			(s-w)/2-bounds.Min.X.Floor(),
			(s-h)/2-bounds.Min.Y.Floor(),
		),
	}
	d.DrawString(label)

	return img
}

// PNG returns the encoded tile for f, rendering it on first use.
func (r *Renderer) PNG(f Face) ([]byte, error) {
	if !f.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFace, int(f))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[f]; ok {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, r.renderLocked(f)); err != nil {
		return nil, err
	}

	r.cache[f] = buf.Bytes()

	return r.cache[f], nil
}
