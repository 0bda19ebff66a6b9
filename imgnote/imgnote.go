// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package imgnote implements the image-compositing collaborator: it fetches a
// background image and draws the resolved report of every portal index onto
// its row, producing the annotated image broadcast to trusted reporters.
package imgnote

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "image/gif"  // Register decoder.
	_ "image/jpeg" // Register decoder.

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/z"
	"github.com/ingressfs/passbot/passcode"
)

// Row geometry of the standard background image.
const (
	defaultXOffset   = 640
	defaultYOffset   = 145
	defaultRowHeight = 300

	maxNameLen = 10
	cutNameLen = 8
)

var annotationColor = color.RGBA{R: 255, A: 255}

// Option configures the annotator.
type Option func(*Annotator)

// WithHTTPClient overrides the HTTP client used to fetch the background image.
func WithHTTPClient(httpCl *http.Client) Option {
	return func(a *Annotator) {
		a.httpCl = httpCl
	}
}

// WithDumpDir enables writing a timestamped local copy of every rendered
// image to the provided directory.
func WithDumpDir(dir string) Option {
	return func(a *Annotator) {
		a.dumpDir = dir
	}
}

// WithGeometry overrides the row geometry.
func WithGeometry(xOffset, yOffset, rowHeight int) Option {
	return func(a *Annotator) {
		a.xOffset = xOffset
		a.yOffset = yOffset
		a.rowHeight = rowHeight
	}
}

// Annotator renders annotated passcode images.
type Annotator struct {
	httpCl    *http.Client
	dumpDir   string
	xOffset   int
	yOffset   int
	rowHeight int
}

// New returns a new annotator.
func New(opts ...Option) *Annotator {
	a := &Annotator{
		httpCl:    &http.Client{Timeout: time.Second * 30},
		xOffset:   defaultXOffset,
		yOffset:   defaultYOffset,
		rowHeight: defaultRowHeight,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Render fetches the background image from baseURL, draws every report onto
// the row of its index and returns the result encoded as PNG.
func (a *Annotator) Render(ctx context.Context, baseURL string, reports []passcode.IndexedReport) ([]byte, error) {
	base, err := a.fetch(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(base.Bounds())
	xdraw.Draw(canvas, canvas.Bounds(), base, base.Bounds().Min, xdraw.Src)

	textHeight := a.rowHeight * 3 / 5
	for _, r := range reports {
		text := fmt.Sprintf("%s : %s", truncateName(r.Label), r.Symbol)
		y := a.yOffset + a.rowHeight*(r.Index-1) + a.rowHeight/5
		drawText(canvas, text, a.xOffset, y, textHeight)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}

	if a.dumpDir != "" {
		a.dump(buf.Bytes())
	}

	return buf.Bytes(), nil
}

// fetch downloads and decodes the background image.
func (a *Annotator) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request", z.Str("url", url))
	}

	resp, err := a.httpCl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch image", z.Str("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected image response status",
			z.Str("url", url), z.Int("status", resp.StatusCode))
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "decode image", z.Str("url", url))
	}

	return img, nil
}

// dump best-effort writes a timestamped local copy.
func (a *Annotator) dump(b []byte) {
	name := "passcode-" + time.Now().Format("20060102-150405") + ".png"
	_ = os.WriteFile(filepath.Join(a.dumpDir, name), b, 0o644)
}

// drawText draws the text in red at (x, y) scaled to the provided pixel
// height. The text is first rendered with the built-in bitmap face and then
// scaled up, which keeps the package free of external font files.
func drawText(dst *image.RGBA, text string, x, y, height int) {
	face := basicfont.Face7x13

	width := font.MeasureString(face, text).Ceil()
	if width == 0 {
		return
	}

	small := image.NewRGBA(image.Rect(0, 0, width, face.Height))
	drawer := font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(annotationColor),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(text)

	scale := float64(height) / float64(face.Height)
	target := image.Rect(x, y, x+int(float64(width)*scale), y+height)
	xdraw.NearestNeighbor.Scale(dst, target, small, small.Bounds(), xdraw.Over, nil)
}

// truncateName shortens names that do not fit their image row.
func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameLen {
		return name
	}

	return string(runes[:cutNameLen]) + "..."
}
