package migrate

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PreviewRenderer renders a before-you-commit picture of a merge: the
// target's markers, the transformed source markers, and a link between every
// matched duplicate pair. Output is a PNG for eyeballing; it is batch output,
// not an interactive canvas.
type PreviewRenderer struct {
	Target *Export
	Source *Export // already transform-applied

	// Matches maps source marker ids to the target marker ids they were
	// classified as duplicates of (MergeResult.MarkerIDMap entries whose
	// value is an existing target id).
	Matches map[string]string

	Padding      float64 // padding around the markers, in pixels
	MarkerRadius float64
	Labels       bool // draw marker labels with a bitmap font
}

// NewPreviewRenderer creates a renderer with default settings.
func NewPreviewRenderer(target, source *Export, matches map[string]string) *PreviewRenderer {
	return &PreviewRenderer{
		Target:       target,
		Source:       source,
		Matches:      matches,
		Padding:      40,
		MarkerRadius: 5,
		Labels:       true,
	}
}

var (
	targetColor = color.RGBA{R: 65, G: 105, B: 225, A: 255}  // royal blue
	sourceColor = color.RGBA{R: 220, G: 60, B: 50, A: 255}   // brick red
	linkColor   = color.RGBA{R: 130, G: 130, B: 130, A: 255} // gray
	labelColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// RenderToPNG writes the preview to the provided writer.
func (r *PreviewRenderer) RenderToPNG(w io.Writer) error {
	minX, minY, maxX, maxY := r.bounds()

	width := (maxX - minX) + 2*r.Padding
	height := (maxY - minY) + 2*r.Padding

	// 1 canvas unit per pixel keeps label placement trivial.
	rast := rasterizer.New(width, height, canvas.DPMM(1.0), canvas.DefaultColorSpace)

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	rast.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// Map image coordinates (y down) to canvas coordinates (y up).
	toCanvas := func(p Point) (float64, float64) {
		return p.X - minX + r.Padding, height - (p.Y - minY + r.Padding)
	}

	// Duplicate links go underneath the markers.
	linkStyle := canvas.DefaultStyle
	linkStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	linkStyle.Stroke = canvas.Paint{Color: linkColor}
	linkStyle.StrokeWidth = 1.0

	targetByID := make(map[string]Marker, len(r.Target.Markers))
	for _, m := range r.Target.Markers {
		targetByID[m.ID] = m
	}
	for _, sm := range r.Source.Markers {
		tid, ok := r.Matches[sm.ID]
		if !ok {
			continue
		}
		tm, ok := targetByID[tid]
		if !ok {
			continue
		}
		x0, y0 := toCanvas(sm.Position())
		x1, y1 := toCanvas(tm.Position())
		link := &canvas.Path{}
		link.MoveTo(x0, y0)
		link.LineTo(x1, y1)
		rast.RenderPath(link, linkStyle, canvas.Identity)
	}

	r.renderMarkers(rast, r.Target.Markers, targetColor, toCanvas)
	r.renderMarkers(rast, r.Source.Markers, sourceColor, toCanvas)

	if r.Labels {
		// The rasterizer is a draw.Image, so bitmap labels can go straight
		// on top of the rendered paths.
		drawer := &font.Drawer{
			Dst:  rast,
			Src:  image.NewUniform(labelColor),
			Face: basicfont.Face7x13,
		}
		for _, m := range r.Target.Markers {
			r.drawLabel(drawer, m, minX, minY)
		}
		for _, m := range r.Source.Markers {
			r.drawLabel(drawer, m, minX, minY)
		}
	}

	return png.Encode(w, rast)
}

func (r *PreviewRenderer) renderMarkers(rast *rasterizer.Rasterizer, markers []Marker, fill color.RGBA, toCanvas func(Point) (float64, float64)) {
	style := canvas.DefaultStyle
	style.Fill = canvas.Paint{Color: fill}
	style.Stroke = canvas.Paint{Color: canvas.Black}
	style.StrokeWidth = 0.75

	for _, m := range markers {
		x, y := toCanvas(m.Position())
		rast.RenderPath(canvas.Circle(r.MarkerRadius).Translate(x, y), style, canvas.Identity)
	}
}

func (r *PreviewRenderer) drawLabel(drawer *font.Drawer, m Marker, minX, minY float64) {
	if m.Label == "" {
		return
	}
	px := int(m.X - minX + r.Padding + r.MarkerRadius + 3)
	py := int(m.Y - minY + r.Padding + 4)
	drawer.Dot = fixed.P(px, py)
	drawer.DrawString(m.Label)
}

// bounds returns the bounding box of all markers from both exports, falling
// back to a small fixed box when there are none.
func (r *PreviewRenderer) bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64

	extend := func(markers []Marker) {
		for _, m := range markers {
			minX = math.Min(minX, m.X)
			minY = math.Min(minY, m.Y)
			maxX = math.Max(maxX, m.X)
			maxY = math.Max(maxY, m.Y)
		}
	}
	extend(r.Target.Markers)
	extend(r.Source.Markers)

	if minX > maxX {
		return 0, 0, 100, 100
	}
	return minX, minY, maxX, maxY
}
