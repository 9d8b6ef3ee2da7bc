// Native PNG rendering for flow diagrams.
// Nodes keep their canvas positions; the drawing is scaled to fit.

package flowfile

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ha1tch/flowdesigner/pkg/canvas"
	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// PNGOptions configures PNG rendering.
type PNGOptions struct {
	Width    int
	Height   int
	Padding  int
	FontSize int
	Title    string
}

// DefaultPNGOptions returns sensible defaults for PNG rendering.
func DefaultPNGOptions() PNGOptions {
	return PNGOptions{
		Width:    1200,
		Height:   800,
		Padding:  40,
		FontSize: 12,
	}
}

// supersample is the factor the image is drawn at before downsampling.
const supersample = 4

var (
	colorWhite = color.RGBA{255, 255, 255, 255}
	colorBlack = color.RGBA{51, 51, 51, 255}    // #333
	colorGray  = color.RGBA{102, 102, 102, 255} // #666
	colorRed   = color.RGBA{198, 40, 40, 255}   // #c62828
)

// kindColors holds the fill and border colour of each node kind.
var kindColors = map[flow.Kind][2]color.RGBA{
	flow.KindStart:       {{232, 245, 233, 255}, {46, 125, 50, 255}},
	flow.KindEnd:         {{255, 235, 238, 255}, {198, 40, 40, 255}},
	flow.KindPage:        {{227, 242, 253, 255}, {21, 101, 192, 255}},
	flow.KindDecision:    {{255, 243, 224, 255}, {230, 81, 0, 255}},
	flow.KindCondition:   {{255, 248, 225, 255}, {249, 168, 37, 255}},
	flow.KindField:       {{243, 229, 245, 255}, {106, 27, 154, 255}},
	flow.KindValidation:  {{232, 234, 246, 255}, {40, 53, 147, 255}},
	flow.KindCalculation: {{224, 247, 250, 255}, {0, 131, 143, 255}},
	flow.KindAPICall:     {{241, 248, 233, 255}, {85, 139, 47, 255}},
	flow.KindDatabase:    {{236, 239, 241, 255}, {69, 90, 100, 255}},
}

// renderContext holds the target image and the canvas-to-pixel mapping.
type renderContext struct {
	img       *image.RGBA
	scale     float64 // pixels per canvas unit
	offset    geom.Point
	lineWidth float64
	arrow     float64
	face      font.Face
}

func newRenderContext(img *image.RGBA, fontSize int) (*renderContext, error) {
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    float64(fontSize * supersample),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	return &renderContext{
		img:       img,
		scale:     1,
		lineWidth: 2 * supersample,
		arrow:     8 * supersample,
		face:      face,
	}, nil
}

// px maps a canvas point to image pixels.
func (ctx *renderContext) px(p geom.Point) geom.Point {
	return p.Scale(ctx.scale).Add(ctx.offset)
}

// RenderPNG renders a flow to PNG format.
// Uses 4x supersampling for smoother output.
func RenderPNG(f *flow.ServiceFlow, w io.Writer, opts PNGOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return errors.New("image size must be positive")
	}
	if opts.FontSize <= 0 {
		opts.FontSize = DefaultPNGOptions().FontSize
	}

	large, err := renderImage(f, opts)
	if err != nil {
		return err
	}

	final := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.CatmullRom.Scale(final, final.Bounds(), large, large.Bounds(), draw.Over, nil)
	return png.Encode(w, final)
}

func renderImage(f *flow.ServiceFlow, opts PNGOptions) (*image.RGBA, error) {
	width, height := opts.Width*supersample, opts.Height*supersample
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorWhite), image.Point{}, draw.Src)

	ctx, err := newRenderContext(img, opts.FontSize)
	if err != nil {
		return nil, err
	}

	pad := float64(opts.Padding * supersample)
	top := pad
	if opts.Title != "" {
		drawTextCentered(ctx, width/2, int(pad/2)+ctx.face.Metrics().Ascent.Ceil()/2, opts.Title, colorBlack)
		top += 35 * supersample
	}

	bounds, ok := f.Bounds()
	if !ok {
		return img, nil
	}
	availW := float64(width) - 2*pad
	availH := float64(height) - top - pad
	fit := math.Min(availW/bounds.Width(), availH/bounds.Height())
	fit = math.Min(fit, 1.5*supersample)
	ctx.scale = fit
	ctx.offset = geom.Pt(
		pad+(availW-bounds.Width()*fit)/2-bounds.Min.X*fit,
		top+(availH-bounds.Height()*fit)/2-bounds.Min.Y*fit,
	)

	for _, c := range f.Connections {
		drawConnection(ctx, f, c)
	}
	for _, n := range f.Nodes {
		drawNode(ctx, n)
	}
	return img, nil
}

func drawNode(ctx *renderContext, n flow.Node) {
	colors, ok := kindColors[n.Kind]
	if !ok {
		colors = [2]color.RGBA{colorWhite, colorGray}
	}
	r := n.Rect()
	lo, hi := ctx.px(r.Min), ctx.px(r.Max)
	rect := image.Rect(int(lo.X), int(lo.Y), int(hi.X), int(hi.Y))

	draw.Draw(ctx.img, rect, image.NewUniform(colors[0]), image.Point{}, draw.Src)
	drawLine(ctx, lo.X, lo.Y, hi.X, lo.Y, colors[1])
	drawLine(ctx, hi.X, lo.Y, hi.X, hi.Y, colors[1])
	drawLine(ctx, hi.X, hi.Y, lo.X, hi.Y, colors[1])
	drawLine(ctx, lo.X, hi.Y, lo.X, lo.Y, colors[1])

	c := ctx.px(n.Center())
	drawTextCentered(ctx, int(c.X), int(c.Y), fitLabel(ctx, n.Label, hi.X-lo.X), colorBlack)

	for _, p := range flow.PointsFor(n) {
		q := ctx.px(p.Position)
		fillCircle(ctx, q.X, q.Y, 3*float64(supersample), colors[1])
	}
}

func drawConnection(ctx *renderContext, f *flow.ServiceFlow, c flow.Connection) {
	path, ok := canvas.EdgePath(f, c)
	if !ok {
		return
	}
	col := colorGray
	if c.Condition == "false" || c.Condition == "invalid" {
		col = colorRed
	}

	pts := path.Points(32)
	for i := 1; i < len(pts)-1; i++ {
		a, b := ctx.px(pts[i-1]), ctx.px(pts[i])
		drawLine(ctx, a.X, a.Y, b.X, b.Y, col)
	}
	a, b := ctx.px(pts[len(pts)-2]), ctx.px(pts[len(pts)-1])
	drawArrowLine(ctx, a.X, a.Y, b.X, b.Y, col)

	if c.Label != "" {
		m := ctx.px(path.Midpoint())
		drawTextCentered(ctx, int(m.X), int(m.Y), c.Label, colorBlack)
	}
}

// fitLabel truncates text to fit within width pixels.
func fitLabel(ctx *renderContext, text string, width float64) string {
	limit := fixed.I(int(width * 0.9))
	if font.MeasureString(ctx.face, text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		s := string(runes) + "…"
		if font.MeasureString(ctx.face, s) <= limit {
			return s
		}
	}
	return ""
}

// drawLine draws a thick line.
func drawLine(ctx *renderContext, x1, y1, x2, y2 float64, c color.Color) {
	img := ctx.img
	halfThick := ctx.lineWidth / 2

	dx := x2 - x1
	dy := y2 - y1
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist < 1 {
		fillCircle(ctx, x1, y1, halfThick, c)
		return
	}

	perpX := -dy / dist
	perpY := dx / dist
	steps := math.Max(math.Abs(dx), math.Abs(dy))

	for i := 0.0; i <= steps; i++ {
		t := i / steps
		cx := x1 + dx*t
		cy := y1 + dy*t
		for offset := -halfThick; offset <= halfThick; offset += 0.5 {
			img.Set(int(cx+perpX*offset), int(cy+perpY*offset), c)
		}
	}
}

// drawArrowLine draws a line with a filled arrowhead at the end.
func drawArrowLine(ctx *renderContext, x1, y1, x2, y2 float64, c color.Color) {
	drawLine(ctx, x1, y1, x2, y2, c)

	dx := x2 - x1
	dy := y2 - y1
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist < 0.001 {
		return
	}
	nx := dx / dist
	ny := dy / dist

	wing := ctx.arrow / 2
	ax1 := x2 - nx*ctx.arrow + ny*wing
	ay1 := y2 - ny*ctx.arrow - nx*wing
	ax2 := x2 - nx*ctx.arrow - ny*wing
	ay2 := y2 - ny*ctx.arrow + nx*wing

	for t := 0.0; t <= 1.0; t += 0.05 {
		drawLine(ctx, x2, y2, ax1+(ax2-ax1)*t, ay1+(ay2-ay1)*t, c)
	}
}

func fillCircle(ctx *renderContext, cx, cy, r float64, c color.Color) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				ctx.img.Set(int(cx+x), int(cy+y), c)
			}
		}
	}
}

// drawTextCentered draws text centred on (x, y).
func drawTextCentered(ctx *renderContext, x, y int, text string, c color.Color) {
	if text == "" {
		return
	}
	width := font.MeasureString(ctx.face, text).Ceil()
	ascent := ctx.face.Metrics().Ascent.Ceil()

	d := &font.Drawer{
		Dst:  ctx.img,
		Src:  image.NewUniform(c),
		Face: ctx.face,
		Dot: fixed.Point26_6{
			X: fixed.I(x - width/2),
			Y: fixed.I(y + int(float64(ascent)*0.35)),
		},
	}
	d.DrawString(text)
}
