package gazecapture

import (
	"image"
	"image/color"
	"math/rand"

	"gocv.io/x/gocv"
)

// TargetGlyph is the character drawn inside the fixation disc. The subject
// confirms fixation by reading it, so it must stay legible at small scales.
const TargetGlyph = "E"

const (
	glyphFont      = gocv.FontHersheySimplex
	glyphScale     = 0.5
	glyphThickness = 2

	// discRadiusGlyphWidths sizes the disc relative to the glyph so the
	// target shrinks around a readable center
	discRadiusGlyphWidths = 5
)

// Colors are authored as RGB; gocv converts color.RGBA to OpenCV's BGR
// scalar order internally, so these display as written.
var (
	discGray    = color.RGBA{R: 32, G: 32, B: 32}   // fixation disc
	glyphBlue   = color.RGBA{R: 17, G: 112, B: 170} // animating, keep watching
	glyphOrange = color.RGBA{R: 252, G: 125, B: 11} // go cue, press now
)

// StopRule decides, per frame, whether the animation ends at the current
// shrink factor. The rule is injected so tests can force termination on a
// chosen frame.
type StopRule func(shrink float64) bool

// UniformStopRule returns the production stop rule: every frame draws a
// fresh threshold t ~ Uniform(0.1, 0.5) and the animation ends once
// shrink < t. Re-rolling per frame makes the animation length
// non-deterministic, so the subject cannot anticipate the go cue.
//
// shrink starts at 1.0 and decays by ×0.9 per frame, so the first frame
// can never terminate and the per-frame stop probability only grows as
// the target shrinks.
func UniformStopRule(rng *rand.Rand) StopRule {
	return func(shrink float64) bool {
		return shrink < 0.1+0.4*rng.Float64()
	}
}

// RandomCenter samples a uniformly random target position on a size.X by
// size.Y screen.
func RandomCenter(rng *rand.Rand, size image.Point) image.Point {
	return image.Pt(
		int(rng.Float64()*float64(size.X)),
		int(rng.Float64()*float64(size.Y)),
	)
}

// RandomOrientation samples one of the four target orientations uniformly.
func RandomOrientation(rng *rand.Rand) Orientation {
	return Orientations[rng.Intn(len(Orientations))]
}

// RenderTarget draws one animation frame: a gray disc with the glyph
// centered in it, at the given center, scaled by shrink.
//
// The animation is authored for the horizontal orientations and realized
// for the vertical ones by drawing on an axis-swapped canvas and
// transposing the finished frame back. LEFT and UP additionally mirror
// the drawing coordinate and then flip the frame, which restores the
// target to the caller-requested position while leaving the glyph itself
// mirrored. The mirrored glyph is what makes the four orientations
// visually distinct at a glance.
//
// Returns the frame (float32 pixels normalized to [0,1], ready for
// display), the shrink factor for the next frame (shrink × 0.9), and
// whether the stop rule ended the animation on this frame. On the
// terminating frame the glyph is orange instead of blue; that color
// switch is the subject's go cue.
//
// The caller owns the returned Mat and must Close it after display.
func RenderTarget(size image.Point, center image.Point, shrink float64, o Orientation, glyph string, stop StopRule) (gocv.Mat, float64, bool) {
	var img gocv.Mat
	var terminated bool

	if !o.Vertical() {
		img = blankCanvas(size.Y, size.X)

		c := center
		if o.Mirrored() {
			c = mirrorCoord(c, size.X)
		}

		terminated = paintTarget(&img, c, shrink, glyph, stop)

		if o.Mirrored() {
			img = flipHorizontal(img)
		}
	} else {
		// Swapped canvas: rows = size.X, cols = size.Y. All sizing math
		// runs exactly as in the horizontal case, just on swapped axes.
		img = blankCanvas(size.X, size.Y)

		c := swapCoord(center)
		if o.Mirrored() {
			c = mirrorCoord(c, size.Y)
		}

		terminated = paintTarget(&img, c, shrink, glyph, stop)

		if o.Mirrored() {
			img = flipHorizontal(img)
		}

		img = transpose(img)
	}

	img.DivideFloat(255)

	return img, shrink * 0.9, terminated
}

// paintTarget draws the disc and glyph onto img and applies the stop rule.
// Reports whether this is the terminating frame.
func paintTarget(img *gocv.Mat, center image.Point, shrink float64, glyph string, stop StopRule) bool {
	textSize := gocv.GetTextSize(glyph, glyphFont, glyphScale, glyphThickness)

	radius := int(float64(textSize.X) * discRadiusGlyphWidths * shrink)
	gocv.Circle(img, center, radius, discGray, -1)

	origin := image.Pt(center.X-textSize.X/2, center.Y+textSize.Y/2)

	terminated := stop(shrink)
	glyphColor := glyphBlue
	if terminated {
		glyphColor = glyphOrange
	}
	gocv.PutTextWithParams(img, glyph, origin, glyphFont, glyphScale, glyphColor, glyphThickness, gocv.LineAA, false)

	return terminated
}

// BlankFrame returns an all-black frame sized for the screen, used to
// rest the subject's eyes between trials.
//
// The caller owns the returned Mat and must Close it after display.
func BlankFrame(size image.Point) gocv.Mat {
	return blankCanvas(size.Y, size.X)
}

// mirrorCoord mirrors the x coordinate across a canvas of width w.
func mirrorCoord(p image.Point, w int) image.Point {
	return image.Pt(w-p.X, p.Y)
}

// swapCoord swaps the axes of a point.
func swapCoord(p image.Point) image.Point {
	return image.Pt(p.Y, p.X)
}

func blankCanvas(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV32FC3)
}

// flipHorizontal mirrors the frame across its vertical axis, consuming src.
func flipHorizontal(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Flip(src, &dst, 1)
	src.Close()
	return dst
}

// transpose swaps the frame's axes, consuming src.
func transpose(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Transpose(src, &dst)
	src.Close()
	return dst
}
