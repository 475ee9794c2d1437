package x11

import (
	"errors"
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
)

// maxCaptureDimension bounds a single capture buffer per axis.
const maxCaptureDimension = 16384

var (
	// ErrNotViewable is returned when a window is unmapped or iconified.
	ErrNotViewable = errors.New("window is not viewable")
	// ErrTooLarge is returned when a window exceeds the capture buffer bound.
	ErrTooLarge = errors.New("window exceeds capture buffer size")
)

// CaptureWindow copies the current content of a window into an RGBA image.
// With Composite the window's off-screen pixmap is read, so overlapping
// windows do not bleed into the result.
func (c *Connection) CaptureWindow(windowID xproto.Window) (*image.RGBA, error) {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", windowID, err)
	}
	if attrs.MapState != xproto.MapStateViewable {
		return nil, ErrNotViewable
	}

	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return nil, fmt.Errorf("window %d geometry: %w", windowID, err)
	}
	if geom.Width == 0 || geom.Height == 0 {
		return nil, fmt.Errorf("window %d has no area", windowID)
	}
	if int(geom.Width) > maxCaptureDimension || int(geom.Height) > maxCaptureDimension {
		return nil, ErrTooLarge
	}

	drawable := xproto.Drawable(windowID)
	if c.composite {
		pix, err := c.namePixmap(windowID)
		if err == nil {
			defer xproto.FreePixmap(c.XUtil.Conn(), pix)
			drawable = xproto.Drawable(pix)
		}
	}

	ximg, err := xgraphics.NewDrawable(c.XUtil, drawable)
	if err != nil {
		return nil, fmt.Errorf("window %d image: %w", windowID, err)
	}
	return toRGBA(ximg), nil
}

// Forget drops per-window capture state once a window is no longer monitored.
func (c *Connection) Forget(windowID xproto.Window) {
	c.mu.Lock()
	_, ok := c.redirected[windowID]
	delete(c.redirected, windowID)
	c.mu.Unlock()

	if ok && c.IsAlive(windowID) {
		composite.UnredirectWindow(c.XUtil.Conn(), windowID, composite.RedirectAutomatic)
	}
}

func (c *Connection) namePixmap(windowID xproto.Window) (xproto.Pixmap, error) {
	c.mu.Lock()
	if _, ok := c.redirected[windowID]; !ok {
		// A compositing WM usually redirected the window already; the request
		// then fails with BadAccess, which is harmless.
		_ = composite.RedirectWindowChecked(c.XUtil.Conn(), windowID, composite.RedirectAutomatic).Check()
		c.redirected[windowID] = struct{}{}
	}
	c.mu.Unlock()

	pix, err := xproto.NewPixmapId(c.XUtil.Conn())
	if err != nil {
		return 0, err
	}
	if err := composite.NameWindowPixmapChecked(c.XUtil.Conn(), windowID, pix).Check(); err != nil {
		return 0, err
	}
	return pix, nil
}

// toRGBA converts xgraphics' BGRA buffer. Window pixmaps often carry
// garbage in the alpha channel, so alpha is forced opaque.
func toRGBA(src *xgraphics.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		si := y * src.Stride
		di := y * dst.Stride
		for x := 0; x < bounds.Dx(); x++ {
			dst.Pix[di+0] = src.Pix[si+2]
			dst.Pix[di+1] = src.Pix[si+1]
			dst.Pix[di+2] = src.Pix[si+0]
			dst.Pix[di+3] = 0xff
			si += 4
			di += 4
		}
	}
	return dst
}
