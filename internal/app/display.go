package app

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/orientation_tracker/internal/orientation"
	"github.com/relabs-tech/orientation_tracker/internal/tracker"
)

const (
	oledWidth  = 128
	oledHeight = 64
)

// drawer is the part of *ssd1306.Dev the status screen needs.
type drawer interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Bounds() image.Rectangle
}

// OLEDObserver shows the current output and preview orientation on a
// small monochrome display.
type OLEDObserver struct {
	dev drawer

	mu          sync.Mutex
	output      orientation.Orientation
	preview     orientation.Orientation
	haveOutput  bool
	havePreview bool
}

var _ tracker.Observer = (*OLEDObserver)(nil)

func NewOLEDObserver(dev drawer) *OLEDObserver {
	return &OLEDObserver{dev: dev}
}

func (o *OLEDObserver) OnOutputOrientationChanged(or orientation.Orientation) {
	o.mu.Lock()
	o.output, o.haveOutput = or, true
	o.mu.Unlock()
	o.refresh()
}

func (o *OLEDObserver) OnPreviewOrientationChanged(or orientation.Orientation) {
	o.mu.Lock()
	o.preview, o.havePreview = or, true
	o.mu.Unlock()
	o.refresh()
}

func (o *OLEDObserver) refresh() {
	o.mu.Lock()
	img := renderStatus(o.output, o.haveOutput, o.preview, o.havePreview)
	o.mu.Unlock()

	if err := o.dev.Draw(o.dev.Bounds(), img, image.Point{}); err != nil {
		log.Printf("oled: draw error: %v", err)
	}
}

// shortLabel fits an orientation into the 18 columns of Face7x13.
func shortLabel(or orientation.Orientation) string {
	switch or {
	case orientation.Portrait:
		return "PORTRAIT"
	case orientation.LandscapeLeft:
		return "LAND LEFT"
	case orientation.PortraitUpsideDown:
		return "PORT UPSIDE"
	case orientation.LandscapeRight:
		return "LAND RIGHT"
	default:
		return "?"
	}
}

func renderStatus(output orientation.Orientation, haveOutput bool, preview orientation.Orientation, havePreview bool) *image1bit.VerticalLSB {
	img := blankImage()
	d := textDrawer(img)

	d.Dot = fixed.P(0, 13)
	d.DrawString("Orientation")

	d.Dot = fixed.P(0, 32)
	if haveOutput {
		d.DrawString(fmt.Sprintf("OUT %s", shortLabel(output)))
	} else {
		d.DrawString("OUT waiting...")
	}

	d.Dot = fixed.P(0, 48)
	if havePreview {
		d.DrawString(fmt.Sprintf("PRV %s", shortLabel(preview)))
	} else {
		d.DrawString("PRV waiting...")
	}

	d.Dot = fixed.P(0, 63)
	if haveOutput {
		d.DrawString(fmt.Sprintf("%d deg", int(output.Rotation())))
	}
	return img
}

func blankImage() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, oledWidth, oledHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{image1bit.Off}, image.Point{}, draw.Src)
	return img
}

func textDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func showSplash(dev drawer) error {
	img := blankImage()
	d := textDrawer(img)

	d.Dot = fixed.P(10, 26)
	d.DrawString("Orientation")

	d.Dot = fixed.P(25, 43)
	d.DrawString("Tracker")

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

// OpenOLED initializes an SSD1306 on the given I2C bus ("" for the default
// bus) and shows the splash screen. The returned closer releases the bus.
func OpenOLED(busName string, addr uint16) (*ssd1306.Dev, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := newOLED(bus, addr)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	log.Printf("oled: display initialized at 0x%02X", addr)

	if err := showSplash(dev); err != nil {
		log.Printf("oled: error showing splash: %v", err)
	}
	return dev, bus.Close, nil
}

// ssd1306.NewI2C always talks to 0x3C.
const oledDefaultAddr = 0x3C

// addrBus sends every transaction to a fixed address.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func newOLED(bus i2c.Bus, addr uint16) (*ssd1306.Dev, error) {
	if addr != oledDefaultAddr {
		bus = addrBus{Bus: bus, addr: addr}
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return dev, nil
}
