package orientation

import (
	"fmt"
	"strings"
)

// Orientation is the logical orientation derived from a Rotation.
type Orientation int

const (
	Portrait Orientation = iota
	LandscapeLeft
	PortraitUpsideDown
	LandscapeRight
)

var orientationNames = [...]string{
	Portrait:           "portrait",
	LandscapeLeft:      "landscape-left",
	PortraitUpsideDown: "portrait-upside-down",
	LandscapeRight:     "landscape-right",
}

// FromRotation is the fixed bijection between rotations and orientations:
//
//	0°   -> Portrait
//	90°  -> LandscapeLeft
//	180° -> PortraitUpsideDown
//	270° -> LandscapeRight
//
// Other angles snap to the nearest right angle so the function stays total.
func FromRotation(r Rotation) Orientation {
	d := Normalize(int(r))
	return Orientation(((d + 45) / 90) % 4)
}

// Rotation is the inverse of FromRotation.
func (o Orientation) Rotation() Rotation {
	return Rotation(int(o) * 90)
}

func (o Orientation) Valid() bool {
	return o >= Portrait && o <= LandscapeRight
}

func (o Orientation) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
	return orientationNames[o]
}

// ParseOrientation accepts the names produced by String, in any case and
// with '_' in place of '-'.
func ParseOrientation(s string) (Orientation, error) {
	name := canonicalName(s)
	for i, n := range orientationNames {
		if n == name {
			return Orientation(i), nil
		}
	}
	return Portrait, fmt.Errorf("unknown orientation %q", s)
}

func (o Orientation) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid orientation %d", int(o))
	}
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	v, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// OutputMode selects how the output orientation is computed.
// ModeDevice and ModePreview follow the sensors; the other four lock the
// output to a constant orientation.
type OutputMode int

const (
	ModeDevice OutputMode = iota
	ModePreview
	ModePortrait
	ModeLandscapeLeft
	ModePortraitUpsideDown
	ModeLandscapeRight
)

var modeNames = [...]string{
	ModeDevice:             "device",
	ModePreview:            "preview",
	ModePortrait:           "portrait",
	ModeLandscapeLeft:      "landscape-left",
	ModePortraitUpsideDown: "portrait-upside-down",
	ModeLandscapeRight:     "landscape-right",
}

func (m OutputMode) Valid() bool {
	return m >= ModeDevice && m <= ModeLandscapeRight
}

// Dynamic reports whether the mode tracks sensor input.
func (m OutputMode) Dynamic() bool {
	return m == ModeDevice || m == ModePreview
}

// Locked returns the constant orientation of a locked mode.
func (m OutputMode) Locked() (Orientation, bool) {
	switch m {
	case ModePortrait:
		return Portrait, true
	case ModeLandscapeLeft:
		return LandscapeLeft, true
	case ModePortraitUpsideDown:
		return PortraitUpsideDown, true
	case ModeLandscapeRight:
		return LandscapeRight, true
	}
	return Portrait, false
}

func (m OutputMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseOutputMode accepts "device", "preview" or an orientation name, in any
// case and with '_' in place of '-'.
func ParseOutputMode(s string) (OutputMode, error) {
	name := canonicalName(s)
	for i, n := range modeNames {
		if n == name {
			return OutputMode(i), nil
		}
	}
	return ModeDevice, fmt.Errorf("unknown output mode %q", s)
}

func (m OutputMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid output mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *OutputMode) UnmarshalText(b []byte) error {
	v, err := ParseOutputMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func canonicalName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}
