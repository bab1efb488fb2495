// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker reconciles display rotation and physical device tilt into a
// single output orientation and tells an Observer when it changes.
package tracker

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/relabs-tech/orientation_tracker/internal/orientation"
)

// DisplaySource reports display changes by display ID. The tracker asks for
// the rotation of the display that changed; a display that is gone returns false.
type DisplaySource interface {
	RegisterDisplaySource(fn func(displayID string)) error
	// UnregisterDisplaySource must be idempotent. After it returns the
	// registered function is not called again.
	UnregisterDisplaySource()
	DisplayRotation(displayID string) (orientation.Rotation, bool)
}

// TiltSource streams the physical rotation of the device in degrees.
type TiltSource interface {
	EnableTiltSource(fn func(degrees int)) error
	// DisableTiltSource must be idempotent. After it returns the enabled
	// function is not called again.
	DisableTiltSource()
}

// Observer receives orientation changes. Callbacks run synchronously on the
// goroutine that delivered the event, with the tracker locked: they must not
// call back into the Tracker and must not block for long.
type Observer interface {
	OnOutputOrientationChanged(o orientation.Orientation)
	OnPreviewOrientationChanged(o orientation.Orientation)
}

// Options configures a Tracker. Every collaborator may be nil.
type Options struct {
	Display  DisplaySource
	Tilt     TiltSource
	Observer Observer

	// DisplayID restricts display events to one display.
	// Empty follows whichever known display reports a change.
	DisplayID string
}

type state struct {
	displayRotation orientation.Rotation
	deviceRotation  orientation.Rotation
	mode            orientation.OutputMode

	lastOutput     orientation.Orientation
	haveLastOutput bool

	lastPreview     orientation.Orientation
	haveLastPreview bool
}

// State is a consistent copy of what the tracker currently knows.
type State struct {
	Mode            orientation.OutputMode  `json:"mode"`
	DisplayRotation orientation.Rotation    `json:"display_rotation"`
	DeviceRotation  orientation.Rotation    `json:"device_rotation"`
	Preview         orientation.Orientation `json:"preview"`
	Output          orientation.Orientation `json:"output"`
	Subscribed      bool                    `json:"subscribed"`
}

// Tracker owns the orientation state. It is safe for concurrent use.
type Tracker struct {
	display   DisplaySource
	tilt      TiltSource
	observer  Observer
	displayID string

	// modeMu serializes SetTargetMode and Close. Event handlers never take it,
	// so sources may wait for in-flight deliveries while unsubscribing.
	modeMu sync.Mutex

	mu         sync.Mutex
	st         state
	gen        uint64 // subscription generation; deliveries from older ones are dropped
	subscribed bool
}

// New creates a tracker in ModeDevice with both rotations at 0°. Nothing is
// subscribed and nothing is notified until SetTargetMode is called.
func New(opts Options) *Tracker {
	obs := opts.Observer
	if obs == nil {
		obs = ObserverFuncs{}
	}
	return &Tracker{
		display:   opts.Display,
		tilt:      opts.Tilt,
		observer:  obs,
		displayID: opts.DisplayID,
		st:        state{mode: orientation.ModeDevice},
	}
}

// OnDisplayRotationChanged records a new display rotation and re-evaluates.
func (t *Tracker) OnDisplayRotationChanged(r orientation.Rotation) {
	if !r.Valid() {
		log.Printf("tracker: ignoring invalid display rotation %d", int(r))
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.displayRotation = r
	t.reevaluate()
}

// OnDeviceTiltChanged records a raw tilt reading and re-evaluates. It is meant
// to be called for every sensor sample; observers only hear about readings
// that cross a quantization boundary.
func (t *Tracker) OnDeviceTiltChanged(degrees int) {
	r := orientation.Quantize(orientation.Normalize(degrees))
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.deviceRotation = r
	t.reevaluate()
}

// SetTargetMode switches the output mode.
//
// Both sources are unsubscribed first. Dynamic modes subscribe them again.
// The state is then re-evaluated once, so a switch that changes the output
// notifies immediately using the last known rotations.
//
// The error reports an invalid mode (nothing changes) or a source that failed
// to subscribe (the mode is still applied).
func (t *Tracker) SetTargetMode(mode orientation.OutputMode) error {
	if !mode.Valid() {
		return fmt.Errorf("tracker: set target mode: invalid mode %d", int(mode))
	}

	t.modeMu.Lock()
	defer t.modeMu.Unlock()

	t.mu.Lock()
	prev := t.st.mode
	t.gen++
	t.mu.Unlock()

	t.unsubscribe()

	log.Printf("tracker: target mode changed %s -> %s", prev, mode)

	t.mu.Lock()
	t.st.mode = mode
	gen := t.gen
	t.mu.Unlock()

	var err error
	if mode.Dynamic() {
		log.Println("tracker: streaming device tilt and display rotation updates")
		err = t.subscribe(gen)
	} else {
		locked, _ := mode.Locked()
		log.Printf("tracker: output orientation locked to %s", locked)
	}

	t.mu.Lock()
	t.reevaluate()
	t.mu.Unlock()

	return err
}

// Close unsubscribes from both sources. The tracker keeps answering reads and
// direct handler calls.
func (t *Tracker) Close() {
	t.modeMu.Lock()
	defer t.modeMu.Unlock()

	t.mu.Lock()
	t.gen++
	t.mu.Unlock()

	t.unsubscribe()
}

// PreviewOrientation always follows the display, whatever the mode.
func (t *Tracker) PreviewOrientation() orientation.Orientation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.preview()
}

// OutputOrientation is computed from the current mode and rotations.
func (t *Tracker) OutputOrientation() orientation.Orientation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.output()
}

func (t *Tracker) Mode() orientation.OutputMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.mode
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Mode:            t.st.mode,
		DisplayRotation: t.st.displayRotation,
		DeviceRotation:  t.st.deviceRotation,
		Preview:         t.st.preview(),
		Output:          t.st.output(),
		Subscribed:      t.subscribed,
	}
}

func (s *state) preview() orientation.Orientation {
	return orientation.FromRotation(s.displayRotation)
}

func (s *state) output() orientation.Orientation {
	switch s.mode {
	case orientation.ModeDevice:
		return orientation.FromRotation(s.deviceRotation)
	case orientation.ModePreview:
		return orientation.FromRotation(s.displayRotation)
	}
	locked, _ := s.mode.Locked()
	return locked
}

// reevaluate notifies the observer of changed orientations, output first.
// Both checks always run. Caller holds t.mu.
func (t *Tracker) reevaluate() {
	out := t.st.output()
	if !t.st.haveLastOutput || t.st.lastOutput != out {
		t.observer.OnOutputOrientationChanged(out)
		t.st.lastOutput = out
		t.st.haveLastOutput = true
	}

	prev := t.st.preview()
	if !t.st.haveLastPreview || t.st.lastPreview != prev {
		t.observer.OnPreviewOrientationChanged(prev)
		t.st.lastPreview = prev
		t.st.haveLastPreview = true
	}
}

func (t *Tracker) subscribe(gen uint64) error {
	var errs []error
	if t.tilt != nil {
		err := t.tilt.EnableTiltSource(func(deg int) { t.tiltDelivered(gen, deg) })
		if err != nil {
			errs = append(errs, fmt.Errorf("tracker: enable tilt source: %w", err))
		}
	}
	if t.display != nil {
		err := t.display.RegisterDisplaySource(func(id string) { t.displayDelivered(gen, id) })
		if err != nil {
			errs = append(errs, fmt.Errorf("tracker: register display source: %w", err))
		}
	}

	t.mu.Lock()
	t.subscribed = true
	t.mu.Unlock()

	return errors.Join(errs...)
}

func (t *Tracker) unsubscribe() {
	if t.display != nil {
		t.display.UnregisterDisplaySource()
	}
	if t.tilt != nil {
		t.tilt.DisableTiltSource()
	}

	t.mu.Lock()
	t.subscribed = false
	t.mu.Unlock()
}

func (t *Tracker) displayDelivered(gen uint64, displayID string) {
	if t.displayID != "" && displayID != t.displayID {
		return
	}
	r, ok := t.display.DisplayRotation(displayID)
	if !ok || !r.Valid() {
		// Removed or unknown display.
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.st.displayRotation = r
	t.reevaluate()
}

func (t *Tracker) tiltDelivered(gen uint64, degrees int) {
	r := orientation.Quantize(orientation.Normalize(degrees))

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.st.deviceRotation = r
	t.reevaluate()
}
