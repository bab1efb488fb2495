package tracker

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/orientation_tracker/internal/orientation"
)

// event is one recorded observer callback.
type event struct {
	kind string // "output" or "preview"
	o    orientation.Orientation
}

type recordingObserver struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingObserver) OnOutputOrientationChanged(o orientation.Orientation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"output", o})
}

func (r *recordingObserver) OnPreviewOrientationChanged(o orientation.Orientation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"preview", o})
}

func (r *recordingObserver) take() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.events
	r.events = nil
	return ev
}

type fakeDisplay struct {
	rotations     map[string]orientation.Rotation
	fn            func(string)
	registers     int
	unregisters   int
	registerErr   error
	registeredFns []func(string)
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{rotations: map[string]orientation.Rotation{}}
}

func (d *fakeDisplay) RegisterDisplaySource(fn func(string)) error {
	d.registers++
	if d.registerErr != nil {
		return d.registerErr
	}
	d.fn = fn
	d.registeredFns = append(d.registeredFns, fn)
	return nil
}

func (d *fakeDisplay) UnregisterDisplaySource() {
	d.unregisters++
	d.fn = nil
}

func (d *fakeDisplay) DisplayRotation(id string) (orientation.Rotation, bool) {
	r, ok := d.rotations[id]
	return r, ok
}

// rotate changes a display and fires the listener, like the platform would.
func (d *fakeDisplay) rotate(id string, r orientation.Rotation) {
	d.rotations[id] = r
	if d.fn != nil {
		d.fn(id)
	}
}

type fakeTilt struct {
	fn         func(int)
	enables    int
	disables   int
	enabledFns []func(int)
}

func (s *fakeTilt) EnableTiltSource(fn func(int)) error {
	s.enables++
	s.fn = fn
	s.enabledFns = append(s.enabledFns, fn)
	return nil
}

func (s *fakeTilt) DisableTiltSource() {
	s.disables++
	s.fn = nil
}

func (s *fakeTilt) tilt(deg int) {
	if s.fn != nil {
		s.fn(deg)
	}
}

func newTestTracker(t *testing.T) (*Tracker, *fakeDisplay, *fakeTilt, *recordingObserver) {
	t.Helper()
	d := newFakeDisplay()
	d.rotations["0"] = orientation.Rotation0
	tl := &fakeTilt{}
	obs := &recordingObserver{}
	tr := New(Options{Display: d, Tilt: tl, Observer: obs})
	return tr, d, tl, obs
}

func TestNew_DefaultsAndNoNotifications(t *testing.T) {
	t.Parallel()
	tr, d, tl, obs := newTestTracker(t)

	assert.Equal(t, orientation.ModeDevice, tr.Mode())
	assert.Equal(t, orientation.Portrait, tr.OutputOrientation())
	assert.Equal(t, orientation.Portrait, tr.PreviewOrientation())
	assert.Empty(t, obs.take())
	assert.Zero(t, d.registers)
	assert.Zero(t, tl.enables)
	assert.False(t, tr.Snapshot().Subscribed)
}

func TestSetTargetMode_FirstSwitchNotifiesBoth(t *testing.T) {
	t.Parallel()
	tr, d, tl, obs := newTestTracker(t)

	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))

	assert.Equal(t, []event{
		{"output", orientation.Portrait},
		{"preview", orientation.Portrait},
	}, obs.take())
	assert.Equal(t, 1, d.registers)
	assert.Equal(t, 1, tl.enables)
	assert.Equal(t, 1, d.unregisters, "unsubscribes before subscribing")
	assert.Equal(t, 1, tl.disables)
	assert.True(t, tr.Snapshot().Subscribed)
}

func TestDeviceTilt_CrossingBoundaryNotifiesOutputOnly(t *testing.T) {
	t.Parallel()
	tr, _, tl, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	obs.take()

	tl.tilt(100)

	assert.Equal(t, orientation.Rotation270, tr.Snapshot().DeviceRotation)
	assert.Equal(t, orientation.LandscapeRight, tr.OutputOrientation())
	assert.Equal(t, []event{{"output", orientation.LandscapeRight}}, obs.take())
}

func TestDeviceTilt_NoiseWithinBandIsSilent(t *testing.T) {
	t.Parallel()
	tr, _, tl, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	obs.take()

	for _, deg := range []int{0, 10, 44, 359, 320, 315, 1} {
		tl.tilt(deg)
	}
	assert.Empty(t, obs.take())

	tr.OnDeviceTiltChanged(-90)
	assert.Equal(t, []event{{"output", orientation.LandscapeLeft}}, obs.take())
}

func TestDisplayRotation_SameValueTwiceNotifiesOnce(t *testing.T) {
	t.Parallel()
	tr, _, _, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	obs.take()

	tr.OnDisplayRotationChanged(orientation.Rotation90)
	tr.OnDisplayRotationChanged(orientation.Rotation90)

	assert.Equal(t, []event{{"preview", orientation.LandscapeLeft}}, obs.take())
}

func TestDisplayRotation_BothCallbacksInPreviewMode(t *testing.T) {
	t.Parallel()
	tr, d, _, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModePreview))
	obs.take()

	d.rotate("0", orientation.Rotation180)

	assert.Equal(t, []event{
		{"output", orientation.PortraitUpsideDown},
		{"preview", orientation.PortraitUpsideDown},
	}, obs.take(), "output is checked before preview")
}

func TestSetTargetMode_DeviceToPreviewNotifiesWithoutEvent(t *testing.T) {
	t.Parallel()
	tr, d, tl, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	d.rotate("0", orientation.Rotation90)
	tl.tilt(100)
	require.Equal(t, orientation.LandscapeRight, tr.OutputOrientation())
	obs.take()

	require.NoError(t, tr.SetTargetMode(orientation.ModePreview))

	assert.Equal(t, []event{{"output", orientation.LandscapeLeft}}, obs.take())
	assert.Equal(t, orientation.LandscapeLeft, tr.OutputOrientation())
}

func TestSetTargetMode_LockedModeNotifiesAtSwitchAndUnsubscribes(t *testing.T) {
	t.Parallel()
	tr, d, tl, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	obs.take()

	require.NoError(t, tr.SetTargetMode(orientation.ModeLandscapeRight))

	assert.Equal(t, orientation.LandscapeRight, tr.OutputOrientation())
	assert.Equal(t, []event{{"output", orientation.LandscapeRight}}, obs.take())
	assert.Nil(t, d.fn)
	assert.Nil(t, tl.fn)
	assert.Equal(t, 1, d.registers)
	assert.Equal(t, 1, tl.enables)
	assert.False(t, tr.Snapshot().Subscribed)
}

func TestLockedMode_TiltNeverChangesOutput(t *testing.T) {
	t.Parallel()
	tr, _, _, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModePortrait))
	obs.take()

	for deg := 0; deg < 720; deg += 7 {
		tr.OnDeviceTiltChanged(deg)
		assert.Equal(t, orientation.Portrait, tr.OutputOrientation())
	}
	for _, e := range obs.take() {
		assert.NotEqual(t, "output", e.kind)
	}
}

func TestPreview_IndependentOfMode(t *testing.T) {
	t.Parallel()
	tr, _, _, _ := newTestTracker(t)
	tr.OnDisplayRotationChanged(orientation.Rotation270)
	tr.OnDeviceTiltChanged(180)

	modes := []orientation.OutputMode{
		orientation.ModePortrait, orientation.ModeDevice, orientation.ModeLandscapeLeft,
		orientation.ModePreview, orientation.ModePortraitUpsideDown, orientation.ModeLandscapeRight,
		orientation.ModeDevice,
	}
	for _, m := range modes {
		require.NoError(t, tr.SetTargetMode(m))
		assert.Equal(t, orientation.LandscapeRight, tr.PreviewOrientation(), m.String())
	}
}

func TestOutput_PerMode(t *testing.T) {
	t.Parallel()
	tr, _, _, _ := newTestTracker(t)
	tr.OnDisplayRotationChanged(orientation.Rotation90)
	tr.OnDeviceTiltChanged(180) // 180°

	want := map[orientation.OutputMode]orientation.Orientation{
		orientation.ModeDevice:             orientation.PortraitUpsideDown,
		orientation.ModePreview:            orientation.LandscapeLeft,
		orientation.ModePortrait:           orientation.Portrait,
		orientation.ModeLandscapeLeft:      orientation.LandscapeLeft,
		orientation.ModePortraitUpsideDown: orientation.PortraitUpsideDown,
		orientation.ModeLandscapeRight:     orientation.LandscapeRight,
	}
	for m, o := range want {
		require.NoError(t, tr.SetTargetMode(m))
		assert.Equal(t, o, tr.OutputOrientation(), m.String())
	}
}

func TestSetTargetMode_AllTransitionsLegal(t *testing.T) {
	t.Parallel()

	all := []orientation.OutputMode{
		orientation.ModeDevice, orientation.ModePreview, orientation.ModePortrait,
		orientation.ModeLandscapeLeft, orientation.ModePortraitUpsideDown, orientation.ModeLandscapeRight,
	}
	for _, from := range all {
		for _, to := range all {
			tr, _, _, _ := newTestTracker(t)
			tr.OnDisplayRotationChanged(orientation.Rotation180)
			tr.OnDeviceTiltChanged(250)
			require.NoError(t, tr.SetTargetMode(from))
			require.NoError(t, tr.SetTargetMode(to))

			s := tr.Snapshot()
			assert.Equal(t, to, s.Mode)
			assert.Equal(t, orientation.Rotation180, s.DisplayRotation)
			assert.Equal(t, orientation.Rotation90, s.DeviceRotation)
			assert.Equal(t, to.Dynamic(), s.Subscribed)
		}
	}
}

func TestSetTargetMode_InvalidMode(t *testing.T) {
	t.Parallel()
	tr, d, _, obs := newTestTracker(t)

	err := tr.SetTargetMode(orientation.OutputMode(42))
	require.Error(t, err)
	assert.Equal(t, orientation.ModeDevice, tr.Mode())
	assert.Zero(t, d.unregisters)
	assert.Empty(t, obs.take())
}

func TestSetTargetMode_RegisterErrorStillAppliesMode(t *testing.T) {
	t.Parallel()
	tr, d, tl, obs := newTestTracker(t)
	d.registerErr = errors.New("bus down")

	err := tr.SetTargetMode(orientation.ModePreview)
	require.Error(t, err)
	assert.ErrorIs(t, err, d.registerErr)
	assert.Equal(t, orientation.ModePreview, tr.Mode())
	assert.Equal(t, 1, tl.enables)
	assert.Len(t, obs.take(), 2)
}

func TestStaleSubscriptionDeliveriesAreDropped(t *testing.T) {
	t.Parallel()
	tr, d, tl, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	require.NoError(t, tr.SetTargetMode(orientation.ModePreview))
	obs.take()

	require.Len(t, tl.enabledFns, 2)
	require.Len(t, d.registeredFns, 2)

	// Callbacks captured from the first subscription.
	tl.enabledFns[0](180)
	d.rotations["0"] = orientation.Rotation90
	d.registeredFns[0]("0")

	assert.Empty(t, obs.take())
	s := tr.Snapshot()
	assert.Equal(t, orientation.Rotation0, s.DeviceRotation)
	assert.Equal(t, orientation.Rotation0, s.DisplayRotation)

	// Current subscription still works.
	d.registeredFns[1]("0")
	assert.Equal(t, []event{
		{"output", orientation.LandscapeLeft},
		{"preview", orientation.LandscapeLeft},
	}, obs.take())
}

func TestUnknownDisplayIsIgnored(t *testing.T) {
	t.Parallel()
	tr, d, _, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModePreview))
	obs.take()

	d.fn("hdmi-1") // never registered, lookup fails

	assert.Empty(t, obs.take())
	assert.Equal(t, orientation.Rotation0, tr.Snapshot().DisplayRotation)
}

func TestDisplayIDFilter(t *testing.T) {
	t.Parallel()
	d := newFakeDisplay()
	obs := &recordingObserver{}
	tr := New(Options{Display: d, Observer: obs, DisplayID: "main"})
	require.NoError(t, tr.SetTargetMode(orientation.ModePreview))
	obs.take()

	d.rotate("aux", orientation.Rotation90)
	assert.Empty(t, obs.take())

	d.rotate("main", orientation.Rotation270)
	assert.Equal(t, []event{
		{"output", orientation.LandscapeRight},
		{"preview", orientation.LandscapeRight},
	}, obs.take())
}

func TestClose_UnsubscribesAndDropsDeliveries(t *testing.T) {
	t.Parallel()
	tr, d, tl, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	fn := tl.fn
	obs.take()

	tr.Close()

	assert.Nil(t, tl.fn)
	assert.Nil(t, d.fn)
	fn(180)
	assert.Empty(t, obs.take())
	assert.False(t, tr.Snapshot().Subscribed)
}

func TestNilCollaborators(t *testing.T) {
	t.Parallel()
	tr := New(Options{})

	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	tr.OnDeviceTiltChanged(200)
	tr.OnDisplayRotationChanged(orientation.Rotation90)
	tr.Close()

	assert.Equal(t, orientation.PortraitUpsideDown, tr.OutputOrientation())
	assert.Equal(t, orientation.LandscapeLeft, tr.PreviewOrientation())
}

func TestInvalidDisplayRotationIgnored(t *testing.T) {
	t.Parallel()
	tr, _, _, obs := newTestTracker(t)
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))
	obs.take()

	tr.OnDisplayRotationChanged(orientation.Rotation(45))

	assert.Empty(t, obs.take())
	assert.Equal(t, orientation.Rotation0, tr.Snapshot().DisplayRotation)
}

func TestConcurrentDeliveries(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	tr := New(Options{Observer: obs})
	require.NoError(t, tr.SetTargetMode(orientation.ModeDevice))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tr.OnDeviceTiltChanged(i*45 + j)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tr.OnDisplayRotationChanged(orientation.Rotation((i + j) % 4 * 90))
			}
		}(i)
	}
	wg.Wait()

	// Consecutive notifications of the same kind never repeat a value.
	last := map[string]orientation.Orientation{}
	for _, e := range obs.take() {
		if prev, ok := last[e.kind]; ok {
			assert.NotEqual(t, prev, e.o, e.kind)
		}
		last[e.kind] = e.o
	}
}

func TestMultiObserverAndFuncs(t *testing.T) {
	t.Parallel()

	var outs, previews []orientation.Orientation
	rec := &recordingObserver{}
	m := MultiObserver{
		ObserverFuncs{Output: func(o orientation.Orientation) { outs = append(outs, o) }},
		nil,
		ObserverFuncs{Preview: func(o orientation.Orientation) { previews = append(previews, o) }},
		rec,
		LogObserver{},
	}
	tr := New(Options{Observer: m})
	require.NoError(t, tr.SetTargetMode(orientation.ModeLandscapeLeft))

	assert.Equal(t, []orientation.Orientation{orientation.LandscapeLeft}, outs)
	assert.Equal(t, []orientation.Orientation{orientation.Portrait}, previews)
	assert.Len(t, rec.take(), 2)
}
