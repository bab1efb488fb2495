package orientation

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantize_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		deg  int
		want Rotation
	}{
		{0, Rotation0},
		{44, Rotation0},
		{45, Rotation270},
		{100, Rotation270},
		{134, Rotation270},
		{135, Rotation180},
		{224, Rotation180},
		{225, Rotation90},
		{314, Rotation90},
		{315, Rotation0},
		{359, Rotation0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.deg), func(t *testing.T) {
			assert.Equal(t, tt.want, Quantize(tt.deg))
		})
	}
}

func TestQuantize_NormalizesOutOfRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Rotation0, Quantize(360))
	assert.Equal(t, Rotation270, Quantize(360+100))
	assert.Equal(t, Rotation0, Quantize(-10))
	assert.Equal(t, Rotation90, Quantize(-90))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Normalize(0))
	assert.Equal(t, 359, Normalize(-1))
	assert.Equal(t, 0, Normalize(720))
	assert.Equal(t, 10, Normalize(-710))
}

func TestFromRotation_Bijection(t *testing.T) {
	t.Parallel()

	want := map[Rotation]Orientation{
		Rotation0:   Portrait,
		Rotation90:  LandscapeLeft,
		Rotation180: PortraitUpsideDown,
		Rotation270: LandscapeRight,
	}

	seen := map[Orientation]Rotation{}
	for r, o := range want {
		got := FromRotation(r)
		assert.Equal(t, o, got, "rotation %v", r)
		prev, dup := seen[got]
		assert.False(t, dup, "%v and %v both map to %v", prev, r, got)
		seen[got] = r
		assert.Equal(t, r, got.Rotation(), "inverse of %v", got)
	}
	assert.Len(t, seen, 4)
}

func TestRotationFromDegrees(t *testing.T) {
	t.Parallel()

	r, err := RotationFromDegrees(180)
	require.NoError(t, err)
	assert.Equal(t, Rotation180, r)

	_, err = RotationFromDegrees(45)
	assert.Error(t, err)
	_, err = RotationFromDegrees(360)
	assert.Error(t, err)
}

func TestOutputMode_DynamicAndLocked(t *testing.T) {
	t.Parallel()

	assert.True(t, ModeDevice.Dynamic())
	assert.True(t, ModePreview.Dynamic())

	locked := map[OutputMode]Orientation{
		ModePortrait:           Portrait,
		ModeLandscapeLeft:      LandscapeLeft,
		ModePortraitUpsideDown: PortraitUpsideDown,
		ModeLandscapeRight:     LandscapeRight,
	}
	for m, o := range locked {
		assert.False(t, m.Dynamic(), m.String())
		got, ok := m.Locked()
		assert.True(t, ok, m.String())
		assert.Equal(t, o, got)
	}

	_, ok := ModeDevice.Locked()
	assert.False(t, ok)
}

func TestParseOutputMode(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"portrait_upside_down", "PORTRAIT-UPSIDE-DOWN", " portrait-upside-down "} {
		m, err := ParseOutputMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, ModePortraitUpsideDown, m)
	}

	m, err := ParseOutputMode("Preview")
	require.NoError(t, err)
	assert.Equal(t, ModePreview, m)

	_, err = ParseOutputMode("sideways")
	assert.Error(t, err)
}

func TestJSONText(t *testing.T) {
	t.Parallel()

	type payload struct {
		Mode        OutputMode  `json:"mode"`
		Orientation Orientation `json:"orientation"`
	}

	b, err := json.Marshal(payload{Mode: ModeLandscapeRight, Orientation: LandscapeLeft})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"landscape-right","orientation":"landscape-left"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"preview","orientation":"portrait-upside-down"}`), &p))
	assert.Equal(t, ModePreview, p.Mode)
	assert.Equal(t, PortraitUpsideDown, p.Orientation)

	assert.Error(t, json.Unmarshal([]byte(`{"mode":"nope"}`), &p))
}

func TestTiltFromAccel(t *testing.T) {
	t.Parallel()

	const g = standardGravity
	tests := []struct {
		name       string
		ax, ay, az float64
		want       int
	}{
		{"upright", 0, g, 0, 0},
		{"right side up", -g, 0, 0, 90},
		{"upside down", 0, -g, 0, 180},
		{"left side up", g, 0, 0, 270},
		{"slightly turned", -g * 0.5, g * 0.866, 1, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deg, ok := TiltFromAccel(tt.ax, tt.ay, tt.az)
			require.True(t, ok)
			assert.Equal(t, tt.want, deg)
		})
	}

	_, ok := TiltFromAccel(0.1, 0.1, g)
	assert.False(t, ok, "flat device has no tilt")
	_, ok = TiltFromAccel(0, 0, 0)
	assert.False(t, ok)
}

func TestMockSource_FollowsTiltSweep(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	elapsed := 6 * time.Second
	m := &mockSource{
		start: start,
		now:   func() time.Time { return start.Add(elapsed) },
		rate:  15,
	}

	s, err := m.Next()
	require.NoError(t, err)
	deg, ok := s.Tilt()
	require.True(t, ok)
	assert.Equal(t, 90, deg)
	assert.Equal(t, Rotation270, Quantize(deg))

	elapsed = 12 * time.Second
	s, err = m.Next()
	require.NoError(t, err)
	deg, ok = s.Tilt()
	require.True(t, ok)
	assert.Equal(t, 180, deg)
}
