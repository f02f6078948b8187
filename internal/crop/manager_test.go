package crop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

func newTestManager(t *testing.T, w, h int) Manager {
	t.Helper()
	m, err := NewManager(w, h, InvariantStrict)
	require.NoError(t, err)
	return m
}

func ratioPtr(r float64) *float64 { return &r }

func assertRatio(t *testing.T, m Manager, ratio float64) {
	t.Helper()
	reg, ok := m.Region()
	require.True(t, ok)
	assert.InDelta(t, ratio, reg.Width/reg.Height, RatioTolerance*ratio)
}

func TestNewManager_InvalidSize(t *testing.T) {
	_, err := NewManager(0, 10, InvariantClamp)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDimensions)
}

func TestManager_StartsUncropped(t *testing.T) {
	m := newTestManager(t, 200, 100)
	_, ok := m.Region()
	assert.False(t, ok)
	assert.Equal(t, Rect{Width: 200, Height: 100}, m.Effective())
}

func TestSetRegion_Valid(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRegion(Rect{X: 10, Y: 20, Width: 50, Height: 30}))

	reg, ok := m.Region()
	require.True(t, ok)
	assert.Equal(t, Rect{X: 10, Y: 20, Width: 50, Height: 30}, reg.Rect)
	assert.Nil(t, reg.Ratio)
}

func TestSetRegion_Idempotent(t *testing.T) {
	rects := []Rect{
		{X: 10, Y: 20, Width: 50, Height: 30},
		{X: 0, Y: 0, Width: 200, Height: 100},
		{X: 120.5, Y: 3.25, Width: 79.5, Height: 96.75},
	}
	for _, locked := range []bool{false, true} {
		for _, r := range rects {
			m := newTestManager(t, 200, 100)
			if locked {
				require.NoError(t, m.SetRatio(ratioPtr(4.0/3)))
			}
			require.NoError(t, m.SetRegion(r))
			first, _ := m.Region()
			require.NoError(t, m.SetRegion(r))
			second, _ := m.Region()
			assert.Equal(t, first, second)
		}
	}
}

func TestSetRegion_OutOfBoundsKeepsPrior(t *testing.T) {
	tests := []struct {
		name string
		rect Rect
	}{
		{"extends right", Rect{X: 150, Y: 0, Width: 60, Height: 10}},
		{"extends below", Rect{X: 0, Y: 90, Width: 10, Height: 20}},
		{"negative origin", Rect{X: -5, Y: 0, Width: 10, Height: 10}},
		{"zero width", Rect{X: 0, Y: 0, Width: 0, Height: 10}},
		{"negative height", Rect{X: 0, Y: 0, Width: 10, Height: -1}},
		{"NaN", Rect{X: math.NaN(), Y: 0, Width: 10, Height: 10}},
		{"infinite", Rect{X: 0, Y: 0, Width: math.Inf(1), Height: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name+" with prior region", func(t *testing.T) {
			m := newTestManager(t, 200, 100)
			prior := Rect{X: 1, Y: 2, Width: 3, Height: 4}
			require.NoError(t, m.SetRegion(prior))

			err := m.SetRegion(tt.rect)
			assert.ErrorIs(t, err, apperrors.ErrInvalidRegion)
			reg, ok := m.Region()
			require.True(t, ok)
			assert.Equal(t, prior, reg.Rect)
		})
		t.Run(tt.name+" without region", func(t *testing.T) {
			m := newTestManager(t, 200, 100)
			err := m.SetRegion(tt.rect)
			assert.ErrorIs(t, err, apperrors.ErrInvalidRegion)
			_, ok := m.Region()
			assert.False(t, ok)
		})
	}
}

func TestSetRegion_SlopIsClamped(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRegion(Rect{X: -1e-7, Y: 0, Width: 200 + 1e-7, Height: 100 + 5e-7}))

	reg, _ := m.Region()
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 200, Height: 100}, reg.Rect)
}

func TestSetRegion_LockedRatioDerivesHeight(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRatio(ratioPtr(2)))

	require.NoError(t, m.SetRegion(Rect{X: 10, Y: 10, Width: 60, Height: 50}))
	reg, _ := m.Region()
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 60, Height: 30}, reg.Rect)
	require.NotNil(t, reg.Ratio)
	assert.Equal(t, 2.0, *reg.Ratio)
}

func TestSetRegion_LockedRatioOverflowDerivesWidth(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRatio(ratioPtr(1)))

	require.NoError(t, m.SetRegion(Rect{X: 0, Y: 60, Width: 80, Height: 10}))
	reg, _ := m.Region()
	assert.Equal(t, Rect{X: 0, Y: 60, Width: 40, Height: 40}, reg.Rect)
}

func TestSetRatio_CentersOnFullImage(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRatio(ratioPtr(1)))

	reg, ok := m.Region()
	require.True(t, ok)
	assert.Equal(t, Rect{X: 50, Y: 0, Width: 100, Height: 100}, reg.Rect)
	cx, cy := reg.Center()
	assert.Equal(t, 100.0, cx)
	assert.Equal(t, 50.0, cy)
}

func TestSetRatio_CentersOnActiveRegionAndShiftsInside(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRegion(Rect{X: 170, Y: 10, Width: 20, Height: 20}))
	require.NoError(t, m.SetRatio(ratioPtr(1)))

	reg, _ := m.Region()
	assert.Equal(t, Rect{X: 100, Y: 0, Width: 100, Height: 100}, reg.Rect)
}

func TestSetRatio_Invariant(t *testing.T) {
	ratios := []float64{1, 16.0 / 9, 9.0 / 16, 4.0 / 3, 0.01, 50, math.Pi}
	for _, r := range ratios {
		m := newTestManager(t, 317, 211)
		require.NoError(t, m.SetRegion(Rect{X: 13, Y: 17, Width: 100, Height: 50}))
		require.NoError(t, m.SetRatio(ratioPtr(r)))
		assertRatio(t, m, r)

		reg, _ := m.Region()
		assert.GreaterOrEqual(t, reg.X, 0.0)
		assert.GreaterOrEqual(t, reg.Y, 0.0)
		assert.LessOrEqual(t, reg.X+reg.Width, 317+boundsSlop)
		assert.LessOrEqual(t, reg.Y+reg.Height, 211+boundsSlop)

		for _, rect := range []Rect{
			{X: 0, Y: 0, Width: 317, Height: 211},
			{X: 300, Y: 200, Width: 17, Height: 11},
			{X: 5, Y: 190, Width: 300, Height: 1},
		} {
			require.NoError(t, m.SetRegion(rect))
			assertRatio(t, m, r)
		}
	}
}

func TestSetRatio_InvalidKeepsState(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRatio(ratioPtr(2)))
	before := m

	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := m.SetRatio(ratioPtr(r))
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		assert.Equal(t, before, m)
	}
}

func TestSetRatio_NilUnlocks(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRatio(ratioPtr(1)))
	require.NoError(t, m.SetRatio(nil))

	_, locked := m.Ratio()
	assert.False(t, locked)

	require.NoError(t, m.SetRegion(Rect{X: 0, Y: 0, Width: 30, Height: 10}))
	reg, _ := m.Region()
	assert.Equal(t, 30.0, reg.Width)
	assert.Equal(t, 10.0, reg.Height)
	assert.Nil(t, reg.Ratio)
}

func TestClear_KeepsRatioLock(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRatio(ratioPtr(1)))
	m.Clear()

	_, ok := m.Region()
	assert.False(t, ok)
	r, locked := m.Ratio()
	assert.True(t, locked)
	assert.Equal(t, 1.0, r)
	assert.Equal(t, m.Bounds(), m.Effective())

	m.Reset()
	_, locked = m.Ratio()
	assert.False(t, locked)
}

func TestManager_CopyIsIndependent(t *testing.T) {
	m := newTestManager(t, 200, 100)
	require.NoError(t, m.SetRegion(Rect{X: 1, Y: 1, Width: 10, Height: 10}))

	snapshot := m
	require.NoError(t, m.SetRegion(Rect{X: 5, Y: 5, Width: 20, Height: 20}))

	reg, _ := snapshot.Region()
	assert.Equal(t, Rect{X: 1, Y: 1, Width: 10, Height: 10}, reg.Rect)
}

func TestCheckInvariants_StrictPanics(t *testing.T) {
	m := newTestManager(t, 100, 100)
	m.region = Rect{X: 90, Y: 0, Width: 50, Height: 10}
	m.hasRegion = true
	assert.Panics(t, func() { m.checkInvariants("test") })
}

func TestCheckInvariants_ClampRepairs(t *testing.T) {
	m, err := NewManager(100, 100, InvariantClamp)
	require.NoError(t, err)
	m.ratio, m.locked = 2, true
	m.region = Rect{X: 90, Y: 0, Width: 50, Height: 10}
	m.hasRegion = true

	m.checkInvariants("test")
	reg, _ := m.Region()
	assert.Equal(t, Rect{X: 80, Y: 0, Width: 20, Height: 10}, reg.Rect)
}

func TestManager_Mirror(t *testing.T) {
	m := newTestManager(t, 200, 100)
	m.Mirror(true, true)
	_, ok := m.Region()
	assert.False(t, ok, "mirroring an uncropped manager must not create a region")

	require.NoError(t, m.SetRatio(ratioPtr(1)))
	require.NoError(t, m.SetRegion(Rect{X: 10, Y: 20, Width: 50, Height: 50}))

	m.Mirror(true, false)
	reg, ok := m.Region()
	require.True(t, ok)
	assert.Equal(t, Rect{X: 140, Y: 20, Width: 50, Height: 50}, reg.Rect)
	require.NotNil(t, reg.Ratio)
	assert.Equal(t, 1.0, *reg.Ratio)

	m.Mirror(false, true)
	reg, _ = m.Region()
	assert.Equal(t, Rect{X: 140, Y: 30, Width: 50, Height: 50}, reg.Rect)

	m.Mirror(true, true)
	reg, _ = m.Region()
	assert.Equal(t, Rect{X: 10, Y: 20, Width: 50, Height: 50}, reg.Rect)
}
