package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 0}

func solidFrame(t *testing.T, rows, cols int, gray float64, mt gocv.MatType) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gray, gray, gray, 0), rows, cols, mt)
	t.Cleanup(func() { m.Close() })
	return m
}

func fillRect(m *gocv.Mat, r image.Rectangle, c color.RGBA) {
	gocv.Rectangle(m, r, c, -1)
}

func preprocessed(t *testing.T, frame gocv.Mat) gocv.Mat {
	t.Helper()
	out, err := Preprocess(frame)
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })
	return out
}

func TestPreprocessKeepsSizeAndReturnsOneChannel(t *testing.T) {
	tests := []struct {
		name string
		mt   gocv.MatType
	}{
		{"bgr", gocv.MatTypeCV8UC3},
		{"bgra", gocv.MatTypeCV8UC4},
		{"gray", gocv.MatTypeCV8UC1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := solidFrame(t, 120, 160, 90, tt.mt)
			out := preprocessed(t, frame)

			assert.Equal(t, 120, out.Rows())
			assert.Equal(t, 160, out.Cols())
			assert.Equal(t, 1, out.Channels())
		})
	}
}

func TestPreprocessRejectsEmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	out, err := Preprocess(empty)
	defer out.Close()
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestScoreIdenticalFramesNeverRegisterMotion(t *testing.T) {
	frame := solidFrame(t, 120, 160, 128, gocv.MatTypeCV8UC3)
	fillRect(&frame, image.Rect(20, 20, 60, 60), white)
	gray := preprocessed(t, frame)

	for _, threshold := range []int{0, 1, 25, 80, 254, 255} {
		mask, err := Score(gray, gray, threshold)
		require.NoError(t, err)
		assert.False(t, HasMotion(mask), "threshold %d", threshold)
		assert.Equal(t, 0, MotionPixels(mask))
		mask.Close()
	}
}

func TestScoreIsMonotonicInThreshold(t *testing.T) {
	bg := solidFrame(t, 200, 200, 100, gocv.MatTypeCV8UC3)
	cur := solidFrame(t, 200, 200, 100, gocv.MatTypeCV8UC3)
	fillRect(&cur, image.Rect(10, 10, 60, 60), color.RGBA{R: 130, G: 130, B: 130})
	fillRect(&cur, image.Rect(80, 80, 130, 130), color.RGBA{R: 180, G: 180, B: 180})
	fillRect(&cur, image.Rect(140, 20, 190, 70), white)

	bgGray := preprocessed(t, bg)
	curGray := preprocessed(t, cur)

	prev := -1
	for threshold := 0; threshold <= 255; threshold += 5 {
		mask, err := Score(bgGray, curGray, threshold)
		require.NoError(t, err)
		count := MotionPixels(mask)
		mask.Close()

		if prev >= 0 {
			assert.LessOrEqual(t, count, prev, "threshold %d", threshold)
		}
		prev = count
	}
}

func TestScoreRejectsMismatchedFrames(t *testing.T) {
	a := preprocessed(t, solidFrame(t, 100, 100, 10, gocv.MatTypeCV8UC3))
	b := preprocessed(t, solidFrame(t, 100, 120, 10, gocv.MatTypeCV8UC3))

	mask, err := Score(a, b, 10)
	defer mask.Close()
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestScoreRejectsThresholdOutOfRange(t *testing.T) {
	a := preprocessed(t, solidFrame(t, 50, 50, 10, gocv.MatTypeCV8UC3))

	for _, threshold := range []int{-1, 256} {
		mask, err := Score(a, a, threshold)
		require.ErrorIs(t, err, ErrInvalidThreshold)
		mask.Close()
	}
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		boxes []types.Region
		want  types.Region
		ok    bool
	}{
		{
			name: "none",
			ok:   false,
		},
		{
			name:  "single box",
			boxes: []types.Region{{X: 5, Y: 7, W: 20, H: 30}},
			want:  types.Region{X: 5, Y: 7, W: 20, H: 30},
			ok:    true,
		},
		{
			// Tight union would be (0,0 55x55); max x/y combine with max w/h.
			name:  "heterogeneous boxes overshoot",
			boxes: []types.Region{{X: 0, Y: 0, W: 10, H: 10}, {X: 50, Y: 50, W: 5, H: 5}},
			want:  types.Region{X: 0, Y: 0, W: 60, H: 60},
			ok:    true,
		},
		{
			name:  "far corner from different boxes",
			boxes: []types.Region{{X: 10, Y: 40, W: 100, H: 5}, {X: 30, Y: 10, W: 5, H: 80}},
			want:  types.Region{X: 10, Y: 10, W: 120, H: 110},
			ok:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Envelope(tt.boxes)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateAbsentWhenNoRegionQualifies(t *testing.T) {
	mask := solidFrame(t, 100, 100, 0, gocv.MatTypeCV8UC1)
	fillRect(&mask, image.Rect(10, 10, 20, 20), white)
	fillRect(&mask, image.Rect(50, 50, 60, 60), white)

	_, ok := Aggregate(mask, 500)
	assert.False(t, ok)

	env, ok := Aggregate(mask, 50)
	require.True(t, ok)
	assert.Equal(t, 10, env.X)
	assert.Equal(t, 10, env.Y)
}

func TestAggregateBoxesWhiteSquare(t *testing.T) {
	bg := solidFrame(t, 480, 640, 128, gocv.MatTypeCV8UC3)
	cur := solidFrame(t, 480, 640, 128, gocv.MatTypeCV8UC3)
	square := image.Rect(200, 150, 250, 200)
	fillRect(&cur, square, white)

	mask, err := Score(preprocessed(t, bg), preprocessed(t, cur), 80)
	require.NoError(t, err)
	defer mask.Close()

	pixels := MotionPixels(mask)
	assert.InDelta(t, 2500, pixels, 600)

	env, ok := Aggregate(mask, 500)
	require.True(t, ok)
	assert.InDelta(t, square.Min.X, env.X, 5)
	assert.InDelta(t, square.Min.Y, env.Y, 5)
	assert.InDelta(t, square.Max.X, env.X+env.W, 5)
	assert.InDelta(t, square.Max.Y, env.Y+env.H, 5)
}

func TestDrawEnvelopeMarksFrame(t *testing.T) {
	frame := solidFrame(t, 100, 100, 0, gocv.MatTypeCV8UC3)
	DrawEnvelope(&frame, types.Region{X: 10, Y: 10, W: 50, H: 50})

	v := frame.GetVecbAt(10, 30)
	assert.Equal(t, uint8(0), v[0])
	assert.Equal(t, uint8(255), v[1])
	assert.Equal(t, uint8(0), v[2])
}
