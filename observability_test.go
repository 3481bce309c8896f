package rayknn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/resource"
)

func jsonLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogger_Build(t *testing.T) {
	var buf bytes.Buffer
	a := NewAccelerator(WithLogger(jsonLogger(&buf)))
	require.NoError(t, a.SetPoints(context.Background(), []geom.Vec3{geom.V(0, 0, 0), geom.V(1, 1, 1)}))

	recs := logRecords(t, &buf)
	require.NotEmpty(t, recs)
	last := recs[len(recs)-1]
	assert.Equal(t, "build completed", last["msg"])
	assert.Equal(t, "knn", last["component"])
	assert.Equal(t, float64(2), last["primitives"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf).WithComponent("test").WithK(5).WithCount(10)

	l.LogQuery(context.Background(), 5, 3, 2.5, nil)
	l.LogTrace(context.Background(), "trace", nil)
	l.LogTrace(context.Background(), "trace", ErrNotCommitted)
	l.LogSnapshot(context.Background(), "save", "pts", errors.New("boom"))

	recs := logRecords(t, &buf)
	require.Len(t, recs, 3)

	assert.Equal(t, "query completed", recs[0]["msg"])
	assert.Equal(t, "test", recs[0]["component"])
	assert.Equal(t, float64(10), recs[0]["count"])
	assert.Equal(t, float64(3), recs[0]["results"])

	assert.Equal(t, "trace rejected", recs[1]["msg"])
	assert.Equal(t, "WARN", recs[1]["level"])

	assert.Equal(t, "snapshot failed", recs[2]["msg"])
	assert.Equal(t, "boom", recs[2]["error"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestBasicMetricsCollector(t *testing.T) {
	ctx := context.Background()
	m := &BasicMetricsCollector{}
	a := NewAccelerator(WithMetricsCollector(m))
	c := NewQueryCache(4)

	require.NoError(t, a.SetPoints(ctx, []geom.Vec3{geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(2, 0, 0)}))
	_, err := a.KnnQuery(geom.Vec3{}, inf, 2, c)
	require.NoError(t, err)
	_, err = a.KnnQuery(geom.Vec3{}, -1, 2, c)
	require.ErrorIs(t, err, ErrInvalidRadius)

	m.RecordTrace(false, true)
	m.RecordTrace(false, false)
	m.RecordTrace(true, true)

	st := m.GetStats()
	assert.Equal(t, int64(1), st.BuildCount)
	assert.Equal(t, int64(3), st.BuildPrimitives)
	assert.Zero(t, st.BuildErrors)
	assert.Equal(t, int64(2), st.QueryCount)
	assert.Equal(t, int64(1), st.QueryErrors)
	assert.Equal(t, int64(2), st.QueryResults)
	assert.Equal(t, int64(2), st.RayCount)
	assert.Equal(t, int64(1), st.RayHits)
	assert.Equal(t, int64(1), st.ShadowRayCount)
	assert.Equal(t, int64(1), st.ShadowRayHits)

	m.RecordBuild(10, time.Second, errors.New("fail"))
	st = m.GetStats()
	assert.Equal(t, int64(1), st.BuildErrors)
	assert.Equal(t, int64(3), st.BuildPrimitives)
}

func TestNilOptions(t *testing.T) {
	a := NewAccelerator(WithMetricsCollector(nil), WithLogger(nil), nil)
	require.NoError(t, a.SetPoints(context.Background(), []geom.Vec3{geom.V(1, 2, 3)}))
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "invalid argument", ErrorInvalidArgument.String())
	assert.Equal(t, "invalid operation", ErrorInvalidOperation.String())
	assert.Equal(t, "out of memory", ErrorOutOfMemory.String())
	assert.Equal(t, "canceled", ErrorCanceled.String())
	assert.Equal(t, "unknown", ErrorCode(99).String())
}

func TestErrBuild_Unwrap(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1})
	a := NewAccelerator(WithResourceController(rc))

	err := a.SetPoints(context.Background(), []geom.Vec3{geom.V(0, 0, 0), geom.V(1, 1, 1)})
	var buildErr *ErrBuild
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 2, buildErr.Primitives)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Contains(t, err.Error(), "build over 2 primitives failed")
}
