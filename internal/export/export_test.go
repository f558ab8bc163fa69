package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
)

// fakeService scripts DownloadURL responses per attempted scale
type fakeService struct {
	rejectBelow int   // scales below this are rejected for size
	failWith    error // non-nil: every DownloadURL call fails with this
	fetchErr    error

	scales   []int // scales attempted, in order
	payload  []byte
	requests []compute.DownloadRequest
}

func (f *fakeService) DownloadURL(_ context.Context, req compute.DownloadRequest) (string, error) {
	f.scales = append(f.scales, req.ScaleM)
	f.requests = append(f.requests, req)
	if f.failWith != nil {
		return "", f.failWith
	}
	if req.ScaleM < f.rejectBelow {
		return "", fmt.Errorf("%w: at scale %d", compute.ErrRequestTooLarge, req.ScaleM)
	}
	return fmt.Sprintf("https://example/%d", req.ScaleM), nil
}

func (f *fakeService) Fetch(context.Context, string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.payload, nil
}

var testRegion = json.RawMessage(`{"type":"Polygon","coordinates":[]}`)

func TestExport(t *testing.T) {
	img := imagery.Constant(1)

	t.Run("first attempt succeeds at base scale", func(t *testing.T) {
		svc := &fakeService{payload: []byte("tiff")}
		e := New(svc, Config{}, nil)

		data, err := e.Export(context.Background(), img, testRegion, compute.FormatGeoTIFF, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("tiff"), data)
		assert.Equal(t, []int{10}, svc.scales)
	})

	t.Run("escalates by fixed steps until accepted", func(t *testing.T) {
		svc := &fakeService{rejectBelow: 40, payload: []byte("tiff")}
		e := New(svc, Config{}, nil)

		data, err := e.Export(context.Background(), img, testRegion, compute.FormatGeoTIFF, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		assert.Equal(t, []int{10, 25, 40}, svc.scales)
	})

	t.Run("gives up at the scale bound", func(t *testing.T) {
		svc := &fakeService{rejectBelow: 10000}
		e := New(svc, Config{}, nil)

		_, err := e.Export(context.Background(), img, testRegion, compute.FormatGeoTIFF, nil)
		assert.ErrorIs(t, err, ErrRegionTooLarge)

		// attempts are bounded: 10, 25, ..., 145
		assert.Len(t, svc.scales, 10)
		assert.Equal(t, 145, svc.scales[len(svc.scales)-1])
	})

	t.Run("non-size failure aborts immediately", func(t *testing.T) {
		svc := &fakeService{failWith: errors.New("boom")}
		e := New(svc, Config{}, nil)

		_, err := e.Export(context.Background(), img, testRegion, compute.FormatGeoTIFF, nil)
		assert.ErrorIs(t, err, ErrExportFailed)
		assert.Len(t, svc.scales, 1)
	})

	t.Run("fetch failure aborts immediately", func(t *testing.T) {
		svc := &fakeService{fetchErr: errors.New("connection reset")}
		e := New(svc, Config{}, nil)

		_, err := e.Export(context.Background(), img, testRegion, compute.FormatGeoTIFF, nil)
		assert.ErrorIs(t, err, ErrExportFailed)
	})

	t.Run("custom scale parameters", func(t *testing.T) {
		svc := &fakeService{rejectBelow: 10000}
		e := New(svc, Config{BaseScaleM: 20, ScaleStepM: 30, MaxScaleM: 90}, nil)

		_, err := e.Export(context.Background(), img, testRegion, compute.FormatGeoTIFF, nil)
		assert.ErrorIs(t, err, ErrRegionTooLarge)
		assert.Equal(t, []int{20, 50, 80}, svc.scales)
	})
}

func TestExportBand(t *testing.T) {
	svc := &fakeService{payload: []byte("tiff")}
	e := New(svc, Config{}, nil)

	img := imagery.Placeholder().Select("ndvi", "nbr")
	_, err := e.ExportBand(context.Background(), img, testRegion, "ndvi")
	require.NoError(t, err)

	req := svc.requests[0]
	assert.Equal(t, compute.FormatGeoTIFF, req.Format)
	assert.Equal(t, []string{"ndvi"}, req.Bands)
	assert.Equal(t, "select", req.Expression.Op)
}

func TestExportVisual(t *testing.T) {
	svc := &fakeService{payload: []byte("jpeg")}
	e := New(svc, Config{}, nil)

	img := imagery.Constant(1).Visualize(imagery.VisParams{Max: 4, Palette: []string{"00FF00"}})
	data, err := e.ExportVisual(context.Background(), img, testRegion, compute.FormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	req := svc.requests[0]
	assert.Equal(t, compute.FormatJPEG, req.Format)
	assert.Nil(t, req.Bands)
}
