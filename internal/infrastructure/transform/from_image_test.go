package transform

import (
	"context"
	"testing"
	"time"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageSample(t *testing.T, offset time.Duration, metadata map[string]string) metering.RawSample {
	t.Helper()
	return metering.RawSample{
		Timestamp:  at(t, offset),
		ResourceID: "vm-1",
		Volume:     decimal.NewFromInt(1),
		Metadata:   metadata,
	}
}

func TestFromImage_Transform(t *testing.T) {
	tr := &FromImage{opts: DefaultOptions()}
	meter := Meter{Name: "instance", Kind: KindFromImage, ServiceID: "storage.root"}
	label := testLabel(t)

	t.Run("bills the largest advertised root disk", func(t *testing.T) {
		samples := []metering.RawSample{
			imageSample(t, 10*time.Minute, map[string]string{"image_meta.min_disk": "10"}),
			imageSample(t, 30*time.Minute, map[string]string{"image_meta.min_disk": "40"}),
			imageSample(t, 50*time.Minute, map[string]string{"root_gb": "20"}),
		}

		usages, err := tr.Transform(context.Background(), meter, samples, label)

		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.Equal(t, metering.ServiceID("storage.root"), usages[0].ServiceID)
		assert.True(t, usages[0].Volume.Equal(decimal.NewFromInt(40)))
		assert.Equal(t, at(t, 10*time.Minute), usages[0].Start)
		assert.Equal(t, at(t, 50*time.Minute), usages[0].End)
	})

	t.Run("takes the larger of both size keys on one sample", func(t *testing.T) {
		samples := []metering.RawSample{
			imageSample(t, 10*time.Minute, map[string]string{
				"image_meta.min_disk": "10",
				"root_gb":             "25",
			}),
		}

		usages, err := tr.Transform(context.Background(), meter, samples, label)

		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.True(t, usages[0].Volume.Equal(decimal.NewFromInt(25)))
	})

	t.Run("none sentinel is skipped", func(t *testing.T) {
		samples := []metering.RawSample{
			imageSample(t, 10*time.Minute, map[string]string{"image_meta.min_disk": "none"}),
			imageSample(t, 30*time.Minute, map[string]string{"image_meta.min_disk": "8"}),
		}

		usages, err := tr.Transform(context.Background(), meter, samples, label)

		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.True(t, usages[0].Volume.Equal(decimal.NewFromInt(8)))
	})

	t.Run("nothing emitted when no positive size is seen", func(t *testing.T) {
		samples := []metering.RawSample{
			imageSample(t, 10*time.Minute, map[string]string{"image_meta.min_disk": "none"}),
			imageSample(t, 30*time.Minute, map[string]string{"image_meta.min_disk": "0"}),
		}

		usages, err := tr.Transform(context.Background(), meter, samples, label)

		require.NoError(t, err)
		assert.Empty(t, usages)
	})

	t.Run("unparseable size fails the window", func(t *testing.T) {
		samples := []metering.RawSample{
			imageSample(t, 10*time.Minute, map[string]string{"image_meta.min_disk": "forty"}),
		}

		_, err := tr.Transform(context.Background(), meter, samples, label)

		assert.Error(t, err)
	})

	t.Run("samples without size metadata are ignored", func(t *testing.T) {
		samples := []metering.RawSample{
			imageSample(t, 10*time.Minute, map[string]string{"display_name": "web-1"}),
			imageSample(t, 30*time.Minute, map[string]string{"image_meta.min_disk": "12"}),
		}

		usages, err := tr.Transform(context.Background(), meter, samples, label)

		require.NoError(t, err)
		require.Len(t, usages, 1)
		assert.True(t, usages[0].Volume.Equal(decimal.NewFromInt(12)))
	})

	t.Run("nothing emitted without in-window samples", func(t *testing.T) {
		samples := []metering.RawSample{
			imageSample(t, -30*time.Minute, map[string]string{"image_meta.min_disk": "10"}),
		}

		usages, err := tr.Transform(context.Background(), meter, samples, label)

		require.NoError(t, err)
		assert.Empty(t, usages)
	})
}
