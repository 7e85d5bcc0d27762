package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crs-prediction-api/models"
)

func TestDisabledCache(t *testing.T) {
	cache := NewCacheServiceWithClient(nil)
	ctx := context.Background()

	assert.False(t, cache.Available())
	require.NoError(t, cache.Set(ctx, PredictionKey, models.PredictionReport{DataSource: "x"}, time.Minute))

	var report models.PredictionReport
	found, err := cache.Get(ctx, PredictionKey, &report)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, report.DataSource)

	assert.NoError(t, cache.Publish(ctx, ChannelPredictions, report))
	assert.Nil(t, cache.Subscribe(ctx, ChannelDraws))
	assert.NoError(t, cache.Delete(ctx, PredictionKey))
	assert.NoError(t, cache.Close())
}
