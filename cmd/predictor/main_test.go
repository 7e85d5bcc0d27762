package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"crs-prediction-api/logger"
	"crs-prediction-api/models"
	"crs-prediction-api/services"
	"crs-prediction-api/store"
)

type stubSource struct {
	report *models.PredictionReport
	err    error
}

func (s stubSource) Predict(ctx context.Context) (*models.PredictionReport, error) {
	return s.report, s.err
}

type recordingSink struct {
	keys       []string
	ttls       []time.Duration
	channels   []string
	setErr     error
	publishErr error
}

func (r *recordingSink) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	r.keys = append(r.keys, key)
	r.ttls = append(r.ttls, ttl)
	return r.setErr
}

func (r *recordingSink) Publish(ctx context.Context, channel string, message interface{}) error {
	if r.publishErr != nil {
		return r.publishErr
	}
	r.channels = append(r.channels, channel)
	return nil
}

func testReport() *models.PredictionReport {
	return &models.PredictionReport{
		ForecastSource: "fallback",
		Predictions: map[string]models.Prediction{
			"PNP": {Category: "PNP", CutoffLow: 700, CutoffHigh: 750},
		},
	}
}

func TestRunCyclePublishes(t *testing.T) {
	sink := &recordingSink{}
	w := &worker{svc: stubSource{report: testReport()}, out: sink, ttl: 30 * time.Minute, log: logger.Nop()}

	if ok := w.runCycle(context.Background(), triggerTicker); !ok {
		t.Fatal("runCycle() = false, want true")
	}
	if len(sink.keys) != 1 || sink.keys[0] != services.PredictionKey {
		t.Errorf("keys = %v, want [%s]", sink.keys, services.PredictionKey)
	}
	if sink.ttls[0] != 30*time.Minute {
		t.Errorf("ttl = %s, want 30m", sink.ttls[0])
	}
	if len(sink.channels) != 1 || sink.channels[0] != services.ChannelPredictions {
		t.Errorf("channels = %v, want [%s]", sink.channels, services.ChannelPredictions)
	}
}

func TestRunCycleSkipsPublishOnFailure(t *testing.T) {
	sink := &recordingSink{}
	err := fmt.Errorf("%w: no draws recorded", store.ErrDataUnavailable)
	w := &worker{svc: stubSource{err: err}, out: sink, log: logger.Nop()}

	if ok := w.runCycle(context.Background(), triggerDraws); ok {
		t.Fatal("runCycle() = true, want false")
	}
	if len(sink.keys) != 0 || len(sink.channels) != 0 {
		t.Errorf("sink written on failure: keys=%v channels=%v", sink.keys, sink.channels)
	}
}

func TestRunCycleCacheWriteFailureStillPublishes(t *testing.T) {
	sink := &recordingSink{setErr: errors.New("OOM command not allowed")}
	w := &worker{svc: stubSource{report: testReport()}, out: sink, log: logger.Nop()}

	if ok := w.runCycle(context.Background(), triggerStartup); !ok {
		t.Fatal("runCycle() = false, want true")
	}
	if len(sink.channels) != 1 {
		t.Errorf("channels = %v, want one publish", sink.channels)
	}
}

func TestRunCyclePublishFailure(t *testing.T) {
	sink := &recordingSink{publishErr: errors.New("connection reset")}
	w := &worker{svc: stubSource{report: testReport()}, out: sink, log: logger.Nop()}

	if ok := w.runCycle(context.Background(), triggerTicker); ok {
		t.Fatal("runCycle() = true, want false")
	}
}
