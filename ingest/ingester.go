package ingest

import (
	"context"
	"fmt"
	"time"

	"crs-prediction-api/logger"
	"crs-prediction-api/metrics"
	"crs-prediction-api/models"
)

// Source yields the current draw list and how many raw rounds it could not
// convert.
type Source interface {
	Fetch(ctx context.Context) ([]models.Draw, int, error)
}

// Publisher is the part of services.CacheService the ingester needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// DrawsEvent is published after new draws land in the sink.
type DrawsEvent struct {
	Origin string      `json:"origin"`
	Added  int         `json:"added"`
	Latest models.Draw `json:"latest"`
	At     time.Time   `json:"at"`
}

type Result struct {
	Received int
	Rejected int
	Stored   int
}

type Ingester struct {
	source  Source
	sink    Sink
	pub     Publisher
	channel string
	log     *logger.Logger
}

// NewIngester wires a source to a sink. pub may be nil.
func NewIngester(source Source, sink Sink, pub Publisher, channel string, log *logger.Logger) *Ingester {
	if log == nil {
		log = logger.Nop()
	}
	return &Ingester{source: source, sink: sink, pub: pub, channel: channel, log: log}
}

// RunOnce fetches from the source and stores whatever is new.
func (i *Ingester) RunOnce(ctx context.Context) (Result, error) {
	draws, skipped, err := i.source.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	if skipped > 0 {
		metrics.DrawsFailed.Add(float64(skipped))
		i.log.Warn("skipped unusable rounds", "count", skipped)
	}
	res, err := i.Ingest(ctx, "ircc", draws)
	res.Rejected += skipped
	res.Received += skipped
	return res, err
}

// Ingest validates draws, appends them to the sink and announces the
// result when anything was added.
func (i *Ingester) Ingest(ctx context.Context, origin string, draws []models.Draw) (Result, error) {
	metrics.DrawsReceived.Add(float64(len(draws)))
	res := Result{Received: len(draws)}

	valid, errs := Partition(draws)
	for _, err := range errs {
		i.log.Warn("rejected draw", "origin", origin, "error", err)
	}
	res.Rejected = len(errs)
	metrics.DrawsFailed.Add(float64(len(errs)))

	if len(valid) == 0 {
		return res, nil
	}

	added, err := i.sink.SaveDraws(ctx, valid)
	if err != nil {
		metrics.DrawsFailed.Add(float64(len(valid)))
		return res, fmt.Errorf("store draws: %w", err)
	}
	res.Stored = added
	metrics.DrawsStored.Add(float64(added))

	i.log.Info("ingested draws", "origin", origin, "received", res.Received, "stored", added, "rejected", res.Rejected)

	if added > 0 && i.pub != nil {
		event := DrawsEvent{Origin: origin, Added: added, Latest: latest(valid), At: time.Now().UTC()}
		if err := i.pub.Publish(ctx, i.channel, event); err != nil {
			i.log.Warn("publish draws event failed", "channel", i.channel, "error", err)
		}
	}
	return res, nil
}

// HandleAnnouncement stores a single MQTT draw.
func (i *Ingester) HandleAnnouncement(ctx context.Context, d models.Draw) {
	if _, err := i.Ingest(ctx, "mqtt", []models.Draw{d}); err != nil {
		i.log.Error("store announcement failed", "number", d.Number, "error", err)
	}
}

func latest(draws []models.Draw) models.Draw {
	best := draws[0]
	for _, d := range draws[1:] {
		if d.Date.After(best.Date) {
			best = d
		}
	}
	return best
}
