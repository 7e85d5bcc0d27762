package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"crs-prediction-api/logger"
	"crs-prediction-api/models"
	"crs-prediction-api/store"
)

// Announcement is a draw pushed over MQTT ahead of the IRCC JSON refresh.
type Announcement struct {
	Number      string `json:"number"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Score       int    `json:"score"`
	Invitations int    `json:"invitations"`
}

func ParseAnnouncement(payload []byte) (models.Draw, error) {
	var a Announcement
	if err := json.Unmarshal(payload, &a); err != nil {
		return models.Draw{}, fmt.Errorf("invalid payload: %w", err)
	}
	date, err := store.ParseTimestamp(strings.TrimSpace(a.Date))
	if err != nil {
		return models.Draw{}, fmt.Errorf("invalid payload: %w", err)
	}
	d := models.Draw{
		Number:            strings.TrimSpace(a.Number),
		Date:              date,
		Category:          strings.TrimSpace(a.Category),
		Score:             a.Score,
		InvitationsIssued: a.Invitations,
	}
	if err := ValidateDraw(d); err != nil {
		return models.Draw{}, err
	}
	return d, nil
}

// SubscribeAnnouncements connects to the broker and hands every valid
// announcement to handle. The client reconnects on its own; callers
// disconnect it on shutdown.
func SubscribeAnnouncements(ctx context.Context, brokerURL, topic string, log *logger.Logger, handle func(context.Context, models.Draw)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("crs-ingester-" + strconv.FormatInt(time.Now().Unix(), 10))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		d, err := ParseAnnouncement(msg.Payload())
		if err != nil {
			log.Warn("dropping announcement", "topic", msg.Topic(), "error", err)
			return
		}
		handle(ctx, d)
	})
	opts.OnConnect = func(c mqtt.Client) {
		token := c.Subscribe(topic, 1, nil)
		token.Wait()
		if token.Error() != nil {
			log.Error("mqtt subscribe failed", "topic", topic, "error", token.Error())
			return
		}
		log.Info("subscribed to announcements", "topic", topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}
