package fireboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/joshp123/gohome-fireboard/internal/mqtt"
)

const manufacturer = "Fireboard Labs"

// Publisher bridges snapshots and service commands to MQTT using Home
// Assistant discovery.
type Publisher struct {
	broker   mqtt.Broker
	services *Services
	prefix   string
	base     string
	logger   *slog.Logger

	mu        sync.Mutex
	announced map[string]struct{}
}

func NewPublisher(broker mqtt.Broker, services *Services, topics mqtt.Topics, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		broker:    broker,
		services:  services,
		prefix:    strings.TrimRight(topics.DiscoveryPrefix, "/"),
		base:      strings.TrimRight(topics.Base, "/"),
		logger:    logger.With("component", "mqtt_publisher"),
		announced: make(map[string]struct{}),
	}
}

func (p *Publisher) commandTopic(name string) string {
	return p.base + "/cmd/" + name
}

// Start subscribes to the command topics. Handlers run with ctx.
func (p *Publisher) Start(ctx context.Context) error {
	commands := map[string]mqtt.MessageHandler{
		"create_alert": func(_ string, payload []byte) error {
			args, err := commandArgs(payload)
			if err != nil {
				return err
			}
			req, err := ParseCreateAlert(args)
			if err != nil {
				return err
			}
			_, err = p.services.CreateAlert(ctx, req)
			return err
		},
		"delete_alert": func(_ string, payload []byte) error {
			args, err := commandArgs(payload)
			if err != nil {
				return err
			}
			id, err := ParseAlertID(args)
			if err != nil {
				return err
			}
			return p.services.DeleteAlert(ctx, id)
		},
		"refresh": func(_ string, payload []byte) error {
			args, err := commandArgs(payload)
			if err != nil {
				return err
			}
			p.services.RefreshData(ctx, ParseDeviceID(args))
			return nil
		},
	}

	for name, handler := range commands {
		if err := p.broker.Subscribe(p.commandTopic(name), p.broker.QoS(), handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
	}
	p.logger.Info("listening for commands", "topic", p.base+"/cmd/#")
	return nil
}

// commandArgs decodes a JSON object payload. An empty payload is no arguments.
func commandArgs(payload []byte) (map[string]any, error) {
	args := map[string]any{}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, fmt.Errorf("%w: payload must be a json object", ErrInvalidArgument)
	}
	return args, nil
}

// Publish announces new entities and writes retained state for snap.
func (p *Publisher) Publish(snap Snapshot) error {
	var errs []error

	if err := p.announce("fireboard_api_status", "sensor", p.statusConfig()); err != nil {
		errs = append(errs, err)
	}
	if err := p.publishJSON(p.base+"/api_status", map[string]any{
		"status":     snap.APIStatus,
		"error":      snap.Error,
		"devices":    len(snap.Devices),
		"updated_at": snap.UpdatedAt,
	}); err != nil {
		errs = append(errs, err)
	}

	for _, d := range snap.Devices {
		infoID := "fireboard_" + topicID(d.ID) + "_info"
		if err := p.announce(infoID, "sensor", p.infoConfig(d)); err != nil {
			errs = append(errs, err)
		}
		if err := p.publishJSON(p.base+"/"+topicID(d.ID)+"/info", map[string]any{
			"id":       d.ID,
			"title":    d.Title,
			"uuid":     d.UUID,
			"model":    d.Model,
			"channels": len(d.Channels),
			"alerts":   len(d.Alerts),
		}); err != nil {
			errs = append(errs, err)
		}

		for _, ch := range d.Channels {
			slug := channelSlug(ch)
			if err := p.announce(sensorID(d, ch), "sensor", p.channelConfig(d, ch)); err != nil {
				errs = append(errs, err)
			}
			if err := p.publishJSON(p.base+"/"+topicID(d.ID)+"/"+slug+"/state", map[string]any{
				"temperature": ch.Temperature,
				"unit":        ch.Unit,
			}); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// announce publishes a retained discovery config once per entity until Reset.
func (p *Publisher) announce(objectID, component string, cfg map[string]any) error {
	p.mu.Lock()
	_, done := p.announced[objectID]
	p.mu.Unlock()
	if done {
		return nil
	}

	topic := fmt.Sprintf("%s/%s/%s/config", p.prefix, component, objectID)
	if err := p.publishJSON(topic, cfg); err != nil {
		return err
	}

	p.mu.Lock()
	p.announced[objectID] = struct{}{}
	p.mu.Unlock()
	return nil
}

// Reset forces discovery configs to be re-sent, e.g. after the broker restarts.
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.announced = make(map[string]struct{})
	p.mu.Unlock()
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := p.broker.Publish(topic, payload, p.broker.QoS(), true); err != nil {
		p.logger.Warn("publish failed", "topic", topic, "error", err)
		return err
	}
	return nil
}

func (p *Publisher) deviceBlock(d Device) map[string]any {
	return map[string]any{
		"identifiers":  []string{"fireboard_" + topicID(d.ID)},
		"name":         d.Title,
		"manufacturer": manufacturer,
		"model":        d.Model,
	}
}

func (p *Publisher) channelConfig(d Device, ch Channel) map[string]any {
	unit := "°F"
	if ch.Unit == UnitCelsius {
		unit = "°C"
	}
	return map[string]any{
		"name":                d.Title + " " + ch.Name,
		"unique_id":           sensorID(d, ch),
		"object_id":           sensorID(d, ch),
		"state_topic":         p.base + "/" + topicID(d.ID) + "/" + channelSlug(ch) + "/state",
		"value_template":      "{{ value_json.temperature }}",
		"unit_of_measurement": unit,
		"device_class":        "temperature",
		"state_class":         "measurement",
		"availability_topic":  mqtt.StatusTopic(p.base),
		"device":              p.deviceBlock(d),
	}
}

func (p *Publisher) infoConfig(d Device) map[string]any {
	id := "fireboard_" + topicID(d.ID) + "_info"
	return map[string]any{
		"name":                  d.Title + " Info",
		"unique_id":             id,
		"object_id":             id,
		"state_topic":           p.base + "/" + topicID(d.ID) + "/info",
		"value_template":        "{{ value_json.channels }}",
		"json_attributes_topic": p.base + "/" + topicID(d.ID) + "/info",
		"icon":                  "mdi:thermometer-lines",
		"entity_category":       "diagnostic",
		"availability_topic":    mqtt.StatusTopic(p.base),
		"device":                p.deviceBlock(d),
	}
}

func (p *Publisher) statusConfig() map[string]any {
	return map[string]any{
		"name":                  "Fireboard API Status",
		"unique_id":             "fireboard_api_status",
		"object_id":             "fireboard_api_status",
		"state_topic":           p.base + "/api_status",
		"value_template":        "{{ value_json.status }}",
		"json_attributes_topic": p.base + "/api_status",
		"icon":                  "mdi:cloud-check",
		"entity_category":       "diagnostic",
		"availability_topic":    mqtt.StatusTopic(p.base),
	}
}

func sensorID(d Device, ch Channel) string {
	return "fireboard_" + topicID(d.ID) + "_channel_" + channelSlug(ch)
}

// channelSlug prefers the channel number, which is stable across API shapes.
func channelSlug(ch Channel) string {
	if ch.Number > 0 {
		return strconv.Itoa(ch.Number)
	}
	return topicID(ch.Key())
}

var unsafeTopicChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// topicID makes an API id safe as a single MQTT topic level and object id.
func topicID(id string) string {
	return unsafeTopicChars.ReplaceAllString(id, "_")
}
