package bus

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Client carries AIS fixes in and predictions out over one NATS connection.
type Client struct {
	nc            *nats.Conn
	subjectPrefix string
	logSubjects   bool
	metrics       Metrics
}

type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSReceivedInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// Connect dials url. Predictions are published below subjectPrefix.
func Connect(url, subjectPrefix string, logSubjects bool, m Metrics) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("vessel-tracker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected url=%s", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &Client{nc: nc, subjectPrefix: subjectPrefix, logSubjects: logSubjects, metrics: m}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
		c.nc.Close()
	}
}

// Connected reports whether the connection is currently usable.
func (c *Client) Connected() bool { return c.nc != nil && c.nc.IsConnected() }

// SubscribeFixes delivers every raw message on subject to handle. handle runs
// on the NATS dispatch goroutine and must not block.
func (c *Client) SubscribeFixes(subject string, handle func(data []byte)) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		if c.metrics != nil {
			c.metrics.NATSReceivedInc()
		}
		handle(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	log.Printf("nats subscribed subject=%s", subject)
	return sub, nil
}

// PublishPrediction sends msg to <prefix>.<mmsi>.
func (c *Client) PublishPrediction(msg PredictionMessage) error {
	subject := PredictionSubject(c.subjectPrefix, msg.MMSI)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if c.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = c.nc.Publish(subject, b)
	if c.metrics != nil {
		c.metrics.PublishObserve(time.Since(start))
		if err != nil {
			c.metrics.NATSPublishErrInc()
		} else {
			c.metrics.NATSPublishedInc()
		}
	}
	return err
}

func PredictionSubject(prefix, mmsi string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return subjectToken(mmsi)
	}
	return fmt.Sprintf("%s.%s", prefix, subjectToken(mmsi))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
