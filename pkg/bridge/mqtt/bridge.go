package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/bridge"
	"github.com/robotalks/cirbuf/pkg/channel"
	"github.com/robotalks/cirbuf/pkg/framework"
)

// DefaultStatusInterval is how often channel status is published.
const DefaultStatusInterval = 5 * time.Second

// Meta is the retained device description published on MetaTopic.
type Meta struct {
	Device   string   `json:"device"`
	Channels []string `json:"channels"`
}

// MetaTopic is the retained topic announcing a device.
func MetaTopic(device string) string {
	return device + "/meta"
}

// StatusTopic is the retained topic of a channel's status.
func StatusTopic(device, channel string) string {
	return device + "/" + channel + "/status"
}

// NewDeviceQueue creates a Queue for device whose meta is cleared by the
// broker when the connection is lost.
func NewDeviceQueue(brokerURL, device string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+MetaTopic(device), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("cirbuf:" + device)
	}
	return NewQueue(opts, topicPrefix), nil
}

// Bridge publishes the frames of channels to MQTT and queues frames
// received from MQTT for transmission.
type Bridge struct {
	PubSub         PubSub
	Device         string
	Channels       []*channel.Channel
	StatusInterval time.Duration

	metaJSON []byte
}

// NewBridge creates a Bridge.
func NewBridge(ps PubSub, device string, channels []*channel.Channel) *Bridge {
	meta := Meta{Device: device}
	for _, ch := range channels {
		meta.Channels = append(meta.Channels, ch.Name())
	}
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}
	return &Bridge{
		PubSub:         ps,
		Device:         device,
		Channels:       channels,
		StatusInterval: DefaultStatusInterval,
		metaJSON:       metaJSON,
	}
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt:" + b.Device
}

// OnConnect republishes meta, used as Queue.OnConnect.
func (b *Bridge) OnConnect(*Queue) {
	// runs on the paho callback goroutine, publish asynchronously
	go func() {
		if err := b.PublishMeta(); err != nil {
			glog.Warningf("%s: %v", b.Name(), err)
		}
	}()
}

// PublishMeta announces the device.
func (b *Bridge) PublishMeta() error {
	return b.PubSub.Publish(MetaTopic(b.Device), b.metaJSON, 1, true)
}

// PublishStatus publishes the status of all channels.
func (b *Bridge) PublishStatus() error {
	var errs framework.AggregatedError
	for _, ch := range b.Channels {
		encoded, err := proto.Marshal(ch.Status())
		if err == nil {
			err = b.PubSub.Publish(StatusTopic(b.Device, ch.Name()), encoded, 0, true)
		}
		errs.Add(err)
	}
	return errs.Aggregate()
}

// AddToLoop implements framework.LoopAdder.
func (b *Bridge) AddToLoop(l *framework.Loop) {
	l.AddRunnable(b)
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if q, ok := b.PubSub.(*Queue); ok {
		if err := q.Connect(); err != nil {
			return errors.Wrap(err, b.Name())
		}
		defer q.Close()
	}
	if err := b.PublishMeta(); err != nil {
		return errors.Wrap(err, b.Name())
	}

	runner := framework.NewRunnerWith(ctx)
	var closers []io.Closer
	for _, ch := range b.Channels {
		rw := NewPacketReadWriter(b.PubSub).ForChannel(b.Device, ch.Name())
		if err := rw.Open(); err != nil {
			glog.Errorf("%s: channel %s: %v", b.Name(), ch.Name(), err)
			continue
		}
		sub := ch.Subscribe(0)
		closers = append(closers, sub)
		runner.Go(bridge.NewPump(b.Name()+"/"+ch.Name(), sub.C, ch, rw))
	}
	runner.Go(framework.RunFunc(b.statusLoop))

	err := runner.Wait()
	for _, c := range closers {
		c.Close()
	}
	if e := b.PubSub.Publish(MetaTopic(b.Device), nil, 1, true); e != nil {
		glog.Warningf("%s: clear meta: %v", b.Name(), e)
	}
	return err
}

func (b *Bridge) statusLoop(ctx context.Context) error {
	interval := b.StatusInterval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := b.PublishStatus(); err != nil {
			glog.Warningf("%s: publish status: %v", b.Name(), err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
