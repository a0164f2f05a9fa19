package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/bridge/mqtt"
	"github.com/robotalks/cirbuf/pkg/bridge/stream"
	"github.com/robotalks/cirbuf/pkg/channel"
	"github.com/robotalks/cirbuf/pkg/config"
	"github.com/robotalks/cirbuf/pkg/framework"
	"github.com/robotalks/cirbuf/pkg/metrics"
	"github.com/robotalks/cirbuf/pkg/serial"
	"github.com/robotalks/cirbuf/pkg/web"
)

var printConfig bool

func init() {
	config.SetupFlags()
	flag.BoolVar(&printConfig, "print-config", printConfig, "Print effective config and exit")
}

func main() {
	flag.Parse()
	conf := config.MustNewConfig()
	if printConfig {
		out, err := conf.Marshal()
		if err != nil {
			glog.Exit(err)
		}
		os.Stdout.Write(out)
		return
	}
	if err := run(conf); err != nil {
		glog.Exit(err)
	}
}

func run(conf *config.Config) error {
	channels, err := channel.NewRegistryFromConfig(conf.Channels)
	if err != nil {
		return err
	}
	if len(channels.Channels()) == 0 {
		return errors.New("no channel configured")
	}

	loop := framework.NewLoop()
	loop.Interval = conf.LoopInterval
	for _, ch := range channels.Channels() {
		if path := ch.Config.Device; path != "" {
			dev, err := serial.OpenDevice(path)
			if err != nil {
				return err
			}
			ch.Attach(dev)
		}
		if addr := ch.Config.Listen; addr != "" {
			loop.AddRunnable(stream.NewServer(addr, ch))
		}
	}
	loop.Add(channels)

	if conf.MQTTBrokerURL != "" {
		q, err := mqtt.NewDeviceQueue(conf.MQTTBrokerURL, conf.DeviceID)
		if err != nil {
			return err
		}
		b := mqtt.NewBridge(q, conf.DeviceID, channels.Channels())
		b.StatusInterval = conf.StatusInterval
		q.OnConnect = b.OnConnect
		loop.Add(b)
	}
	if conf.HTTPAddr != "" {
		reg := metrics.NewRegistry(channels)
		loop.AddRunnable(web.NewServer(conf.HTTPAddr, channels, metrics.Handler(reg)))
	}

	glog.Infof("device %s: %d channels", conf.DeviceID, len(channels.Channels()))
	err = framework.NewRunner().HandleSignals().Go(loop).Wait()
	if errors.Cause(err) == framework.ErrForcedExit {
		return nil
	}
	return err
}
