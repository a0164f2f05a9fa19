package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/cirbuf/pkg/bridge/mqtt"
	"github.com/robotalks/cirbuf/pkg/config"
	pb "github.com/robotalks/cirbuf/pkg/proto/cirbuf/v1"
)

var (
	mqttURL = "mqtt://localhost:1883/cirbuf/"
	send    string
)

func init() {
	if val := os.Getenv(config.EnvMQTTURL); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&send, "send", send, "DEVICE/CHANNEL to send the arguments to as a frame, then exit.")
}

func printMessage(topic string, payload []byte) {
	switch {
	case strings.HasSuffix(topic, "/meta"):
		if len(payload) == 0 {
			log.Printf("%s: offline", topic)
			return
		}
		log.Printf("%s: %s", topic, string(payload))
	case strings.HasSuffix(topic, "/status"):
		var st pb.ChannelStatus
		if err := proto.Unmarshal(payload, &st); err != nil {
			log.Printf("%s: bad status: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, st.String())
	case strings.HasSuffix(topic, "/rx"), strings.HasSuffix(topic, "/tx"):
		var f pb.Frame
		if err := proto.Unmarshal(payload, &f); err != nil {
			log.Printf("%s: bad frame: %v", topic, err)
			return
		}
		log.Printf("%s: #%d %q", topic, f.Seq, f.Data)
	default:
		log.Printf("%s: %d bytes", topic, len(payload))
	}
}

func sendFrame(q *mqtt.Queue, target string, data string) {
	tokens := strings.SplitN(target, "/", 2)
	if len(tokens) != 2 {
		log.Fatalf("invalid -send %q, DEVICE/CHANNEL expected", target)
	}
	rw := mqtt.NewPacketReadWriter(q).ForRemote(tokens[0], tokens[1])
	if err := rw.WritePacket([]byte(data)); err != nil {
		log.Fatalln(err)
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()

	if send != "" {
		sendFrame(q, send, strings.Join(flag.Args(), " "))
		return
	}

	if _, err := q.Subscribe("#", printMessage); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
