// Package web serves channel status and transmission over HTTP for the
// device configuration pages.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"

	"github.com/robotalks/cirbuf/pkg/bridge"
	wsbridge "github.com/robotalks/cirbuf/pkg/bridge/websocket"
	"github.com/robotalks/cirbuf/pkg/channel"
	"github.com/robotalks/cirbuf/pkg/cirbuf"
	pb "github.com/robotalks/cirbuf/pkg/proto/cirbuf/v1"
)

// MaxBodySize limits the size of a posted frame.
const MaxBodySize = 1 << 16

// Server exposes a channel registry over HTTP.
type Server struct {
	Addr     string
	Channels *channel.Registry
	// Metrics is served at /metrics when set.
	Metrics http.Handler

	router *mux.Router
}

// NewServer creates a Server.
func NewServer(addr string, channels *channel.Registry, metrics http.Handler) *Server {
	s := &Server{Addr: addr, Channels: channels, Metrics: metrics}
	r := mux.NewRouter()
	r.HandleFunc("/channels", s.listChannels).Methods(http.MethodGet)
	r.HandleFunc("/channels/{name}", s.withChannel(s.getChannel)).Methods(http.MethodGet)
	r.HandleFunc("/channels/{name}/tx", s.withChannel(s.postTx)).Methods(http.MethodPost)
	r.HandleFunc("/channels/{name}/ws", s.withChannel(s.serveWebsocket)).Methods(http.MethodGet)
	r.HandleFunc("/data.xml", s.dataXML).Methods(http.MethodGet)
	r.HandleFunc("/cmd.htm", s.postCmd).Methods(http.MethodPost)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	s.router = r
	return s
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "web"
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "web listen %s", s.Addr)
	}
	glog.Infof("web listening on %s", ln.Addr())
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return errors.Wrap(err, "web serve")
	}
}

func (s *Server) withChannel(fn func(http.ResponseWriter, *http.Request, *channel.Channel)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		ch, ok := s.Channels.Get(name)
		if !ok {
			http.Error(w, "channel not found: "+name, http.StatusNotFound)
			return
		}
		fn(w, r, ch)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("web: encode response: %v", err)
	}
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	chs := s.Channels.Channels()
	list := make([]*pb.ChannelStatus, 0, len(chs))
	for _, ch := range chs {
		list = append(list, ch.Status())
	}
	writeJSON(w, list)
}

func (s *Server) getChannel(w http.ResponseWriter, r *http.Request, ch *channel.Channel) {
	writeJSON(w, ch.Status())
}

// sendStatus maps errors of Channel.Send to HTTP status codes.
func sendStatus(err error) int {
	if err == nil {
		return http.StatusAccepted
	}
	switch cirbuf.StatusOf(err) {
	case cirbuf.StatusInvalidSize:
		return http.StatusRequestEntityTooLarge
	case cirbuf.StatusOverflow:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) send(w http.ResponseWriter, ch *channel.Channel, p []byte) {
	err := ch.Send(p)
	code := sendStatus(err)
	if err != nil {
		glog.V(2).Infof("web: send to %s: %v", ch.Name(), err)
		http.Error(w, err.Error(), code)
		return
	}
	w.WriteHeader(code)
}

func (s *Server) postTx(w http.ResponseWriter, r *http.Request, ch *channel.Channel) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > MaxBodySize {
		http.Error(w, "frame too large", http.StatusRequestEntityTooLarge)
		return
	}
	s.send(w, ch, body)
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request, ch *channel.Channel) {
	websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		sub := ch.Subscribe(0)
		defer sub.Close()
		pump := bridge.NewPump("ws:"+ch.Name()+":"+r.RemoteAddr, sub.C, ch, wsbridge.New(conn))
		if err := pump.Run(r.Context()); err != nil {
			glog.V(2).Infof("%s: %v", pump.Name(), err)
		}
	}).ServeHTTP(w, r)
}
