package stream

import (
	"context"
	"net"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/bridge"
	"github.com/robotalks/cirbuf/pkg/channel"
)

// Server bridges every accepted TCP connection to a channel.
type Server struct {
	Addr    string
	Channel *channel.Channel

	lock     sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewServer creates a Server.
func NewServer(addr string, ch *channel.Channel) *Server {
	return &Server{Addr: addr, Channel: ch, ready: make(chan struct{})}
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "tcp:" + s.Channel.Name()
}

// ListenAddr waits until the server listens and returns the address.
func (s *Server) ListenAddr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		s.lock.Lock()
		defer s.lock.Unlock()
		if s.listener == nil {
			return nil, errors.New("not listening")
		}
		return s.listener.Addr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	s.lock.Lock()
	s.listener = ln
	s.lock.Unlock()
	close(s.ready)
	if err != nil {
		return errors.Wrapf(err, "%s: listen", s.Name())
	}
	glog.Infof("%s: listening on %s", s.Name(), ln.Addr())

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "%s: accept", s.Name())
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	sub := s.Channel.Subscribe(0)
	defer sub.Close()
	pump := bridge.NewPump(s.Name()+":"+conn.RemoteAddr().String(), sub.C, s.Channel, New(conn))
	glog.V(2).Infof("%s: connected", pump.Name())
	err := pump.Run(ctx)
	glog.V(2).Infof("%s: disconnected: %v", pump.Name(), err)
}
