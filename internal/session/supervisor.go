package session

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/quikmile/gpsingest/internal/bus"
	"github.com/quikmile/gpsingest/internal/metrics"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

// Supervisor starts one isolated accept loop per enabled protocol. A panic
// or bind failure in one protocol's worker never reaches another's: this is
// the Go mapping of the source's OS-process-per-protocol isolation.
type Supervisor struct {
	registry *protocol.Registry
	publish  *bus.Publisher
	metrics  *metrics.Registry
	log      zerolog.Logger
}

// NewSupervisor builds a Supervisor over the given codec registry.
func NewSupervisor(reg *protocol.Registry, publish *bus.Publisher, m *metrics.Registry, log zerolog.Logger) *Supervisor {
	return &Supervisor{registry: reg, publish: publish, metrics: m, log: log}
}

// Run starts a worker goroutine for every codec named in protocols and
// blocks forever. Listen errors are logged and that protocol's worker
// simply never accepts connections; it does not bring down the others.
func (s *Supervisor) Run(protocols []string) {
	done := make(chan struct{})
	for _, name := range protocols {
		codec, ok := s.registry.Get(name)
		if !ok {
			s.log.Warn().Str("protocol", name).Msg("unknown protocol, skipping")
			continue
		}
		go s.runWorker(codec)
	}
	<-done
}

func (s *Supervisor) runWorker(codec protocol.Codec) {
	addr := fmt.Sprintf("0.0.0.0:%d", codec.Port())
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error().Err(err).Str("protocol", codec.Name()).Str("addr", addr).Msg("failed to bind listener")
		return
	}
	defer ln.Close()

	s.log.Info().Str("protocol", codec.Name()).Str("addr", addr).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.log.Error().Err(err).Str("protocol", codec.Name()).Msg("accept failed")
			continue
		}
		go s.serve(codec, conn)
	}
}

// serve runs a single Session with panic recovery, so a bug decoding one
// device's frame cannot take its protocol's listener down with it.
func (s *Supervisor) serve(codec protocol.Codec, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("protocol", codec.Name()).
				Str("remote_addr", conn.RemoteAddr().String()).Msg("session panicked")
			_ = conn.Close()
		}
	}()

	sess := New(conn, codec, s.publish, s.metrics, s.log)
	sess.Serve()
}
