// Package session drives one TCP connection's read loop against a
// protocol.Codec, generalizing the state machine every device family
// shares: AWAITING_LOGIN, ACTIVE, TERMINATED.
package session

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/quikmile/gpsingest/internal/bus"
	"github.com/quikmile/gpsingest/internal/logging"
	"github.com/quikmile/gpsingest/internal/metrics"
	"github.com/quikmile/gpsingest/internal/normalize"
	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

const readBufferSize = 4096

// Session owns one accepted connection for one protocol.Codec.
type Session struct {
	conn    net.Conn
	codec   protocol.Codec
	publish *bus.Publisher
	metrics *metrics.Registry
	log     zerolog.Logger

	awaitingLogin   bool
	imei            string
	frameIndex      int
	lastGPSTracking bool
	lastSerialNo    uint32
	hasLastSerialNo bool
}

// New creates a Session ready to Serve an accepted connection.
func New(conn net.Conn, codec protocol.Codec, publish *bus.Publisher, m *metrics.Registry, log zerolog.Logger) *Session {
	return &Session{
		conn:          conn,
		codec:         codec,
		publish:       publish,
		metrics:       m,
		log:           logging.ForConn(log, codec.Name(), conn.RemoteAddr().String()),
		awaitingLogin: true,
	}
}

// Serve runs the read loop until the connection is closed or a frame fails
// to decode. It always publishes exactly one OFFLINE event on exit, if the
// connection had identified itself with a valid IMEI first.
func (s *Session) Serve() {
	s.metrics.ConnectionsOpened.WithLabelValues(s.codec.Name()).Inc()
	buf := make([]byte, readBufferSize)

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info().Msg("connection closed by device")
			} else {
				s.log.Warn().Err(err).Msg("connection lost")
			}
			break
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if !s.handleFrame(data) {
			break
		}
	}

	s.terminate()
}

// handleFrame decodes and dispatches one frame. It returns false if the
// session should terminate (malformed frame, matching the source's
// behavior of exiting on any decode exception).
func (s *Session) handleFrame(data []byte) bool {
	frameIndex := s.frameIndex
	s.frameIndex++

	pkt, err := s.codec.Decode(data, protocol.Hint{LastGPSTracking: s.lastGPSTracking})
	if err != nil {
		s.metrics.FramesMalformed.WithLabelValues(s.codec.Name()).Inc()
		s.log.Error().Err(err).Msg("malformed frame")
		return false
	}
	s.metrics.FramesDecoded.WithLabelValues(s.codec.Name(), pkt.Kind.String()).Inc()

	if !pkt.HasSerialNo {
		pkt.SerialNo = uint32(frameIndex + 1)
		pkt.HasSerialNo = true
	}
	s.lastSerialNo, s.hasLastSerialNo = pkt.SerialNo, pkt.HasSerialNo

	wasAwaitingLogin := s.awaitingLogin

	if pkt.Kind == packet.KindLogin {
		s.imei = pkt.IMEI
		s.awaitingLogin = false
		s.log = logging.WithIMEI(s.log, s.imei)
	}
	if st := pkt.Status; st != nil {
		s.lastGPSTracking = st.GPSTracking
	}

	s.writeAck(pkt, frameIndex)

	if wasAwaitingLogin && pkt.Kind != packet.KindLogin {
		s.log.Warn().Str("opcode", pkt.Opcode).Msg("frame received before login, dropping")
		return true
	}

	s.publishRecords(pkt)
	return true
}

func (s *Session) writeAck(pkt *packet.Packet, frameIndex int) {
	if len(pkt.AckBytes) > 0 {
		if pkt.AckDelay > 0 {
			ackBytes, conn, log := pkt.AckBytes, s.conn, s.log
			time.AfterFunc(pkt.AckDelay, func() {
				// The connection may already be closed by the time this
				// fires; a failed write here is expected and swallowed.
				if _, err := conn.Write(ackBytes); err != nil {
					log.Debug().Err(err).Msg("delayed ack write failed")
				}
			})
		} else if _, err := s.conn.Write(pkt.AckBytes); err != nil {
			s.log.Warn().Err(err).Msg("ack write failed")
		}
	}

	if acker, ok := s.codec.(protocol.FrameIndexAcker); ok {
		if extra := acker.FrameIndexAck(s.imei, frameIndex); extra != nil {
			if _, err := s.conn.Write(extra); err != nil {
				s.log.Warn().Err(err).Msg("frame-index ack write failed")
			}
		}
	}
}

func (s *Session) publishRecords(pkt *packet.Packet) {
	recs := normalize.Build(pkt, s.imei, pkt.SerialNo, pkt.HasSerialNo)
	for _, ev := range recs.Events {
		s.publish.Publish(bus.TopicEvents, s.imei, ev)
	}
	if recs.Location != nil {
		s.publish.Publish(bus.TopicLocation, s.imei, recs.Location)
	}
	if recs.Status != nil {
		s.publish.Publish(bus.TopicStatus, s.imei, recs.Status)
	}
}

func (s *Session) terminate() {
	_ = s.conn.Close()
	s.metrics.ConnectionsClosed.WithLabelValues(s.codec.Name()).Inc()

	if s.imei != "" {
		s.publish.Publish(bus.TopicEvents, s.imei, normalize.Offline(s.imei, s.lastSerialNo, s.hasLastSerialNo))
	}
}
