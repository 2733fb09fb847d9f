// Package protocol defines the codec contract every device family
// implements and a registry the supervisor uses to look codecs up by name.
package protocol

import (
	"fmt"
	"sync"

	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
)

// Hint carries the small amount of session-owned state a codec needs to
// reproduce device-specific quirks that depend on a prior frame rather
// than the current one (GT06's location frames report the gps_tracking
// flag from the most recent status frame, not from their own bits).
// Codecs that don't need it simply ignore the field.
type Hint struct {
	LastGPSTracking bool
}

// Codec decodes one device family's wire format. The server reads up to
// 4096 bytes per socket read and treats each read as exactly one frame;
// a read that splits a frame across TCP segments is the codec's problem
// to reject as malformed, not to reassemble.
type Codec interface {
	// Name is the device family name, e.g. "et300".
	Name() string

	// Port is the fixed TCP port this protocol listens on.
	Port() int

	// Decode parses a single frame. It returns the sentinel/wrapped errors
	// in pkg/gpsingest/packet (see packet.IsMalformed) on any structural
	// failure: bad markers, length mismatch, or bad checksum.
	Decode(data []byte, hint Hint) (*packet.Packet, error)
}

// FrameIndexAcker is implemented by codecs that need to send an extra
// acknowledgement keyed by a connection's ordinal frame position rather
// than by the current frame's opcode (TK103's request-interval configuration
// frames, sent after the 2nd and 3rd inbound frames regardless of their
// content). frameIndex is zero-based. Codecs that don't need this simply
// don't implement the interface.
type FrameIndexAcker interface {
	FrameIndexAck(imei string, frameIndex int) []byte
}

// Registry maps protocol names to codecs, the way the supervisor enables
// a configurable subset of the six device families.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds a codec. Returns an error if the name is already registered.
func (r *Registry) Register(c Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.codecs[name]; exists {
		return fmt.Errorf("protocol %q already registered", name)
	}
	r.codecs[name] = c
	return nil
}

// MustRegister adds a codec and panics if registration fails.
func (r *Registry) MustRegister(c Codec) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Get returns the codec registered under name, if any.
func (r *Registry) Get(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	return c, ok
}

// List returns the names of all registered codecs.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	return names
}

// All returns every registered codec.
func (r *Registry) All() []Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Codec, 0, len(r.codecs))
	for _, c := range r.codecs {
		out = append(out, c)
	}
	return out
}
