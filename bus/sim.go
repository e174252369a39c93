package bus

import (
	"errors"
	"math"
	"sync"
)

// ErrNoAck is returned by Sim for addresses no simulated device answers on.
var ErrNoAck = errors.New("no acknowledgement from device")

// Command is one write recorded by Sim.
type Command struct {
	Addr uint16
	Data []byte
}

// Sim is an in-memory BH1750 on a bus. It records every write, tracks the
// measurement time register from the commands it receives and answers reads
// with the simulated illuminance, or with queued raw values when present.
type Sim struct {
	mu       sync.Mutex
	lux      float64
	acks     map[uint16]bool
	written  []Command
	queued   []uint16
	mtHigh   byte
	mtLow    byte
	mode     byte
	WriteErr error
	ReadErr  error
}

// NewSim returns a simulated sensor lit with lux, answering on addrs.
func NewSim(lux float64, addrs ...uint16) *Sim {
	s := &Sim{
		lux:    lux,
		acks:   make(map[uint16]bool),
		mtHigh: 69 >> 5,
		mtLow:  69 & 0x1F,
		mode:   0x10,
	}
	for _, a := range addrs {
		s.acks[a] = true
	}
	return s
}

func (s *Sim) Write(addr uint16, w []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}
	if !s.acks[addr] {
		return ErrNoAck
	}
	data := append([]byte(nil), w...)
	s.written = append(s.written, Command{Addr: addr, Data: data})
	for _, b := range data {
		switch {
		case b&0xF8 == 0x40:
			s.mtHigh = b & 0x07
		case b&0xE0 == 0x60:
			s.mtLow = b & 0x1F
		case b&0xF0 == 0x10, b&0xF0 == 0x20:
			s.mode = b
		}
	}
	return nil
}

func (s *Sim) Read(addr uint16, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReadErr != nil {
		return s.ReadErr
	}
	if !s.acks[addr] {
		return ErrNoAck
	}
	var raw uint16
	if len(s.queued) > 0 {
		raw = s.queued[0]
		s.queued = s.queued[1:]
	} else {
		raw = s.rawLocked()
	}
	if len(r) > 0 {
		r[0] = byte(raw >> 8)
	}
	if len(r) > 1 {
		r[1] = byte(raw)
	}
	return nil
}

func (s *Sim) Probe(addr uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acks[addr]
}

// raw count for the simulated illuminance at the current register settings
func (s *Sim) rawLocked() uint16 {
	mtreg := float64(int(s.mtHigh)<<5 | int(s.mtLow))
	counts := s.lux * 1.2 * mtreg / 69.0
	if s.mode&0x0F == 0x01 {
		counts *= 2
	}
	if counts >= math.MaxUint16 {
		return math.MaxUint16
	}
	if counts < 0 {
		return 0
	}
	return uint16(math.Round(counts))
}

// SetLux changes the simulated illuminance.
func (s *Sim) SetLux(lux float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lux = lux
}

// QueueRaw makes the next reads return the given raw values in order.
func (s *Sim) QueueRaw(values ...uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, values...)
}

// Written returns every write recorded so far.
func (s *Sim) Written() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.written...)
}

// Bytes flattens the recorded writes into the command bytes sent.
func (s *Sim) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, c := range s.written {
		out = append(out, c.Data...)
	}
	return out
}

// ClearWritten forgets the recorded writes.
func (s *Sim) ClearWritten() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = nil
}

// MTreg is the register value rebuilt from the commands received.
func (s *Sim) MTreg() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.mtHigh)<<5 | int(s.mtLow)
}

func (s *Sim) Close() error {
	return nil
}
