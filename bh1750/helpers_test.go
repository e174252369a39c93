package bh1750

import (
	"errors"
	"time"
)

var errBus = errors.New("bus error")

type recordingTransport struct {
	acks     map[uint16]bool
	writes   [][]byte
	reads    [][]byte
	probes   []uint16
	writeErr error
	failOn   byte // fail the write of this command when failNext is set
	failNext bool
	readErr  error
}

func newRecordingTransport(addrs ...uint16) *recordingTransport {
	rt := &recordingTransport{acks: map[uint16]bool{}}
	for _, a := range addrs {
		rt.acks[a] = true
	}
	return rt
}

func (rt *recordingTransport) Write(addr uint16, w []byte) error {
	if rt.writeErr != nil {
		return rt.writeErr
	}
	if rt.failNext && len(w) == 1 && w[0] == rt.failOn {
		rt.failNext = false
		return errBus
	}
	rt.writes = append(rt.writes, append([]byte(nil), w...))
	return nil
}

func (rt *recordingTransport) Read(addr uint16, r []byte) error {
	if rt.readErr != nil {
		return rt.readErr
	}
	if len(rt.reads) > 0 {
		copy(r, rt.reads[0])
		rt.reads = rt.reads[1:]
	}
	return nil
}

func (rt *recordingTransport) Probe(addr uint16) bool {
	rt.probes = append(rt.probes, addr)
	return rt.acks[addr]
}

func (rt *recordingTransport) queue(raw ...uint16) {
	for _, v := range raw {
		rt.reads = append(rt.reads, []byte{byte(v >> 8), byte(v)})
	}
}

// commands flattens single-byte writes
func (rt *recordingTransport) commands() []byte {
	var out []byte
	for _, w := range rt.writes {
		out = append(out, w...)
	}
	return out
}

func (rt *recordingTransport) clear() {
	rt.writes = nil
}

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *fakeClock) totalSlept() time.Duration {
	var total time.Duration
	for _, d := range c.slept {
		total += d
	}
	return total
}
