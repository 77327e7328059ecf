package systems

import (
	"fmt"

	"github.com/pthm-cable/forage/components"
)

// BusMode selects when a robot's broadcast becomes visible to readers.
type BusMode uint8

const (
	// BusSequential keeps a single slot per robot. A robot processed later
	// in the pass already sees what earlier robots emitted this tick, while
	// earlier robots see later robots' messages from the previous tick.
	BusSequential BusMode = iota
	// BusDoubleBuffered makes every read see only the previous tick.
	BusDoubleBuffered
)

func (m BusMode) String() string {
	switch m {
	case BusSequential:
		return "sequential"
	case BusDoubleBuffered:
		return "double_buffered"
	default:
		return fmt.Sprintf("BusMode(%d)", m)
	}
}

// ParseBusMode parses the names produced by String.
func ParseBusMode(s string) (BusMode, error) {
	switch s {
	case "", "sequential":
		return BusSequential, nil
	case "double_buffered", "double-buffered":
		return BusDoubleBuffered, nil
	default:
		return BusSequential, fmt.Errorf("unknown bus mode %q", s)
	}
}

type busSlot struct {
	msg components.Message
	ok  bool
}

// MessageBus holds the latest broadcast of every robot slot. Emitting
// overwrites the slot; there is no history.
type MessageBus struct {
	mode  BusMode
	read  []busSlot
	write []busSlot // aliases read in sequential mode
}

// NewMessageBus creates a bus with n empty slots.
func NewMessageBus(mode BusMode, n int) *MessageBus {
	b := &MessageBus{mode: mode}
	b.Resize(n)
	return b
}

// Mode returns the visibility mode.
func (b *MessageBus) Mode() BusMode {
	return b.mode
}

// Resize sets the number of slots. Slots at or beyond n are purged, so a
// robot dropped by a shrink cannot leave a stale message behind.
func (b *MessageBus) Resize(n int) {
	b.read = resizeSlots(b.read, n)
	if b.mode == BusSequential {
		b.write = b.read
		return
	}
	b.write = resizeSlots(b.write, n)
}

func resizeSlots(s []busSlot, n int) []busSlot {
	if n < len(s) {
		clear(s[n:])
		return s[:n]
	}
	for len(s) < n {
		s = append(s, busSlot{})
	}
	return s
}

// Purge forgets the message of one slot.
func (b *MessageBus) Purge(slot int) {
	if slot < 0 || slot >= len(b.read) {
		return
	}
	b.read[slot] = busSlot{}
	b.write[slot] = busSlot{}
}

// BeginTick publishes last tick's writes in double-buffered mode.
// It is a no-op in sequential mode.
func (b *MessageBus) BeginTick() {
	if b.mode != BusDoubleBuffered {
		return
	}
	b.read, b.write = b.write, b.read
	clear(b.write)
}

// Emit stores msg as the latest broadcast of slot.
func (b *MessageBus) Emit(slot int, msg components.Message) {
	if slot < 0 || slot >= len(b.write) {
		return
	}
	b.write[slot] = busSlot{msg: msg, ok: true}
}

// Message returns the broadcast currently visible for slot.
func (b *MessageBus) Message(slot int) (components.Message, bool) {
	if slot < 0 || slot >= len(b.read) {
		return components.Message{}, false
	}
	s := b.read[slot]
	return s.msg, s.ok
}

// Len returns the number of slots with a visible message.
func (b *MessageBus) Len() int {
	n := 0
	for _, s := range b.read {
		if s.ok {
			n++
		}
	}
	return n
}
