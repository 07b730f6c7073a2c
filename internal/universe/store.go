// Package universe owns the DMX output of every active universe and decides
// when each one has to be sent again.
package universe

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"artnetctl/internal/packet"
)

// DefaultStalenessWindow is the keep-alive period of a universe.
const DefaultStalenessWindow = 4 * time.Second

// ErrUnknownUniverse is returned for operations on a universe without data.
var ErrUnknownUniverse = errors.New("unknown universe")

type record struct {
	builder      *packet.DMXBuilder
	updated      time.Time
	gen          uint64
	destinations map[string]*net.UDPAddr
}

// Due is a universe the scheduler has to send on this tick.
type Due struct {
	Key          Key
	Packet       *packet.DMX
	Destinations []*net.UDPAddr // empty means broadcast
	gen          uint64
}

// Info is a read-only view of a universe.
type Info struct {
	Key          Key
	Data         []byte
	Updated      time.Time
	LastSent     time.Time
	Destinations []*net.UDPAddr
}

// Store holds the universes and their staleness index.
type Store struct {
	mu       sync.Mutex
	window   time.Duration
	sequence bool
	records  map[Key]*record
	// lastSent is the staleness index. The zero time means due right now.
	lastSent map[Key]time.Time
	// gen is store-wide so a recreated universe never reuses a generation.
	gen uint64
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithStalenessWindow sets the keep-alive period.
func WithStalenessWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithSequence numbers every frame 1..255.
func WithSequence(on bool) Option {
	return func(s *Store) {
		s.sequence = on
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore конструктор.
func NewStore(opts ...Option) *Store {
	s := &Store{
		window:   DefaultStalenessWindow,
		records:  make(map[Key]*record),
		lastSent: make(map[Key]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StalenessWindow returns the keep-alive period.
func (s *Store) StalenessWindow() time.Duration { return s.window }

// SetUniverseData replaces the output of a universe and makes it due at the
// next tick. Nil or empty data removes the universe.
func (s *Store) SetUniverseData(net, subnet, universe int, data []byte) error {
	k, err := NewKey(net, subnet, universe)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		s.Remove(k)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[k]
	r, err := s.record(k)
	if err != nil {
		return err
	}
	if err := r.builder.SetData(data); err != nil {
		if !existed {
			delete(s.records, k)
		}
		return err
	}
	s.touch(k, r)
	return nil
}

// SetChannel writes one slot of a universe, creating it when needed.
func (s *Store) SetChannel(net, subnet, universe, channel int, value byte) error {
	k, err := NewKey(net, subnet, universe)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[k]
	r, err := s.record(k)
	if err != nil {
		return err
	}
	if err := r.builder.SetChannel(channel, value); err != nil {
		if !existed {
			delete(s.records, k)
		}
		return err
	}
	s.touch(k, r)
	return nil
}

// record returns the universe, creating an empty one. Caller holds mu.
func (s *Store) record(k Key) (*record, error) {
	if r, ok := s.records[k]; ok {
		return r, nil
	}
	b := packet.NewDMXBuilder()
	if err := b.SetNet(k.Net()); err != nil {
		return nil, err
	}
	if err := b.SetSubNet(k.SubNet()); err != nil {
		return nil, err
	}
	if err := b.SetUniverse(k.Universe()); err != nil {
		return nil, err
	}
	r := &record{builder: b}
	s.records[k] = r
	return r, nil
}

// touch marks a changed universe maximally stale. Caller holds mu.
func (s *Store) touch(k Key, r *record) {
	r.updated = s.now()
	s.bump(k, r)
}

// bump invalidates in-flight sends of r and makes it due. Caller holds mu.
func (s *Store) bump(k Key, r *record) {
	s.gen++
	r.gen = s.gen
	s.lastSent[k] = time.Time{}
}

// Remove drops a universe. Its staleness entry is cleaned up on the next tick.
func (s *Store) Remove(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, k)
}

// AddDestination unicasts the universe to addr instead of broadcasting it.
func (s *Store) AddDestination(k Key, addr *net.UDPAddr) error {
	if addr == nil {
		return errors.New("nil destination")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[k]
	if !ok {
		return fmt.Errorf("%s: %w", k, ErrUnknownUniverse)
	}
	if r.destinations == nil {
		r.destinations = make(map[string]*net.UDPAddr)
	}
	if _, ok := r.destinations[addr.String()]; !ok {
		r.destinations[addr.String()] = addr
		s.bump(k, r)
	}
	return nil
}

// RemoveDestination drops addr. Without destinations the universe is
// broadcast again.
func (s *Store) RemoveDestination(k Key, addr *net.UDPAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[k]
	if !ok {
		return fmt.Errorf("%s: %w", k, ErrUnknownUniverse)
	}
	if _, ok := r.destinations[addr.String()]; !ok {
		return nil
	}
	delete(r.destinations, addr.String())
	if len(r.destinations) == 0 {
		r.destinations = nil
	}
	s.bump(k, r)
	return nil
}

// Destinations returns the unicast targets of a universe, nil for broadcast.
func (s *Store) Destinations(k Key) []*net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[k]
	if !ok {
		return nil
	}
	return sortedAddrs(r.destinations)
}

func sortedAddrs(m map[string]*net.UDPAddr) []*net.UDPAddr {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*net.UDPAddr, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// Get returns a snapshot of a universe.
func (s *Store) Get(k Key) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[k]
	if !ok {
		return Info{}, false
	}
	return s.info(k, r), true
}

// List returns snapshots of every universe ordered by key.
func (s *Store) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.records))
	for k, r := range s.records {
		out = append(out, s.info(k, r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Store) info(k Key, r *record) Info {
	return Info{
		Key:          k,
		Data:         r.builder.Data(),
		Updated:      r.updated,
		LastSent:     s.lastSent[k],
		Destinations: sortedAddrs(r.destinations),
	}
}

// Len returns the number of universes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// isDue is the only due/not-due decision: a universe is due when its last
// send is at least one staleness window old. Changes reset lastSent to the
// zero time, which is always due.
func (s *Store) isDue(last, now time.Time) bool {
	return last.IsZero() || now.Sub(last) >= s.window
}

// Due renders every universe that must be sent at now. Index entries whose
// universe was removed are dropped.
func (s *Store) Due(now time.Time) []Due {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Due
	for k, last := range s.lastSent {
		r, ok := s.records[k]
		if !ok {
			delete(s.lastSent, k)
			continue
		}
		if !s.isDue(last, now) {
			continue
		}
		if s.sequence {
			next := int(r.builder.Sequence())%255 + 1
			_ = r.builder.SetSequence(next)
		}
		out = append(out, Due{
			Key:          k,
			Packet:       r.builder.Build(),
			Destinations: sortedAddrs(r.destinations),
			gen:          r.gen,
		})
	}
	return out
}

// MarkSent records a completed send. A universe changed after Due was taken
// stays due.
func (s *Store) MarkSent(d Due, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[d.Key]
	if !ok {
		delete(s.lastSent, d.Key)
		return
	}
	if r.gen != d.gen {
		return
	}
	s.lastSent[d.Key] = at
}
