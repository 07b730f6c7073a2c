package universe

import (
	"net"
	"sync"
	"time"

	"artnetctl/internal/logger"
)

// SendFunc queues one frame for addr. It must not block.
type SendFunc func(b []byte, addr *net.UDPAddr) error

// Scheduler sends due universes. The owner calls Tick periodically.
type Scheduler struct {
	log       logger.Logger
	store     *Store
	send      SendFunc
	broadcast *net.UDPAddr
}

// NewScheduler конструктор.
func NewScheduler(log logger.Logger, store *Store, send SendFunc, broadcast *net.UDPAddr) *Scheduler {
	return &Scheduler{
		log:       log,
		store:     store,
		send:      send,
		broadcast: broadcast,
	}
}

// Tick sends every due universe and returns how many were sent. Universes
// and their destinations are handled concurrently; a failing destination
// does not stop the others. A universe that reached none of its
// destinations stays due.
func (s *Scheduler) Tick(now time.Time) int {
	due := s.store.Due(now)
	if len(due) == 0 {
		return 0
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, d := range due {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.sendOne(d) {
				s.store.MarkSent(d, now)
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return sent
}

func (s *Scheduler) sendOne(d Due) bool {
	targets := d.Destinations
	if len(targets) == 0 {
		targets = []*net.UDPAddr{s.broadcast}
	}
	raw := d.Packet.Bytes()
	ok := false
	for _, addr := range targets {
		if err := s.send(raw, addr); err != nil {
			s.log.With(logger.Fields{"module": "art-net", "universe": d.Key.Address().String()}).
				Warnf("DMX. Не удалось отправить на %v: %v", addr, err)
			continue
		}
		ok = true
	}
	return ok
}
