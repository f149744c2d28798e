package scheduler

import "sort"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Running:  s.c != nil,
		Timezone: s.location().String(),
		Timers:   make([]TimerInfo, 0, len(s.regs)),
	}
	for _, r := range s.regs {
		it := TimerInfo{
			Key:          r.key,
			Every:        r.every,
			Fires:        r.fires,
			LastFire:     r.lastFire,
			RegisteredAt: r.registeredAt,
		}
		if s.c != nil && r.entryID != 0 {
			e := s.c.Entry(r.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		snap.Timers = append(snap.Timers, it)
	}
	sort.Slice(snap.Timers, func(i, j int) bool { return snap.Timers[i].Key < snap.Timers[j].Key })
	return snap
}
