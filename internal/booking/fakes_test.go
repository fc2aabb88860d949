package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

// fakeStore is an in-memory stand-in for the postgres repositories. It
// implements every store interface the booking services consume. WithTx
// serializes callers on one mutex, mirroring the per-slot exclusion the real
// ledger gets from row locks, and restores a snapshot when the closure
// fails so a rejected batch leaves no trace.
type fakeStore struct {
	mu           sync.Mutex
	services     map[string]domain.Service
	slots        map[string]domain.TimeSlot
	reservations map[string]domain.Reservation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services:     make(map[string]domain.Service),
		slots:        make(map[string]domain.TimeSlot),
		reservations: make(map[string]domain.Reservation),
	}
}

func (f *fakeStore) addService(svc domain.Service) { f.services[svc.ID] = svc }

func (f *fakeStore) addSlot(slot domain.TimeSlot) { f.slots[slot.ID] = slot }

func (f *fakeStore) addReservation(r domain.Reservation) { f.reservations[r.ID] = r }

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	services := cloneMap(f.services)
	slots := cloneMap(f.slots)
	reservations := cloneMap(f.reservations)
	if err := fn(ctx); err != nil {
		f.services = services
		f.slots = slots
		f.reservations = reservations
		return err
	}
	return nil
}

func (f *fakeStore) GetService(_ context.Context, serviceID string) (domain.Service, error) {
	svc, ok := f.services[serviceID]
	if !ok {
		return domain.Service{}, domain.ErrServiceNotFound
	}
	return svc, nil
}

func (f *fakeStore) GetServiceForUpdate(ctx context.Context, serviceID string) (domain.Service, error) {
	return f.GetService(ctx, serviceID)
}

func (f *fakeStore) InsertService(_ context.Context, svc domain.Service) error {
	f.services[svc.ID] = svc
	return nil
}

func (f *fakeStore) ListServices(_ context.Context, companyID string) ([]domain.Service, error) {
	var out []domain.Service
	for _, svc := range f.services {
		if companyID == "" || svc.CompanyID == companyID {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetSlotForUpdate(_ context.Context, slotID string) (domain.TimeSlot, error) {
	slot, ok := f.slots[slotID]
	if !ok {
		return domain.TimeSlot{}, domain.ErrSlotNotFound
	}
	return slot, nil
}

func (f *fakeStore) ListActiveOverlapping(_ context.Context, serviceID string, start, end time.Time) ([]domain.TimeSlot, error) {
	var out []domain.TimeSlot
	for _, slot := range f.slots {
		if slot.ServiceID == serviceID && slot.Active() && slot.OverlapsInterval(start, end) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertSlot(_ context.Context, slot domain.TimeSlot) error {
	if _, ok := f.slots[slot.ID]; ok {
		return domain.ErrConcurrencyConflict
	}
	f.slots[slot.ID] = slot
	return nil
}

func (f *fakeStore) RetireSlot(_ context.Context, slotID string) error {
	slot, ok := f.slots[slotID]
	if !ok {
		return domain.ErrSlotNotFound
	}
	slot.Retired = true
	f.slots[slotID] = slot
	return nil
}

func (f *fakeStore) DecrementRemaining(_ context.Context, slotID string, units int) error {
	slot, ok := f.slots[slotID]
	if !ok || slot.Retired || slot.Remaining < units {
		return domain.ErrCapacityExhausted
	}
	slot.Remaining -= units
	f.slots[slotID] = slot
	return nil
}

func (f *fakeStore) IncrementRemaining(_ context.Context, slotID string, units int) error {
	slot, ok := f.slots[slotID]
	if !ok || slot.Remaining+units > slot.Capacity {
		return domain.ErrOverRelease
	}
	slot.Remaining += units
	f.slots[slotID] = slot
	return nil
}

func (f *fakeStore) ListAvailable(_ context.Context, serviceID string, from, to time.Time, after *domain.SlotCursor, limit int) ([]domain.TimeSlot, error) {
	var out []domain.TimeSlot
	for _, slot := range f.slots {
		if slot.ServiceID != serviceID || slot.Retired || slot.Remaining < 1 {
			continue
		}
		if !slot.OverlapsInterval(from, to) {
			continue
		}
		if after != nil && !after.Before(slot) {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) RetireEnded(_ context.Context, now time.Time) (int64, error) {
	var retired int64
	for id, slot := range f.slots {
		if slot.Retired || !slot.Ended(now) {
			continue
		}
		blocked := false
		for _, res := range f.reservations {
			if res.SlotID == id && res.State == domain.StateConfirmed {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		slot.Retired = true
		f.slots[id] = slot
		retired++
	}
	return retired, nil
}

func (f *fakeStore) InsertReservation(_ context.Context, res domain.Reservation) error {
	if _, ok := f.reservations[res.ID]; ok {
		return domain.ErrConcurrencyConflict
	}
	res.History = append([]domain.StateChange(nil), res.History...)
	f.reservations[res.ID] = res
	return nil
}

func (f *fakeStore) GetReservation(_ context.Context, reservationID string) (domain.Reservation, error) {
	res, ok := f.reservations[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return res, nil
}

func (f *fakeStore) GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return f.GetReservation(ctx, reservationID)
}

func (f *fakeStore) UpdateState(_ context.Context, reservationID string, state domain.ReservationState, at time.Time) error {
	res, ok := f.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	res.State = state
	res.History = append(append([]domain.StateChange(nil), res.History...), domain.StateChange{State: state, At: at})
	f.reservations[reservationID] = res
	return nil
}

func (f *fakeStore) ListClientHeldSlots(_ context.Context, serviceID, clientID string) ([]domain.TimeSlot, error) {
	var out []domain.TimeSlot
	for _, res := range f.reservations {
		if res.ServiceID != serviceID || res.ClientID != clientID || res.State != domain.StateConfirmed {
			continue
		}
		if slot, ok := f.slots[res.SlotID]; ok {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByClient(_ context.Context, clientID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.ClientID == clientID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListByService(_ context.Context, serviceID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.ServiceID == serviceID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListConfirmedEnded(_ context.Context, now time.Time, limit int) ([]string, error) {
	var out []string
	for id, res := range f.reservations {
		if res.State != domain.StateConfirmed {
			continue
		}
		slot, ok := f.slots[res.SlotID]
		if ok && slot.Ended(now) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListConfirmedPastDeadline(_ context.Context, now time.Time, limit int) ([]string, error) {
	var out []string
	for id, res := range f.reservations {
		if res.State != domain.StateConfirmed || res.ConfirmDeadline == nil {
			continue
		}
		if res.ConfirmDeadline.After(now) {
			continue
		}
		if slot, ok := f.slots[res.SlotID]; ok && slot.Ended(now) {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
