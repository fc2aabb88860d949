package booking

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/piotrusio02/reservation-system-api/internal/cache"
	"github.com/piotrusio02/reservation-system-api/internal/clock"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
	"github.com/piotrusio02/reservation-system-api/internal/events"
	"github.com/piotrusio02/reservation-system-api/internal/metrics"
)

// LedgerRepository is the persistence the availability ledger needs. The
// implementation must give GetServiceForUpdate and GetSlotForUpdate exclusive
// row semantics for the enclosing transaction.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetServiceForUpdate(ctx context.Context, serviceID string) (domain.Service, error)
	GetSlotForUpdate(ctx context.Context, slotID string) (domain.TimeSlot, error)
	ListActiveOverlapping(ctx context.Context, serviceID string, start, end time.Time) ([]domain.TimeSlot, error)
	InsertSlot(ctx context.Context, slot domain.TimeSlot) error
	RetireSlot(ctx context.Context, slotID string) error
	ListAvailable(ctx context.Context, serviceID string, from, to time.Time, after *domain.SlotCursor, limit int) ([]domain.TimeSlot, error)
}

// AvailabilityService owns slot publication, withdrawal, and the availability
// listing of the ledger.
type AvailabilityService struct {
	repo    LedgerRepository
	cache   *cache.Availability
	clock   clock.Clock
	events  events.Publisher
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewAvailabilityService(repo LedgerRepository, c *cache.Availability, clk clock.Clock, pub events.Publisher, m *metrics.Metrics, logger zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		repo:    repo,
		cache:   c,
		clock:   clk,
		events:  pub,
		metrics: m,
		logger:  logger.With().Str("component", "availability").Logger(),
	}
}

// Interval is one candidate slot supplied by the publication caller.
type Interval struct {
	Start    time.Time
	End      time.Time
	Capacity int
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// PublishSlots inserts the intervals as concrete slots. Under a no-overlap
// policy the whole batch is rejected if any candidate intersects an existing
// active slot or another candidate; partial publication is never visible.
func (s *AvailabilityService) PublishSlots(ctx context.Context, serviceID string, intervals []Interval) ([]domain.TimeSlot, error) {
	if serviceID == "" {
		return nil, domain.ErrInvalidID
	}
	if len(intervals) == 0 {
		return nil, domain.ErrInvalidInterval
	}

	now := s.clock.Now()
	var published []domain.TimeSlot

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		svc, err := s.repo.GetServiceForUpdate(txCtx, serviceID)
		if err != nil {
			return err
		}
		if !svc.Active {
			return domain.ErrServiceNotFound
		}

		candidates := make([]domain.TimeSlot, 0, len(intervals))
		for _, in := range intervals {
			slot, err := domain.NewTimeSlot(serviceID, in.Start, in.End, in.Capacity)
			if err != nil {
				return err
			}
			candidates = append(candidates, slot)
		}

		published, err = s.insertCandidates(txCtx, svc, candidates, now, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterPublish(ctx, serviceID, published, now)
	return published, nil
}

// PublishWeekly expands recurring opening windows into concrete slots of the
// service's duration over a bounded horizon and publishes them. Candidates
// colliding with already published availability are skipped rather than
// rejected, so re-running the expansion is harmless.
func (s *AvailabilityService) PublishWeekly(ctx context.Context, serviceID string, windows []domain.DayWindow, capacity int, horizon time.Duration) ([]domain.TimeSlot, error) {
	if serviceID == "" {
		return nil, domain.ErrInvalidID
	}
	if capacity < 1 {
		return nil, domain.ErrInvalidCapacity
	}

	now := s.clock.Now()
	var published []domain.TimeSlot

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		svc, err := s.repo.GetServiceForUpdate(txCtx, serviceID)
		if err != nil {
			return err
		}
		if !svc.Active {
			return domain.ErrServiceNotFound
		}

		if horizon <= 0 || (svc.Policy.MaxHorizon > 0 && horizon > svc.Policy.MaxHorizon) {
			horizon = svc.Policy.MaxHorizon
		}
		if horizon <= 0 {
			return domain.ErrHorizonViolation
		}

		intervals, err := domain.ExpandWeekly(svc, windows, now, horizon)
		if err != nil {
			return err
		}

		candidates := make([]domain.TimeSlot, 0, len(intervals))
		for _, iv := range intervals {
			slot, err := domain.NewTimeSlot(serviceID, iv[0], iv[1], capacity)
			if err != nil {
				return err
			}
			candidates = append(candidates, slot)
		}

		published, err = s.insertCandidates(txCtx, svc, candidates, now, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterPublish(ctx, serviceID, published, now)
	return published, nil
}

// insertCandidates performs the conflict check and the inserts under the
// service row lock held by the caller's transaction. Under a no-overlap
// policy any intersection with active or just-inserted availability is a
// conflict; under an overlap-allowing policy only an identical start is,
// and solely for recurring publication, so re-running an expansion never
// stacks duplicate slots.
func (s *AvailabilityService) insertCandidates(ctx context.Context, svc domain.Service, candidates []domain.TimeSlot, now time.Time, skipConflicts bool) ([]domain.TimeSlot, error) {
	inserted := make([]domain.TimeSlot, 0, len(candidates))
	for _, cand := range candidates {
		conflict := false
		if !svc.Policy.AllowOverlap || skipConflicts {
			existing, err := s.repo.ListActiveOverlapping(ctx, svc.ID, cand.Start, cand.End)
			if err != nil {
				return nil, err
			}
			if svc.Policy.AllowOverlap {
				for _, prior := range existing {
					if prior.Start.Equal(cand.Start) {
						conflict = true
						break
					}
				}
			} else {
				conflict = len(existing) > 0
				for _, prior := range inserted {
					if prior.Overlaps(cand) {
						conflict = true
						break
					}
				}
			}
		}
		if conflict {
			if skipConflicts {
				continue
			}
			return nil, domain.ErrOverlapRejected
		}

		cand.ID = newID()
		cand.CreatedAt = now
		if err := s.repo.InsertSlot(ctx, cand); err != nil {
			return nil, err
		}
		inserted = append(inserted, cand)
	}
	return inserted, nil
}

func (s *AvailabilityService) afterPublish(ctx context.Context, serviceID string, published []domain.TimeSlot, now time.Time) {
	if len(published) == 0 {
		return
	}
	s.cache.Invalidate(serviceID)
	s.metrics.SlotsPublished.Add(float64(len(published)))
	for _, slot := range published {
		_ = s.events.Publish(ctx, events.Event{
			Kind:       events.KindSlotPublished,
			OccurredAt: now,
			ServiceID:  serviceID,
			SlotID:     slot.ID,
		})
	}
	s.logger.Info().Str("service_id", serviceID).Int("slots", len(published)).Msg("availability published")
}

// Withdraw retires a slot. A slot with active reservations cannot be
// withdrawn; retiring it again is reported as already retired.
func (s *AvailabilityService) Withdraw(ctx context.Context, slotID string) error {
	if slotID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	var serviceID string

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := s.repo.GetSlotForUpdate(txCtx, slotID)
		if err != nil {
			return err
		}
		if slot.Retired {
			return domain.ErrSlotRetired
		}
		if slot.Remaining < slot.Capacity {
			return domain.ErrSlotInUse
		}
		serviceID = slot.ServiceID
		return s.repo.RetireSlot(txCtx, slotID)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(serviceID)
	_ = s.events.Publish(ctx, events.Event{
		Kind:       events.KindSlotWithdrawn,
		OccurredAt: now,
		ServiceID:  serviceID,
		SlotID:     slotID,
	})
	return nil
}

// ListAvailable serves one page of bookable slots intersecting [from, to),
// ordered by start. The returned token restarts the sequence past the last
// slot of the page. Reads may be served from the short-lived cache; staleness
// here never reaches the reserve decision.
func (s *AvailabilityService) ListAvailable(ctx context.Context, serviceID string, from, to time.Time, limit int, pageToken string) (cache.Page, error) {
	if serviceID == "" {
		return cache.Page{}, domain.ErrInvalidID
	}
	if !from.Before(to) {
		return cache.Page{}, domain.ErrInvalidInterval
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var after *domain.SlotCursor
	if pageToken != "" {
		cursor, err := parsePageToken(pageToken)
		if err != nil {
			return cache.Page{}, err
		}
		after = cursor
	}

	now := s.clock.Now()
	key := cache.PageKey(from, to, pageToken, limit)
	if page, ok := s.cache.Get(serviceID, key, now); ok {
		return page, nil
	}

	slots, err := s.repo.ListAvailable(ctx, serviceID, from, to, after, limit)
	if err != nil {
		return cache.Page{}, err
	}

	page := cache.Page{Slots: slots}
	if len(slots) == limit {
		page.NextToken = encodePageToken(slots[len(slots)-1])
	}
	s.cache.Put(serviceID, key, page, now)
	return page, nil
}

// encodePageToken renders a listing cursor as an opaque token: the slot's
// start and id, so pages restart correctly past slots sharing a start.
func encodePageToken(s domain.TimeSlot) string {
	return s.Start.UTC().Format(time.RFC3339Nano) + "@" + s.ID
}

func parsePageToken(token string) (*domain.SlotCursor, error) {
	at, id, ok := strings.Cut(token, "@")
	if !ok || id == "" {
		return nil, domain.ErrInvalidPageToken
	}
	start, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.SlotCursor{Start: start, ID: id}, nil
}
