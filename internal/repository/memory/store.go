// Package memory is an in-process implementation of the repository
// interfaces used by the memory database driver and by service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/repository"
)

type Store struct {
	mu            sync.Mutex
	users         map[string]domain.User
	items         map[int32]domain.Item
	bookings      map[int32]domain.Booking
	reports       []domain.ConditionReport
	relations     map[uuid.UUID]domain.Relation
	events        map[string]domain.ProviderEvent
	notifications []domain.Notification
	nextID        int32
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		items:     make(map[int32]domain.Item),
		bookings:  make(map[int32]domain.Booking),
		relations: make(map[uuid.UUID]domain.Relation),
		events:    make(map[string]domain.ProviderEvent),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) id() int32 {
	s.nextID++
	return s.nextID
}

// Repositories bundles the store behind each repository interface.
func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Items() repository.ItemRepository                 { return itemRepo{s} }
func (s *Store) Bookings() repository.BookingRepository           { return bookingRepo{s} }
func (s *Store) Reports() repository.ConditionReportRepository    { return reportRepo{s} }
func (s *Store) Relations() repository.RelationRepository         { return relationRepo{s} }
func (s *Store) ProviderEvents() repository.ProviderEventRepository { return eventRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.Email]; ok {
		return repository.ErrAlreadyExists
	}
	now := r.s.now()
	u.ID = r.s.id()
	u.Version = 1
	u.CreatedOn, u.UpdatedOn = now, now
	r.s.users[u.Email] = *u
	return nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[domain.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[u.Email]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != u.Version {
		return repository.ErrVersionConflict
	}
	u.Version++
	u.UpdatedOn = r.s.now()
	r.s.users[u.Email] = *u
	return nil
}

type itemRepo struct{ s *Store }

func (r itemRepo) Create(_ context.Context, it *domain.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	it.ID = r.s.id()
	it.Version = 1
	it.CreatedOn, it.UpdatedOn = now, now
	r.s.items[it.ID] = *it
	return nil
}

func (r itemRepo) GetByID(_ context.Context, id int32) (*domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (r itemRepo) Update(_ context.Context, it *domain.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.items[it.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != it.Version {
		return repository.ErrVersionConflict
	}
	it.Version++
	it.UpdatedOn = r.s.now()
	r.s.items[it.ID] = *it
	return nil
}

func (r itemRepo) ListByOwner(_ context.Context, ownerEmail string) ([]domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Item
	for _, it := range r.s.items {
		if it.OwnerEmail == ownerEmail {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) CreateIfAvailable(_ context.Context, b *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[b.ItemID]; !ok {
		return repository.ErrNotFound
	}
	for _, other := range r.s.bookings {
		if other.ItemID == b.ItemID && other.State.BlocksCalendar() && other.Dates().Overlaps(b.Dates()) {
			return repository.ErrDateOverlap
		}
	}
	now := r.s.now()
	b.ID = r.s.id()
	b.Version = 1
	b.CreatedOn, b.UpdatedOn = now, now
	r.s.bookings[b.ID] = *b
	return nil
}

func (r bookingRepo) GetByID(_ context.Context, id int32) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r bookingRepo) Save(_ context.Context, b *domain.Booking, report *domain.ConditionReport) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != b.Version {
		return repository.ErrVersionConflict
	}
	now := r.s.now()
	if report != nil {
		for _, existing := range r.s.reports {
			if existing.BookingID == report.BookingID && existing.Type == report.Type && existing.ReportedBy == report.ReportedBy {
				return repository.ErrAlreadyExists
			}
		}
		report.ID = r.s.id()
		report.CreatedOn = now
		r.s.reports = append(r.s.reports, *report)
	}
	b.Version++
	b.UpdatedOn = now
	r.s.bookings[b.ID] = *b
	return nil
}

func (r bookingRepo) List(_ context.Context, f repository.BookingFilter) ([]domain.Booking, int32, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []domain.Booking
	for _, b := range r.s.bookings {
		if f.RenterEmail != "" && b.RenterEmail != f.RenterEmail {
			continue
		}
		if f.OwnerEmail != "" && b.OwnerEmail != f.OwnerEmail {
			continue
		}
		if len(f.States) > 0 && !containsState(f.States, b.State) {
			continue
		}
		matched = append(matched, b)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int32(len(matched))
	pageSize, page := f.PageSize, f.Page
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func containsState(states []domain.BookingState, s domain.BookingState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func (r bookingRepo) ListStale(_ context.Context, state domain.BookingState, createdBefore time.Time) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.State == state && b.CreatedOn.Before(createdBefore) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r bookingRepo) ListWithOpenPaymentLegs(_ context.Context) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	open := func(l domain.PaymentLeg) bool {
		return l.Status == domain.PaymentLegPending || l.Status == domain.PaymentLegCompensationPending
	}
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if open(b.Charge) || open(b.Deposit) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Backdate rewrites a booking's creation time. Tests use it to age requests.
func (s *Store) Backdate(id int32, createdOn time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		b.CreatedOn = createdOn
		s.bookings[id] = b
	}
}

type reportRepo struct{ s *Store }

func (r reportRepo) ListByBooking(_ context.Context, bookingID int32) ([]domain.ConditionReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ConditionReport
	for _, cr := range r.s.reports {
		if cr.BookingID == bookingID {
			out = append(out, cr)
		}
	}
	return out, nil
}

type relationRepo struct{ s *Store }

func (r relationRepo) Insert(_ context.Context, rel *domain.Relation) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.relations {
		if existing.Key() == rel.Key() {
			return false, nil
		}
	}
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	if rel.CreatedOn.IsZero() {
		rel.CreatedOn = r.s.now()
	}
	r.s.relations[rel.ID] = *rel
	return true, nil
}

func (r relationRepo) GetByKey(_ context.Context, key domain.RelationKey) (*domain.Relation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rel := range r.s.relations {
		if rel.Key() == key {
			return &rel, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r relationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Relation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rel, ok := r.s.relations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rel, nil
}

func (r relationRepo) DeleteByKey(_ context.Context, key domain.RelationKey) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, rel := range r.s.relations {
		if rel.Key() == key {
			delete(r.s.relations, id)
			return true, nil
		}
	}
	return false, nil
}

func (r relationRepo) DeleteByID(_ context.Context, id uuid.UUID, actorEmail string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rel, ok := r.s.relations[id]
	if !ok || rel.ActorEmail != actorEmail {
		return false, nil
	}
	delete(r.s.relations, id)
	return true, nil
}

func (r relationRepo) ListByActor(_ context.Context, kind domain.RelationKind, actorEmail string) ([]domain.Relation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Relation
	for _, rel := range r.s.relations {
		if rel.Kind == kind && rel.ActorEmail == actorEmail {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedOn.After(out[j].CreatedOn) })
	return out, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Exists(_ context.Context, token string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.events[token]
	return ok, nil
}

func (r eventRepo) Record(_ context.Context, ev *domain.ProviderEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[ev.Token]; ok {
		return false, nil
	}
	if ev.ReceivedOn.IsZero() {
		ev.ReceivedOn = r.s.now()
	}
	r.s.events[ev.Token] = *ev
	return true, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.id()
	n.CreatedOn = r.s.now()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) List(_ context.Context, userEmail string, limit, offset int32) ([]domain.Notification, int32, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var mine []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if r.s.notifications[i].UserEmail == userEmail {
			mine = append(mine, r.s.notifications[i])
		}
	}
	total := int32(len(mine))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return mine[offset:end], total, nil
}

func (r notificationRepo) MarkAsRead(_ context.Context, id int32, userEmail string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id && r.s.notifications[i].UserEmail == userEmail {
			r.s.notifications[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}
