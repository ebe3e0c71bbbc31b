package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/mailer"
	"formafit/trainer-app/internal/repository"
	"formafit/trainer-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory doubles for the repository, storage, mailer and event layers.

func inRange(d time.Time, from, to *time.Time) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func matches(name, search string) bool {
	return search == "" || strings.Contains(strings.ToLower(name), strings.ToLower(search))
}

// --- users ---

type fakeUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[primitive.ObjectID]*domain.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *domain.User) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	cp := *u
	f.users[u.ID] = &cp
	return u.ID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- students ---

type fakeStudents struct {
	mu        sync.Mutex
	students  map[primitive.ObjectID]*domain.Student
	createErr error
}

func newFakeStudents() *fakeStudents {
	return &fakeStudents{students: map[primitive.ObjectID]*domain.Student{}}
}

func (f *fakeStudents) Create(_ context.Context, s *domain.Student) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return primitive.NilObjectID, f.createErr
	}
	for _, existing := range f.students {
		if existing.TrainerID == s.TrainerID && existing.Email == s.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	s.ID = primitive.NewObjectID()
	cp := *s
	f.students[s.ID] = &cp
	return s.ID, nil
}

func (f *fakeStudents) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok || s.TrainerID != trainerID {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudents) List(_ context.Context, trainerID primitive.ObjectID, filter repository.StudentFilter) ([]domain.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Student{}
	for _, s := range f.students {
		if s.TrainerID != trainerID {
			continue
		}
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		if filter.Objective != "" && s.Objective != filter.Objective {
			continue
		}
		if filter.Search != "" && !matches(s.Name, filter.Search) && !matches(s.Email, filter.Search) && !matches(s.Phone, filter.Search) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStudents) Counts(_ context.Context, trainerID primitive.ObjectID) (repository.StudentCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c repository.StudentCounts
	for _, s := range f.students {
		if s.TrainerID != trainerID {
			continue
		}
		c.Total++
		if s.Active {
			c.Active++
		} else {
			c.Inactive++
		}
	}
	return c, nil
}

func (f *fakeStudents) Update(_ context.Context, s *domain.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.students[s.ID]
	if !ok || existing.TrainerID != s.TrainerID {
		return repository.ErrNotFound
	}
	for _, other := range f.students {
		if other.ID != s.ID && other.TrainerID == s.TrainerID && other.Email == s.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *s
	f.students[s.ID] = &cp
	return nil
}

func (f *fakeStudents) SetActive(_ context.Context, trainerID, id primitive.ObjectID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok || s.TrainerID != trainerID {
		return repository.ErrNotFound
	}
	s.Active = active
	return nil
}

func (f *fakeStudents) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok || s.TrainerID != trainerID {
		return repository.ErrNotFound
	}
	delete(f.students, id)
	return nil
}

// --- owned collections ---

// ownedStore keeps trainer-owned records keyed by ID.
type ownedStore[T any] struct {
	mu      sync.Mutex
	items   map[primitive.ObjectID]*T
	ids     func(*T) (id, trainerID, studentID primitive.ObjectID)
	setID   func(*T, primitive.ObjectID)
	unique  func(a, b *T) bool // nil means no unique constraint
	failOn  int                // fail the n-th Create (1-based) when > 0
	creates int
}

var errInjected = errors.New("injected failure")

func newOwnedStore[T any](ids func(*T) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID), setID func(*T, primitive.ObjectID)) *ownedStore[T] {
	return &ownedStore[T]{items: map[primitive.ObjectID]*T{}, ids: ids, setID: setID}
}

func (s *ownedStore[T]) create(v *T) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.failOn > 0 && s.creates == s.failOn {
		return primitive.NilObjectID, errInjected
	}
	if s.unique != nil {
		for _, existing := range s.items {
			if s.unique(existing, v) {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	id := primitive.NewObjectID()
	s.setID(v, id)
	cp := *v
	s.items[id] = &cp
	return id, nil
}

func (s *ownedStore[T]) get(trainerID, id primitive.ObjectID) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if _, owner, _ := s.ids(v); owner != trainerID {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *ownedStore[T]) list(keep func(*T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []T{}
	for _, v := range s.items {
		if keep(v) {
			out = append(out, *v)
		}
	}
	return out
}

func (s *ownedStore[T]) update(v *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, trainerID, _ := s.ids(v)
	existing, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if _, owner, _ := s.ids(existing); owner != trainerID {
		return repository.ErrNotFound
	}
	if s.unique != nil {
		for otherID, other := range s.items {
			if otherID != id && s.unique(other, v) {
				return repository.ErrDuplicate
			}
		}
	}
	cp := *v
	s.items[id] = &cp
	return nil
}

func (s *ownedStore[T]) mutate(trainerID, id primitive.ObjectID, fn func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if _, owner, _ := s.ids(v); owner != trainerID {
		return repository.ErrNotFound
	}
	fn(v)
	return nil
}

func (s *ownedStore[T]) delete(trainerID, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if _, owner, _ := s.ids(v); owner != trainerID {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *ownedStore[T]) forStudent(trainerID, studentID primitive.ObjectID, fn func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.items {
		if _, owner, student := s.ids(v); owner == trainerID && student == studentID {
			fn(v)
		}
	}
}

func (s *ownedStore[T]) deleteByStudent(trainerID, studentID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.items {
		if _, owner, student := s.ids(v); owner == trainerID && student == studentID {
			delete(s.items, id)
		}
	}
	return nil
}

func (s *ownedStore[T]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// --- measurements ---

type fakeMeasurements struct{ *ownedStore[domain.BodyMeasurement] }

func newFakeMeasurements() *fakeMeasurements {
	s := newOwnedStore(
		func(m *domain.BodyMeasurement) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return m.ID, m.TrainerID, m.StudentID
		},
		func(m *domain.BodyMeasurement, id primitive.ObjectID) { m.ID = id },
	)
	s.unique = func(a, b *domain.BodyMeasurement) bool { return a.StudentID == b.StudentID && a.Date.Equal(b.Date) }
	return &fakeMeasurements{s}
}

func (f *fakeMeasurements) Create(_ context.Context, m *domain.BodyMeasurement) (primitive.ObjectID, error) {
	return f.create(m)
}

func (f *fakeMeasurements) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.BodyMeasurement, error) {
	return f.get(trainerID, id)
}

func (f *fakeMeasurements) ListByStudent(_ context.Context, trainerID, studentID primitive.ObjectID, since *time.Time, limit int64) ([]domain.BodyMeasurement, error) {
	out := f.list(func(m *domain.BodyMeasurement) bool {
		return m.TrainerID == trainerID && m.StudentID == studentID && inRange(m.Date, since, nil)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMeasurements) Update(_ context.Context, m *domain.BodyMeasurement) error {
	return f.update(m)
}

func (f *fakeMeasurements) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakeMeasurements) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

// --- monthly tracking ---

type fakeMonthly struct {
	mu   sync.Mutex
	rows map[string]*domain.MonthlyTracking
}

func newFakeMonthly() *fakeMonthly { return &fakeMonthly{rows: map[string]*domain.MonthlyTracking{}} }

func monthlyKey(trainerID, studentID primitive.ObjectID, year, month int) string {
	return trainerID.Hex() + studentID.Hex() + time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (f *fakeMonthly) Get(_ context.Context, trainerID, studentID primitive.ObjectID, year, month int) (*domain.MonthlyTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[monthlyKey(trainerID, studentID, year, month)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeMonthly) Upsert(_ context.Context, t *domain.MonthlyTracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := monthlyKey(t.TrainerID, t.StudentID, t.Year, t.Month)
	if existing, ok := f.rows[key]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	} else {
		t.ID = primitive.NewObjectID()
	}
	cp := *t
	f.rows[key] = &cp
	return nil
}

func (f *fakeMonthly) ListByYear(_ context.Context, trainerID, studentID primitive.ObjectID, year int) ([]domain.MonthlyTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.MonthlyTracking{}
	for _, row := range f.rows {
		if row.TrainerID == trainerID && row.StudentID == studentID && row.Year == year {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (f *fakeMonthly) Delete(_ context.Context, trainerID, studentID primitive.ObjectID, year, month int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := monthlyKey(trainerID, studentID, year, month)
	if _, ok := f.rows[key]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeMonthly) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, row := range f.rows {
		if row.TrainerID == trainerID && row.StudentID == studentID {
			delete(f.rows, key)
		}
	}
	return nil
}

// --- photos ---

type fakePhotos struct{ *ownedStore[domain.ProgressPhoto] }

func newFakePhotos() *fakePhotos {
	return &fakePhotos{newOwnedStore(
		func(p *domain.ProgressPhoto) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return p.ID, p.TrainerID, p.StudentID
		},
		func(p *domain.ProgressPhoto, id primitive.ObjectID) { p.ID = id },
	)}
}

func (f *fakePhotos) Create(_ context.Context, p *domain.ProgressPhoto) (primitive.ObjectID, error) {
	return f.create(p)
}

func (f *fakePhotos) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.ProgressPhoto, error) {
	return f.get(trainerID, id)
}

func (f *fakePhotos) ListByStudent(_ context.Context, trainerID, studentID primitive.ObjectID, limit int64) ([]domain.ProgressPhoto, error) {
	out := f.list(func(p *domain.ProgressPhoto) bool { return p.TrainerID == trainerID && p.StudentID == studentID })
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePhotos) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakePhotos) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

// --- schedule slots ---

type fakeSlots struct{ *ownedStore[domain.ScheduleSlot] }

func newFakeSlots() *fakeSlots {
	s := newOwnedStore(
		func(v *domain.ScheduleSlot) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return v.ID, v.TrainerID, v.StudentID
		},
		func(v *domain.ScheduleSlot, id primitive.ObjectID) { v.ID = id },
	)
	s.unique = func(a, b *domain.ScheduleSlot) bool {
		return a.StudentID == b.StudentID && a.Weekday == b.Weekday && a.Start == b.Start
	}
	return &fakeSlots{s}
}

func (f *fakeSlots) Create(_ context.Context, v *domain.ScheduleSlot) (primitive.ObjectID, error) {
	return f.create(v)
}

func (f *fakeSlots) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduleSlot, error) {
	return f.get(trainerID, id)
}

func (f *fakeSlots) ListByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) ([]domain.ScheduleSlot, error) {
	return f.list(func(v *domain.ScheduleSlot) bool { return v.TrainerID == trainerID && v.StudentID == studentID }), nil
}

func (f *fakeSlots) ListActive(_ context.Context, trainerID primitive.ObjectID) ([]domain.ScheduleSlot, error) {
	return f.list(func(v *domain.ScheduleSlot) bool { return v.TrainerID == trainerID && v.Active }), nil
}

func (f *fakeSlots) Update(_ context.Context, v *domain.ScheduleSlot) error { return f.update(v) }

func (f *fakeSlots) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakeSlots) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

// --- sessions ---

type fakeSessions struct {
	*ownedStore[domain.ScheduledSession]
	setStatusErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{ownedStore: newOwnedStore(
		func(v *domain.ScheduledSession) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return v.ID, v.TrainerID, v.StudentID
		},
		func(v *domain.ScheduledSession, id primitive.ObjectID) { v.ID = id },
	)}
}

func (f *fakeSessions) filter(trainerID primitive.ObjectID, filter repository.SessionFilter) []domain.ScheduledSession {
	out := f.list(func(v *domain.ScheduledSession) bool {
		if v.TrainerID != trainerID || !inRange(v.Date, filter.From, filter.To) || !matches(v.StudentName, filter.Search) {
			return false
		}
		if filter.StudentID != nil && v.StudentID != *filter.StudentID {
			return false
		}
		if len(filter.Statuses) > 0 {
			for _, st := range filter.Statuses {
				if v.Status == st {
					return true
				}
			}
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (f *fakeSessions) Create(_ context.Context, v *domain.ScheduledSession) (primitive.ObjectID, error) {
	return f.create(v)
}

func (f *fakeSessions) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduledSession, error) {
	return f.get(trainerID, id)
}

func (f *fakeSessions) List(_ context.Context, trainerID primitive.ObjectID, filter repository.SessionFilter) ([]domain.ScheduledSession, error) {
	return f.filter(trainerID, filter), nil
}

func (f *fakeSessions) Count(_ context.Context, trainerID primitive.ObjectID, filter repository.SessionFilter) (int64, error) {
	filter.Limit = 0
	return int64(len(f.filter(trainerID, filter))), nil
}

func (f *fakeSessions) Exists(_ context.Context, trainerID, studentID primitive.ObjectID, date time.Time, start domain.TimeOfDay) (bool, error) {
	found := f.list(func(v *domain.ScheduledSession) bool {
		return v.TrainerID == trainerID && v.StudentID == studentID && v.Date.Equal(date) && v.Start == start
	})
	return len(found) > 0, nil
}

func (f *fakeSessions) Update(_ context.Context, v *domain.ScheduledSession) error { return f.update(v) }

func (f *fakeSessions) SetStatus(_ context.Context, trainerID, id primitive.ObjectID, status domain.SessionStatus) error {
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	return f.mutate(trainerID, id, func(v *domain.ScheduledSession) { v.Status = status })
}

func (f *fakeSessions) CountByStudent(_ context.Context, trainerID primitive.ObjectID, filter repository.SessionFilter) (map[primitive.ObjectID]int64, error) {
	filter.Limit = 0
	counts := map[primitive.ObjectID]int64{}
	for _, v := range f.filter(trainerID, filter) {
		counts[v.StudentID]++
	}
	return counts, nil
}

func (f *fakeSessions) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakeSessions) SetStudentName(_ context.Context, trainerID, studentID primitive.ObjectID, name string) error {
	f.forStudent(trainerID, studentID, func(v *domain.ScheduledSession) { v.StudentName = name })
	return nil
}

func (f *fakeSessions) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

// --- attendance ---

type fakeAttendance struct{ *ownedStore[domain.AttendanceRecord] }

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{newOwnedStore(
		func(v *domain.AttendanceRecord) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return v.ID, v.TrainerID, v.StudentID
		},
		func(v *domain.AttendanceRecord, id primitive.ObjectID) { v.ID = id },
	)}
}

func (f *fakeAttendance) filter(trainerID primitive.ObjectID, filter repository.AttendanceFilter) []domain.AttendanceRecord {
	out := f.list(func(v *domain.AttendanceRecord) bool {
		if v.TrainerID != trainerID || !inRange(v.Date, filter.From, filter.To) || !matches(v.StudentName, filter.Search) {
			return false
		}
		if filter.StudentID != nil && v.StudentID != *filter.StudentID {
			return false
		}
		return filter.Status == "" || v.Status == filter.Status
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (f *fakeAttendance) Create(_ context.Context, v *domain.AttendanceRecord) (primitive.ObjectID, error) {
	return f.create(v)
}

func (f *fakeAttendance) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.AttendanceRecord, error) {
	return f.get(trainerID, id)
}

func (f *fakeAttendance) List(_ context.Context, trainerID primitive.ObjectID, filter repository.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	return f.filter(trainerID, filter), nil
}

func (f *fakeAttendance) Exists(_ context.Context, trainerID, studentID primitive.ObjectID, date time.Time, start domain.TimeOfDay) (bool, error) {
	found := f.list(func(v *domain.AttendanceRecord) bool {
		return v.TrainerID == trainerID && v.StudentID == studentID && v.Date.Equal(date) && v.Start == start
	})
	return len(found) > 0, nil
}

func (f *fakeAttendance) Update(_ context.Context, v *domain.AttendanceRecord) error {
	return f.update(v)
}

func (f *fakeAttendance) CountByStudent(_ context.Context, trainerID primitive.ObjectID, filter repository.AttendanceFilter) (map[primitive.ObjectID]int64, error) {
	counts := map[primitive.ObjectID]int64{}
	for _, v := range f.filter(trainerID, filter) {
		counts[v.StudentID]++
	}
	return counts, nil
}

func (f *fakeAttendance) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakeAttendance) SetStudentName(_ context.Context, trainerID, studentID primitive.ObjectID, name string) error {
	f.forStudent(trainerID, studentID, func(v *domain.AttendanceRecord) { v.StudentName = name })
	return nil
}

func (f *fakeAttendance) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

// --- plans ---

type fakePlans struct{ *ownedStore[domain.BillingPlan] }

func newFakePlans() *fakePlans {
	return &fakePlans{newOwnedStore(
		func(v *domain.BillingPlan) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return v.ID, v.TrainerID, primitive.NilObjectID
		},
		func(v *domain.BillingPlan, id primitive.ObjectID) { v.ID = id },
	)}
}

func (f *fakePlans) Create(_ context.Context, v *domain.BillingPlan) (primitive.ObjectID, error) {
	return f.create(v)
}

func (f *fakePlans) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.BillingPlan, error) {
	return f.get(trainerID, id)
}

func (f *fakePlans) List(_ context.Context, trainerID primitive.ObjectID, activeOnly bool) ([]domain.BillingPlan, error) {
	return f.list(func(v *domain.BillingPlan) bool { return v.TrainerID == trainerID && (!activeOnly || v.Active) }), nil
}

func (f *fakePlans) Update(_ context.Context, v *domain.BillingPlan) error { return f.update(v) }

func (f *fakePlans) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

// --- contracts ---

type fakeContracts struct{ *ownedStore[domain.Contract] }

func newFakeContracts() *fakeContracts {
	return &fakeContracts{newOwnedStore(
		func(v *domain.Contract) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return v.ID, v.TrainerID, v.StudentID
		},
		func(v *domain.Contract, id primitive.ObjectID) { v.ID = id },
	)}
}

func (f *fakeContracts) Create(_ context.Context, v *domain.Contract) (primitive.ObjectID, error) {
	return f.create(v)
}

func (f *fakeContracts) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.Contract, error) {
	return f.get(trainerID, id)
}

func (f *fakeContracts) List(_ context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Contract, error) {
	return f.list(func(v *domain.Contract) bool {
		return v.TrainerID == trainerID && (studentID == nil || v.StudentID == *studentID)
	}), nil
}

func (f *fakeContracts) Update(_ context.Context, v *domain.Contract) error { return f.update(v) }

func (f *fakeContracts) CountByPlan(_ context.Context, trainerID, planID primitive.ObjectID) (int64, error) {
	return int64(len(f.list(func(v *domain.Contract) bool { return v.TrainerID == trainerID && v.PlanID == planID }))), nil
}

func (f *fakeContracts) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakeContracts) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

// --- invoices ---

type fakeInvoices struct{ *ownedStore[domain.Invoice] }

func newFakeInvoices() *fakeInvoices {
	s := newOwnedStore(
		func(v *domain.Invoice) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return v.ID, v.TrainerID, v.StudentID
		},
		func(v *domain.Invoice, id primitive.ObjectID) { v.ID = id },
	)
	s.unique = func(a, b *domain.Invoice) bool {
		return a.StudentID == b.StudentID && a.RefMonth == b.RefMonth && a.RefYear == b.RefYear
	}
	return &fakeInvoices{s}
}

func (f *fakeInvoices) filter(trainerID primitive.ObjectID, filter repository.InvoiceFilter) []domain.Invoice {
	out := f.list(func(v *domain.Invoice) bool {
		if v.TrainerID != trainerID || !inRange(v.DueDate, filter.DueFrom, filter.DueTo) || !matches(v.StudentName, filter.Search) {
			return false
		}
		if filter.StudentID != nil && v.StudentID != *filter.StudentID {
			return false
		}
		if (filter.Month != 0 && v.RefMonth != filter.Month) || (filter.Year != 0 && v.RefYear != filter.Year) {
			return false
		}
		if len(filter.Statuses) > 0 {
			for _, st := range filter.Statuses {
				if v.Status == st {
					return true
				}
			}
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (f *fakeInvoices) Create(_ context.Context, v *domain.Invoice) (primitive.ObjectID, error) {
	return f.create(v)
}

func (f *fakeInvoices) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.Invoice, error) {
	return f.get(trainerID, id)
}

func (f *fakeInvoices) List(_ context.Context, trainerID primitive.ObjectID, filter repository.InvoiceFilter) ([]domain.Invoice, error) {
	return f.filter(trainerID, filter), nil
}

func (f *fakeInvoices) Summarize(_ context.Context, trainerID primitive.ObjectID, filter repository.InvoiceFilter) (repository.InvoiceSummary, error) {
	var s repository.InvoiceSummary
	for _, v := range f.filter(trainerID, filter) {
		s.Count++
		s.Total += v.Amount
		switch v.Status {
		case domain.InvoicePending:
			s.Pending++
			s.Outstanding += v.Amount
		case domain.InvoiceOverdue:
			s.Overdue++
			s.Outstanding += v.Amount
		case domain.InvoicePaid:
			s.Paid++
			s.Received += v.Amount
		}
	}
	return s, nil
}

func (f *fakeInvoices) ExistsForPeriod(_ context.Context, trainerID, studentID primitive.ObjectID, month, year int, excludeID primitive.ObjectID) (bool, error) {
	found := f.list(func(v *domain.Invoice) bool {
		return v.TrainerID == trainerID && v.StudentID == studentID && v.RefMonth == month && v.RefYear == year && v.ID != excludeID
	})
	return len(found) > 0, nil
}

func (f *fakeInvoices) PaidRevenue(_ context.Context, trainerID primitive.ObjectID, fromYear, fromMonth, toYear, toMonth int) ([]repository.MonthlyRevenue, error) {
	sums := map[int]float64{}
	for _, v := range f.list(func(v *domain.Invoice) bool { return v.TrainerID == trainerID && v.Status == domain.InvoicePaid }) {
		p := v.RefYear*12 + v.RefMonth
		if p >= fromYear*12+fromMonth && p <= toYear*12+toMonth {
			sums[p] += v.Amount
		}
	}
	out := []repository.MonthlyRevenue{}
	for p, amount := range sums {
		out = append(out, repository.MonthlyRevenue{Year: (p - 1) / 12, Month: (p-1)%12 + 1, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year*12+out[i].Month < out[j].Year*12+out[j].Month })
	return out, nil
}

func (f *fakeInvoices) Update(_ context.Context, v *domain.Invoice) error { return f.update(v) }

func (f *fakeInvoices) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakeInvoices) SetStudentName(_ context.Context, trainerID, studentID primitive.ObjectID, name string) error {
	f.forStudent(trainerID, studentID, func(v *domain.Invoice) { v.StudentName = name })
	return nil
}

func (f *fakeInvoices) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

// --- report types and reports ---

type fakeReportTypes struct {
	mu    sync.Mutex
	types map[primitive.ObjectID]*domain.ReportType
}

func newFakeReportTypes() *fakeReportTypes {
	return &fakeReportTypes{types: map[primitive.ObjectID]*domain.ReportType{}}
}

func (f *fakeReportTypes) Create(_ context.Context, t *domain.ReportType) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.types {
		if existing.Name == t.Name {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	t.ID = primitive.NewObjectID()
	cp := *t
	f.types[t.ID] = &cp
	return t.ID, nil
}

func (f *fakeReportTypes) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ReportType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.types[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeReportTypes) List(_ context.Context, activeOnly bool) ([]domain.ReportType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.ReportType{}
	for _, t := range f.types {
		if !activeOnly || t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeReportTypes) Update(_ context.Context, t *domain.ReportType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.types[t.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *t
	f.types[t.ID] = &cp
	return nil
}

func (f *fakeReportTypes) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.types[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.types, id)
	return nil
}

type fakeReports struct {
	*ownedStore[domain.Report]
	created int
}

func newFakeReports() *fakeReports {
	return &fakeReports{ownedStore: newOwnedStore(
		func(v *domain.Report) (primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
			return v.ID, v.TrainerID, v.StudentID
		},
		func(v *domain.Report, id primitive.ObjectID) { v.ID = id },
	)}
}

func (f *fakeReports) Create(_ context.Context, v *domain.Report) (primitive.ObjectID, error) {
	if v.CreatedAt.IsZero() {
		// Strictly increasing so Recent has a stable order.
		f.created++
		v.CreatedAt = fixedToday.Add(time.Duration(f.created) * time.Minute)
	}
	return f.create(v)
}

func (f *fakeReports) GetByID(_ context.Context, trainerID, id primitive.ObjectID) (*domain.Report, error) {
	return f.get(trainerID, id)
}

func (f *fakeReports) List(_ context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Report, error) {
	return f.list(func(v *domain.Report) bool {
		return v.TrainerID == trainerID && (studentID == nil || v.StudentID == *studentID)
	}), nil
}

func (f *fakeReports) Update(_ context.Context, v *domain.Report) error { return f.update(v) }

func (f *fakeReports) Delete(_ context.Context, trainerID, id primitive.ObjectID) error {
	return f.delete(trainerID, id)
}

func (f *fakeReports) DeleteByStudent(_ context.Context, trainerID, studentID primitive.ObjectID) error {
	return f.deleteByStudent(trainerID, studentID)
}

func (f *fakeReports) Recent(_ context.Context, trainerID primitive.ObjectID, limit int64) ([]domain.Report, error) {
	out := f.list(func(v *domain.Report) bool { return v.TrainerID == trainerID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReports) Summarize(_ context.Context, trainerID primitive.ObjectID, monthStart time.Time) (repository.ReportCounts, error) {
	var c repository.ReportCounts
	for _, v := range f.list(func(v *domain.Report) bool { return v.TrainerID == trainerID }) {
		c.Total++
		switch v.Status {
		case domain.ReportGenerating:
			c.Generating++
		case domain.ReportReady:
			c.Ready++
		case domain.ReportFailed:
			c.Failed++
		}
		if v.SentAt != nil {
			c.Sent++
		}
		if !v.CreatedAt.Before(monthStart) {
			c.ThisMonth++
		}
	}
	return c, nil
}

// --- storage, mail, events ---

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (f *fakeStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://upload.test/" + key, nil
}

func (f *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://download.test/" + key, nil
}

func (f *fakeStorage) PutObject(_ context.Context, key, _ string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeStorage) GetObject(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return body, nil
}

func (f *fakeStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) (mailer.Receipt, error) {
	if f.err != nil {
		return mailer.Receipt{}, f.err
	}
	f.sent = append(f.sent, msg)
	return mailer.Receipt{ID: "test", SentAt: time.Now()}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}

// --- fixture ---

type fixture struct {
	repos        Repositories
	users        *fakeUsers
	students     *fakeStudents
	measurements *fakeMeasurements
	monthly      *fakeMonthly
	photos       *fakePhotos
	slots        *fakeSlots
	sessions     *fakeSessions
	attendance   *fakeAttendance
	plans        *fakePlans
	contracts    *fakeContracts
	invoices     *fakeInvoices
	reportTypes  *fakeReportTypes
	reports      *fakeReports
	files        *fakeStorage
	publisher    *recordingPublisher
	clock        Clock
	trainer      primitive.ObjectID
}

// fixedToday is a Wednesday.
var fixedToday = time.Date(2024, time.March, 13, 0, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		users:        newFakeUsers(),
		students:     newFakeStudents(),
		measurements: newFakeMeasurements(),
		monthly:      newFakeMonthly(),
		photos:       newFakePhotos(),
		slots:        newFakeSlots(),
		sessions:     newFakeSessions(),
		attendance:   newFakeAttendance(),
		plans:        newFakePlans(),
		contracts:    newFakeContracts(),
		invoices:     newFakeInvoices(),
		reportTypes:  newFakeReportTypes(),
		reports:      newFakeReports(),
		files:        newFakeStorage(),
		publisher:    &recordingPublisher{},
		trainer:      primitive.NewObjectID(),
	}
	f.repos = Repositories{
		Users:        f.users,
		Students:     f.students,
		Measurements: f.measurements,
		Monthly:      f.monthly,
		Photos:       f.photos,
		Slots:        f.slots,
		Sessions:     f.sessions,
		Attendance:   f.attendance,
		Plans:        f.plans,
		Contracts:    f.contracts,
		Invoices:     f.invoices,
		ReportTypes:  f.reportTypes,
		Reports:      f.reports,
	}
	f.clock = Clock{
		Now:      func() time.Time { return fixedToday.Add(10 * time.Hour) },
		Location: time.UTC,
	}
	return f
}

func validStudentInput(name, email string) StudentInput {
	return StudentInput{
		Name:            name,
		Email:           email,
		Phone:           "(11) 99999-9999",
		BirthDate:       time.Date(1990, time.May, 20, 0, 0, 0, 0, time.UTC),
		Sex:             domain.SexFemale,
		HeightM:         1.70,
		InitialWeightKg: 68,
		Objective:       "Hypertrophy",
	}
}

// addStudent stores a student for the given trainer directly.
func (f *fixture) addStudent(trainerID primitive.ObjectID, name string) *domain.Student {
	s := &domain.Student{
		TrainerID: trainerID,
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Phone:     "(11) 99999-9999",
		BirthDate: time.Date(1990, time.May, 20, 0, 0, 0, 0, time.UTC),
		Sex:       domain.SexMale,
		HeightM:   1.80,
		Active:    true,
		StartDate: fixedToday,
	}
	if _, err := f.students.Create(context.Background(), s); err != nil {
		panic(err)
	}
	return s
}

func (f *fixture) addPlan(price float64) *domain.BillingPlan {
	p := &domain.BillingPlan{TrainerID: f.trainer, Name: "Monthly", Price: price, IncludedSessions: 8, Active: true}
	if _, err := f.plans.Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}
