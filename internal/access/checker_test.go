package access_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockMembershipStore counts lookups so tests can tell cache hits from misses.
type MockMembershipStore struct {
	members    map[access.Key]bool
	calls      int
	shouldFail bool
	failError  error
}

func NewMockMembershipStore() *MockMembershipStore {
	return &MockMembershipStore{members: make(map[access.Key]bool)}
}

func (m *MockMembershipStore) ActiveMembershipExists(_ context.Context, projectID, userID int64) (bool, error) {
	m.calls++
	if m.shouldFail {
		return false, m.failError
	}
	return m.members[access.Key{UserID: userID, ProjectID: projectID}], nil
}

func (m *MockMembershipStore) AddMember(projectID, userID int64) {
	m.members[access.Key{UserID: userID, ProjectID: projectID}] = true
}

func (m *MockMembershipStore) RemoveMember(projectID, userID int64) {
	delete(m.members, access.Key{UserID: userID, ProjectID: projectID})
}

func (m *MockMembershipStore) SetShouldFail(shouldFail bool, err error) {
	m.shouldFail = shouldFail
	m.failError = err
}

// blockingStore reads membership, then waits for release before answering.
type blockingStore struct {
	mu      sync.Mutex
	member  bool
	read    chan struct{}
	release chan struct{}
}

func (b *blockingStore) ActiveMembershipExists(context.Context, int64, int64) (bool, error) {
	b.mu.Lock()
	answer := b.member
	b.mu.Unlock()
	close(b.read)
	<-b.release
	return answer, nil
}

func (b *blockingStore) setMember(v bool) {
	b.mu.Lock()
	b.member = v
	b.mu.Unlock()
}

// failingCache returns an error from every operation.
type failingCache struct{ access.MemoryCache }

func (*failingCache) Get(context.Context, access.Key) (bool, bool, error) {
	return false, false, errors.New("cache down")
}

func (*failingCache) Set(context.Context, access.Key, bool) error {
	return errors.New("cache down")
}

var _ = Describe("Checker", func() {
	var (
		ctx     context.Context
		store   *MockMembershipStore
		cache   *access.MemoryCache
		logBuf  *bytes.Buffer
		checker *access.Checker

		admin  *access.Principal
		member *access.Principal
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = NewMockMembershipStore()
		cache = access.NewMemoryCache()
		logBuf = &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		checker = access.NewChecker(store, cache, logger)

		admin = &access.Principal{ID: 1, Role: access.RoleAdmin, Capabilities: access.CapAll, Active: true}
		member = &access.Principal{ID: 2, Role: access.RoleUser, Capabilities: access.CapView, Active: true}
	})

	Describe("HasProjectAccess", func() {
		It("allows admins without any membership row", func() {
			// Given an admin who belongs to no project
			// When access to an arbitrary project is checked
			allowed := checker.HasProjectAccess(ctx, admin, 42)

			// Then access is granted without touching the store
			Expect(allowed).To(BeTrue())
			Expect(store.calls).To(Equal(0))
		})

		It("denies users with no admin capability and no membership", func() {
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeFalse())
			Expect(store.calls).To(Equal(1))
		})

		It("allows active members", func() {
			store.AddMember(42, member.ID)
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeTrue())
		})

		It("denies anonymous callers without error", func() {
			allowed, err := checker.CheckProjectAccess(ctx, nil, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeFalse())
			Expect(checker.HasProjectAccess(ctx, nil, 42)).To(BeFalse())
			Expect(store.calls).To(Equal(0))
		})

		It("denies inactive users", func() {
			store.AddMember(42, member.ID)
			member.Active = false
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeFalse())
		})

		It("does not query the store twice for the same pair", func() {
			// Given a member
			store.AddMember(42, member.ID)

			// When access is checked twice without membership changes
			first := checker.HasProjectAccess(ctx, member, 42)
			second := checker.HasProjectAccess(ctx, member, 42)

			// Then both answers match and the store was consulted once
			Expect(second).To(Equal(first))
			Expect(store.calls).To(Equal(1))
		})

		It("caches denials as well as grants", func() {
			Expect(checker.HasProjectAccess(ctx, member, 7)).To(BeFalse())
			Expect(checker.HasProjectAccess(ctx, member, 7)).To(BeFalse())
			Expect(store.calls).To(Equal(1))

			allowed, found, err := cache.Get(ctx, access.Key{UserID: member.ID, ProjectID: 7})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(allowed).To(BeFalse())
		})

		It("serves the cached decision until it is cleared", func() {
			// Given a cached grant
			store.AddMember(42, member.ID)
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeTrue())

			// When the membership is removed behind the cache's back
			store.RemoveMember(42, member.ID)

			// Then the stale answer is served until the entry is cleared
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeTrue())
			Expect(checker.ClearAccessCache(ctx, access.ForUser(member.ID), access.ForProject(42))).To(Succeed())
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeFalse())
			Expect(store.calls).To(Equal(2))
		})

		Context("when the store fails", func() {
			BeforeEach(func() {
				store.SetShouldFail(true, errors.New("connection refused"))
			})

			It("fails closed and logs at error level", func() {
				Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeFalse())
				Expect(logBuf.String()).To(ContainSubstring("level=ERROR"))
				Expect(logBuf.String()).To(ContainSubstring("connection refused"))
			})

			It("does not cache the failure", func() {
				Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeFalse())

				store.SetShouldFail(false, nil)
				store.AddMember(42, member.ID)

				Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeTrue())
				Expect(store.calls).To(Equal(2))
			})

			It("reports a distinguishable error from CheckProjectAccess", func() {
				allowed, err := checker.CheckProjectAccess(ctx, member, 42)
				Expect(allowed).To(BeFalse())
				Expect(errors.Is(err, access.ErrAccessUnavailable)).To(BeTrue())
			})
		})

		It("falls back to the store when the cache is unavailable", func() {
			store.AddMember(42, member.ID)
			checker = access.NewChecker(store, &failingCache{}, slog.New(slog.NewTextHandler(logBuf, nil)))

			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeTrue())
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeTrue())
			Expect(store.calls).To(Equal(2))
			Expect(logBuf.String()).To(ContainSubstring("access cache read failed"))
		})
	})

	Describe("ClearAccessCache", func() {
		BeforeEach(func() {
			for _, k := range []access.Key{{1, 1}, {1, 2}, {2, 1}, {2, 2}, {11, 1}, {1, 11}} {
				Expect(cache.Set(ctx, k, true)).To(Succeed())
			}
		})

		has := func(u, p int64) bool {
			_, found, err := cache.Get(ctx, access.Key{UserID: u, ProjectID: p})
			Expect(err).NotTo(HaveOccurred())
			return found
		}

		It("clears everything with no arguments", func() {
			Expect(checker.ClearAccessCache(ctx)).To(Succeed())
			Expect(cache.Len()).To(Equal(0))
		})

		It("clears exactly one entry when both ids are given", func() {
			Expect(checker.ClearAccessCache(ctx, access.ForUser(1), access.ForProject(2))).To(Succeed())
			Expect(has(1, 2)).To(BeFalse())
			Expect(cache.Len()).To(Equal(5))
		})

		It("clears every entry of a user", func() {
			Expect(checker.ClearAccessCache(ctx, access.ForUser(1))).To(Succeed())
			Expect(has(1, 1)).To(BeFalse())
			Expect(has(1, 2)).To(BeFalse())
			Expect(has(1, 11)).To(BeFalse())
			Expect(has(11, 1)).To(BeTrue())
			Expect(has(2, 1)).To(BeTrue())
		})

		It("clears every entry of a project", func() {
			Expect(checker.ClearAccessCache(ctx, access.ForProject(1))).To(Succeed())
			Expect(has(1, 1)).To(BeFalse())
			Expect(has(2, 1)).To(BeFalse())
			Expect(has(11, 1)).To(BeFalse())
			Expect(has(1, 11)).To(BeTrue())
			Expect(has(2, 2)).To(BeTrue())
		})
	})

	Describe("event handlers", func() {
		var bus *events.EventBus

		BeforeEach(func() {
			bus = events.NewEventBus(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
			checker.RegisterEventHandlers(bus)
			store.AddMember(42, member.ID)
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeTrue())
		})

		It("clears the entry when a membership changes", func() {
			store.RemoveMember(42, member.ID)
			Expect(bus.PublishSync(ctx, events.NewMembershipChangedEvent(42, member.ID, events.MembershipRemoved))).To(Succeed())
			Expect(checker.HasProjectAccess(ctx, member, 42)).To(BeFalse())
		})

		It("clears the project when it is deleted", func() {
			Expect(bus.PublishSync(ctx, events.NewProjectDeletedEvent(42, admin.ID))).To(Succeed())
			Expect(cache.Len()).To(Equal(0))
		})

		It("clears the user when they are deactivated", func() {
			Expect(bus.PublishSync(ctx, events.NewUserAccessChangedEvent(member.ID, events.UserDeactivated))).To(Succeed())
			Expect(cache.Len()).To(Equal(0))
		})
	})

	Describe("invalidation during a check", func() {
		It("does not cache a decision read before the clear", func() {
			// Given a check that has read "not a member" and is still in flight
			blocking := &blockingStore{read: make(chan struct{}), release: make(chan struct{})}
			checker = access.NewChecker(blocking, cache, slog.New(slog.NewTextHandler(logBuf, nil)))
			user := &access.Principal{ID: 7, Role: access.RoleUser, Capabilities: access.CapView, Active: true}

			done := make(chan bool)
			go func() {
				defer GinkgoRecover()
				done <- checker.HasProjectAccess(ctx, user, 1)
			}()
			Eventually(blocking.read).Should(BeClosed())

			// When the membership is added and the entry cleared before the check finishes
			blocking.setMember(true)
			Expect(checker.ClearAccessCache(ctx, access.ForUser(7), access.ForProject(1))).To(Succeed())
			close(blocking.release)
			Eventually(done).Should(Receive(BeFalse()))

			// Then the stale denial is not cached
			_, found, err := cache.Get(ctx, access.Key{UserID: 7, ProjectID: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("caches normally when no clear intervened", func() {
			blocking := &blockingStore{member: true, read: make(chan struct{}), release: make(chan struct{})}
			close(blocking.release)
			checker = access.NewChecker(blocking, cache, slog.New(slog.NewTextHandler(logBuf, nil)))
			user := &access.Principal{ID: 7, Role: access.RoleUser, Capabilities: access.CapView, Active: true}

			Expect(checker.HasProjectAccess(ctx, user, 1)).To(BeTrue())

			allowed, found, err := cache.Get(ctx, access.Key{UserID: 7, ProjectID: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(allowed).To(BeTrue())
		})
	})
})
