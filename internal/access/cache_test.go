package access_test

import (
	"context"

	"github.com/alicebob/miniredis/v2"
	"github.com/fieldline/fieldline/internal/access"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

// cacheBehaviour runs the same expectations against every Cache implementation.
func cacheBehaviour(newCache func() access.Cache) {
	var (
		ctx   context.Context
		cache access.Cache
	)

	BeforeEach(func() {
		ctx = context.Background()
		cache = newCache()
	})

	found := func(u, p int64) bool {
		_, ok, err := cache.Get(ctx, access.Key{UserID: u, ProjectID: p})
		Expect(err).NotTo(HaveOccurred())
		return ok
	}

	It("reports a miss for unknown keys", func() {
		Expect(found(1, 1)).To(BeFalse())
	})

	It("stores grants and denials", func() {
		Expect(cache.Set(ctx, access.Key{UserID: 1, ProjectID: 2}, true)).To(Succeed())
		Expect(cache.Set(ctx, access.Key{UserID: 1, ProjectID: 3}, false)).To(Succeed())

		allowed, ok, err := cache.Get(ctx, access.Key{UserID: 1, ProjectID: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(allowed).To(BeTrue())

		allowed, ok, err = cache.Get(ctx, access.Key{UserID: 1, ProjectID: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(allowed).To(BeFalse())
	})

	It("does not confuse ids sharing a digit prefix", func() {
		for _, k := range []access.Key{
			{UserID: 1, ProjectID: 5},
			{UserID: 12, ProjectID: 5},
			{UserID: 3, ProjectID: 15},
			{UserID: 3, ProjectID: 5},
		} {
			Expect(cache.Set(ctx, k, true)).To(Succeed())
		}

		Expect(cache.DeleteUser(ctx, 1)).To(Succeed())
		Expect(found(1, 5)).To(BeFalse())
		Expect(found(12, 5)).To(BeTrue())

		Expect(cache.DeleteProject(ctx, 5)).To(Succeed())
		Expect(found(12, 5)).To(BeFalse())
		Expect(found(3, 5)).To(BeFalse())
		Expect(found(3, 15)).To(BeTrue())
	})

	It("deletes a single entry", func() {
		Expect(cache.Set(ctx, access.Key{UserID: 1, ProjectID: 2}, true)).To(Succeed())
		Expect(cache.Set(ctx, access.Key{UserID: 2, ProjectID: 1}, true)).To(Succeed())

		Expect(cache.Delete(ctx, access.Key{UserID: 1, ProjectID: 2})).To(Succeed())
		Expect(found(1, 2)).To(BeFalse())
		Expect(found(2, 1)).To(BeTrue())
	})

	It("flushes everything", func() {
		Expect(cache.Set(ctx, access.Key{UserID: 1, ProjectID: 2}, true)).To(Succeed())
		Expect(cache.Set(ctx, access.Key{UserID: 2, ProjectID: 1}, true)).To(Succeed())

		Expect(cache.Flush(ctx)).To(Succeed())
		Expect(found(1, 2)).To(BeFalse())
		Expect(found(2, 1)).To(BeFalse())
	})

	It("answers pings", func() {
		Expect(cache.Ping(ctx)).To(Succeed())
	})
}

var _ = Describe("MemoryCache", func() {
	cacheBehaviour(func() access.Cache { return access.NewMemoryCache() })
})

var _ = Describe("RedisCache", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	})

	AfterEach(func() {
		_ = client.Close()
		mr.Close()
	})

	cacheBehaviour(func() access.Cache { return access.NewRedisCache(client, "test:access:") })

	It("namespaces keys under the prefix", func() {
		cache := access.NewRedisCache(client, "test:access:")
		Expect(cache.Set(context.Background(), access.Key{UserID: 4, ProjectID: 9}, true)).To(Succeed())

		val, err := mr.Get("test:access:4:9")
		Expect(err).NotTo(HaveOccurred())
		Expect(val).To(Equal("1"))
	})

	It("leaves keys outside the prefix on flush", func() {
		Expect(mr.Set("other:key", "x")).To(Succeed())
		cache := access.NewRedisCache(client, "test:access:")
		Expect(cache.Flush(context.Background())).To(Succeed())
		Expect(mr.Exists("other:key")).To(BeTrue())
	})

	Describe("with glob metacharacters in the prefix", func() {
		const prefix = "t*[a]?:"

		BeforeEach(func() {
			// keys a raw "t*[a]?:" pattern would also match
			Expect(mr.Set("tenant-xa1:4:9", "1")).To(Succeed())
			Expect(mr.Set("tax:4:9", "1")).To(Succeed())
		})

		It("flushes only its own keys", func() {
			ctx := context.Background()
			cache := access.NewRedisCache(client, prefix)
			Expect(cache.Set(ctx, access.Key{UserID: 4, ProjectID: 9}, true)).To(Succeed())

			Expect(cache.Flush(ctx)).To(Succeed())

			Expect(mr.Exists(prefix + "4:9")).To(BeFalse())
			Expect(mr.Exists("tenant-xa1:4:9")).To(BeTrue())
			Expect(mr.Exists("tax:4:9")).To(BeTrue())
		})

		It("scopes user and project deletes to its own keys", func() {
			ctx := context.Background()
			cache := access.NewRedisCache(client, prefix)
			Expect(cache.Set(ctx, access.Key{UserID: 4, ProjectID: 9}, true)).To(Succeed())
			Expect(cache.Set(ctx, access.Key{UserID: 5, ProjectID: 9}, true)).To(Succeed())

			Expect(cache.DeleteUser(ctx, 4)).To(Succeed())
			Expect(mr.Exists(prefix + "4:9")).To(BeFalse())
			Expect(mr.Exists(prefix + "5:9")).To(BeTrue())

			Expect(cache.DeleteProject(ctx, 9)).To(Succeed())
			Expect(mr.Exists(prefix + "5:9")).To(BeFalse())
			Expect(mr.Exists("tenant-xa1:4:9")).To(BeTrue())
			Expect(mr.Exists("tax:4:9")).To(BeTrue())
		})
	})
})
