package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/fieldline/fieldline/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventBus", func() {
	var (
		ctx    context.Context
		logBuf *bytes.Buffer
		bus    *events.EventBus
	)

	BeforeEach(func() {
		ctx = context.Background()
		logBuf = &bytes.Buffer{}
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(logBuf, nil)))
	})

	It("runs handlers in subscription order before returning", func() {
		var order []string
		bus.Subscribe(events.EventTypeProjectDeleted, func(context.Context, events.Event) error {
			order = append(order, "first")
			return nil
		})
		bus.Subscribe(events.EventTypeProjectDeleted, func(context.Context, events.Event) error {
			order = append(order, "second")
			return nil
		})

		Expect(bus.PublishSync(ctx, events.NewProjectDeletedEvent(1, 2))).To(Succeed())
		Expect(order).To(Equal([]string{"first", "second"}))
	})

	It("only delivers to handlers of the event's type", func() {
		called := false
		bus.Subscribe(events.EventTypeUserAccessChanged, func(context.Context, events.Event) error {
			called = true
			return nil
		})

		Expect(bus.PublishSync(ctx, events.NewProjectDeletedEvent(1, 2))).To(Succeed())
		Expect(called).To(BeFalse())
	})

	It("keeps running handlers after one fails and joins the errors", func() {
		// Given two failing handlers around a healthy one
		errFirst := errors.New("first down")
		errLast := errors.New("last down")
		ran := 0
		bus.Subscribe(events.EventTypeMembershipChanged, func(context.Context, events.Event) error {
			return errFirst
		})
		bus.Subscribe(events.EventTypeMembershipChanged, func(context.Context, events.Event) error {
			ran++
			return nil
		})
		bus.Subscribe(events.EventTypeMembershipChanged, func(context.Context, events.Event) error {
			return errLast
		})

		// When the event is published
		err := bus.PublishSync(ctx, events.NewMembershipChangedEvent(3, 4, events.MembershipAdded))

		// Then every handler ran and both failures are reported
		Expect(ran).To(Equal(1))
		Expect(err).To(MatchError(errFirst))
		Expect(err).To(MatchError(errLast))
		Expect(err.Error()).To(ContainSubstring(events.EventTypeMembershipChanged))
		Expect(logBuf.String()).To(ContainSubstring("event handler failed"))
	})

	It("succeeds when nobody is subscribed", func() {
		Expect(bus.PublishSync(ctx, events.NewUserAccessChangedEvent(5, events.UserDeactivated))).To(Succeed())
	})
})
