package service_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/model"
)

var _ = Describe("ConversationService", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(nil)
	})

	Describe("FindOrCreate", func() {
		It("creates on first contact and returns the same conversation afterwards", func() {
			conv, created, err := f.conversations.FindOrCreate(ctx, f.userID, f.agentID)
			Expect(err).ToNot(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(conv.UserID).To(Equal(f.userID))
			Expect(conv.AgentID).To(Equal(f.agentID))
			Expect(conv.User).ToNot(BeNil())
			Expect(conv.User.Name).To(Equal("Ada"))
			Expect(conv.Agent).ToNot(BeNil())
			Expect(conv.Agent.Name).To(Equal("Zed"))

			again, created, err := f.conversations.FindOrCreate(ctx, f.userID, f.agentID)
			Expect(err).ToNot(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(again.ID).To(Equal(conv.ID))
		})

		It("returns exactly one conversation for concurrent first contact", func() {
			const workers = 16
			ids := make([]string, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					conv, _, err := f.conversations.FindOrCreate(ctx, f.userID, f.agentID)
					Expect(err).ToNot(HaveOccurred())
					ids[i] = conv.ID
				}(i)
			}
			wg.Wait()

			for _, id := range ids {
				Expect(id).To(Equal(ids[0]))
			}
			convs, err := f.conversations.ListByUser(ctx, f.userID, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(convs).To(HaveLen(1))
		})

		It("rejects malformed identifiers", func() {
			_, _, err := f.conversations.FindOrCreate(ctx, "bogus", f.agentID)
			Expect(errors.Is(err, model.ErrInvalidIdentifier)).To(BeTrue())
		})

		It("rejects unknown parties and swapped roles", func() {
			_, _, err := f.conversations.FindOrCreate(ctx, model.NewID(), f.agentID)
			Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())

			_, _, err = f.conversations.FindOrCreate(ctx, f.agentID, f.userID)
			Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("listing", func() {
		It("attaches the counterpart summary", func() {
			f.conversation()

			byUser, err := f.conversations.ListByUser(ctx, f.userID, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(byUser).To(HaveLen(1))
			Expect(byUser[0].Agent).ToNot(BeNil())
			Expect(byUser[0].Agent.Name).To(Equal("Zed"))
			Expect(byUser[0].User).To(BeNil())

			byAgent, err := f.conversations.ListByAgent(ctx, f.agentID, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(byAgent).To(HaveLen(1))
			Expect(byAgent[0].User.Name).To(Equal("Ada"))
		})

		It("returns an empty list for a party without conversations", func() {
			convs, err := f.conversations.ListByUser(ctx, model.NewID(), "")
			Expect(err).ToNot(HaveOccurred())
			Expect(convs).ToNot(BeNil())
			Expect(convs).To(BeEmpty())
		})

		It("rejects malformed ids and unknown statuses", func() {
			_, err := f.conversations.ListByUser(ctx, "nope", "")
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())

			_, err = f.conversations.ListByAgent(ctx, f.agentID, "deleted")
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())
		})
	})

	Describe("Get and SetStatus", func() {
		It("attaches both summaries", func() {
			conv := f.conversation()

			got, err := f.conversations.Get(ctx, conv.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(got.User.Name).To(Equal("Ada"))
			Expect(got.Agent.Name).To(Equal("Zed"))
		})

		It("reports missing conversations", func() {
			_, err := f.conversations.Get(ctx, model.NewID())
			Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())
		})

		It("archives without deleting", func() {
			conv := f.conversation()

			archived, err := f.conversations.SetStatus(ctx, conv.ID, model.StatusArchived)
			Expect(err).ToNot(HaveOccurred())
			Expect(archived.Status).To(Equal(model.StatusArchived))

			active, err := f.conversations.ListByUser(ctx, f.userID, model.StatusActive)
			Expect(err).ToNot(HaveOccurred())
			Expect(active).To(BeEmpty())

			all, err := f.conversations.ListByUser(ctx, f.userID, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("rejects unknown statuses", func() {
			conv := f.conversation()
			_, err := f.conversations.SetStatus(ctx, conv.ID, "deleted")
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())
		})
	})
})
