package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/service"
)

var _ = Describe("MessageService", func() {
	var (
		ctx  context.Context
		f    *fixture
		conv *model.Conversation
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(nil)
		conv = f.conversation()
	})

	send := func(role model.Role, text string) {
		sender := f.userID
		if role == model.RoleAgent {
			sender = f.agentID
		}
		_, err := f.coordinator.Send(ctx, service.TransportHTTP, &model.SendMessageRequest{
			ConversationID: conv.ID,
			SenderID:       sender,
			SenderRole:     role,
			Text:           text,
		})
		Expect(err).ToNot(HaveOccurred())
	}

	Describe("List", func() {
		It("returns an empty log for a fresh conversation", func() {
			msgs, err := f.messages.List(ctx, conv.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(msgs).ToNot(BeNil())
			Expect(msgs).To(BeEmpty())
		})

		It("reports a missing conversation", func() {
			_, err := f.messages.List(ctx, model.NewID())
			Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())
		})

		It("reports a malformed conversation id", func() {
			_, err := f.messages.List(ctx, "xyz")
			Expect(errors.Is(err, model.ErrInvalidIdentifier)).To(BeTrue())
		})
	})

	Describe("MarkRead", func() {
		It("marks the counterpart's messages once", func() {
			send(model.RoleUser, "one")
			send(model.RoleUser, "two")
			send(model.RoleUser, "three")
			send(model.RoleAgent, "reply")

			n, err := f.messages.MarkRead(ctx, conv.ID, model.RoleAgent)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(3)))

			n, err = f.messages.MarkRead(ctx, conv.ID, model.RoleAgent)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(BeZero())

			msgs, err := f.messages.List(ctx, conv.ID)
			Expect(err).ToNot(HaveOccurred())
			for _, m := range msgs {
				Expect(m.Read).To(Equal(m.SenderRole == model.RoleUser))
			}

			Expect(f.events.read).To(HaveLen(1))
			Expect(f.events.read[0].ModifiedCount).To(Equal(int64(3)))
		})

		It("validates the reader role", func() {
			_, err := f.messages.MarkRead(ctx, conv.ID, "admin")
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())

			_, err = f.messages.MarkRead(ctx, conv.ID, "")
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())
		})

		It("reports a missing conversation", func() {
			_, err := f.messages.MarkRead(ctx, model.NewID(), model.RoleUser)
			Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())
		})
	})
})
