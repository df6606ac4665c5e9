package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/internal/store"
)

var _ = Describe("Coordinator", func() {
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

	request := func(role model.Role, text string) *model.SendMessageRequest {
		sender := f.userID
		if role == model.RoleAgent {
			sender = f.agentID
		}
		return &model.SendMessageRequest{
			ConversationID: conv.ID,
			SenderID:       sender,
			SenderRole:     role,
			Text:           text,
		}
	}

	It("persists, summarizes, broadcasts and records the message", func() {
		res, err := f.coordinator.Send(ctx, service.TransportHTTP, request(model.RoleUser, "Hi"))
		Expect(err).ToNot(HaveOccurred())
		Expect(res.SummaryStale).To(BeFalse())
		Expect(res.Delivered).To(Equal(1))
		Expect(res.Message.Read).To(BeFalse())

		got, err := f.conversations.Get(ctx, conv.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(got.LastMessage).ToNot(BeNil())
		Expect(got.LastMessage.Text).To(Equal("Hi"))
		Expect(got.LastMessage.Timestamp).To(BeTemporally("==", res.Message.CreatedAt))
		Expect(got.UpdatedAt).To(BeTemporally("==", res.Message.CreatedAt))

		Expect(f.broadcaster.count()).To(Equal(1))
		Expect(f.events.created).To(HaveLen(1))
		Expect(f.events.created[0].Transport).To(Equal(service.TransportHTTP))
	})

	It("produces identical records from both transports", func() {
		_, err := f.coordinator.Send(ctx, service.TransportHTTP, request(model.RoleUser, "from http"))
		Expect(err).ToNot(HaveOccurred())
		_, err = f.coordinator.Send(ctx, service.TransportWebSocket, request(model.RoleAgent, "from socket"))
		Expect(err).ToNot(HaveOccurred())

		msgs, err := f.messages.List(ctx, conv.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Text).To(Equal("from http"))
		Expect(msgs[1].Text).To(Equal("from socket"))
		Expect(msgs[1].CreatedAt.After(msgs[0].CreatedAt)).To(BeTrue())

		got, err := f.conversations.Get(ctx, conv.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(got.LastMessage.Text).To(Equal("from socket"))
	})

	DescribeTable("rejects invalid input without side effects",
		func(mutate func(*model.SendMessageRequest), kind error) {
			req := request(model.RoleUser, "hello")
			mutate(req)

			_, err := f.coordinator.Send(ctx, service.TransportWebSocket, req)
			Expect(errors.Is(err, kind)).To(BeTrue(), "got %v", err)

			msgs, err := f.messages.List(ctx, conv.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(msgs).To(BeEmpty())
			Expect(f.broadcaster.count()).To(BeZero())
			Expect(f.events.created).To(BeEmpty())
		},
		Entry("unknown role", func(r *model.SendMessageRequest) { r.SenderRole = "admin" }, model.ErrValidation),
		Entry("missing role", func(r *model.SendMessageRequest) { r.SenderRole = "" }, model.ErrValidation),
		Entry("empty text", func(r *model.SendMessageRequest) { r.Text = "" }, model.ErrValidation),
		Entry("blank text", func(r *model.SendMessageRequest) { r.Text = "   \n" }, model.ErrValidation),
		Entry("oversized text", func(r *model.SendMessageRequest) { r.Text = strings.Repeat("x", service.MaxTextLength+1) }, model.ErrValidation),
		Entry("invalid utf-8", func(r *model.SendMessageRequest) { r.Text = "bad \xff byte" }, model.ErrValidation),
		Entry("malformed conversation id", func(r *model.SendMessageRequest) { r.ConversationID = "123" }, model.ErrValidation),
		Entry("sender is not the participant", func(r *model.SendMessageRequest) { r.SenderID = model.NewID() }, model.ErrValidation),
		Entry("role does not match the sender", func(r *model.SendMessageRequest) { r.SenderRole = model.RoleAgent }, model.ErrValidation),
	)

	It("reports a missing conversation", func() {
		req := request(model.RoleUser, "hello")
		req.ConversationID = model.NewID()

		_, err := f.coordinator.Send(ctx, service.TransportHTTP, req)
		Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())
		Expect(f.broadcaster.count()).To(BeZero())
	})

	It("accepts text at the maximum length", func() {
		_, err := f.coordinator.Send(ctx, service.TransportHTTP, request(model.RoleUser, strings.Repeat("x", service.MaxTextLength)))
		Expect(err).ToNot(HaveOccurred())
	})

	It("completes the write when the caller has already gone away", func() {
		gone, cancel := context.WithCancel(ctx)
		cancel()

		res, err := f.coordinator.Send(gone, service.TransportWebSocket, request(model.RoleUser, "still here"))
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Message.Text).To(Equal("still here"))
	})

	It("ignores event log failures", func() {
		f.events.fail = true

		res, err := f.coordinator.Send(ctx, service.TransportHTTP, request(model.RoleUser, "Hi"))
		Expect(err).ToNot(HaveOccurred())
		Expect(res.SummaryStale).To(BeFalse())
	})

	Context("when the summary update fails", func() {
		BeforeEach(func() {
			f = newFixture(func(st *store.MemoryStore) store.ConversationStore {
				return brokenSummaries{MemoryStore: st}
			})
			conv = f.conversation()
		})

		It("keeps the message and flags the summary as stale", func() {
			res, err := f.coordinator.Send(ctx, service.TransportHTTP, request(model.RoleUser, "Hi"))
			Expect(err).ToNot(HaveOccurred())
			Expect(res.SummaryStale).To(BeTrue())

			msgs, err := f.messages.List(ctx, conv.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(f.broadcaster.count()).To(Equal(1))
			Expect(f.events.created[0].SummaryStale).To(BeTrue())

			got, err := f.conversations.Get(ctx, conv.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(got.LastMessage).To(BeNil())
		})
	})
})
