package service_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/identity"
	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/realtime"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/internal/store"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

var _ = Describe("Coordinator with live rooms", func() {
	const sends = 60

	var (
		ctx           context.Context
		st            *store.MemoryStore
		hub           *realtime.Hub
		conversations *service.ConversationService
		messages      *service.MessageService
		coordinator   *service.Coordinator
		conv          *model.Conversation
		userID        string
		agentID       string
	)

	BeforeEach(func() {
		ctx = context.Background()
		log := logger.NewNop()
		st = store.NewMemoryStore()
		userID, agentID = model.NewID(), model.NewID()
		Expect(st.UpsertParty(ctx, &model.Party{ID: userID, Role: model.RoleUser, Name: "Ada"})).To(Succeed())
		Expect(st.UpsertParty(ctx, &model.Party{ID: agentID, Role: model.RoleAgent, Name: "Zed"})).To(Succeed())

		hub = realtime.NewHub(log)
		conversations = service.NewConversationService(st, identity.NewResolver(st), log)
		messages = service.NewMessageService(st, conversations, nil, log)
		coordinator = service.NewCoordinator(conversations, messages, hub, nil, log)

		var err error
		conv, _, err = conversations.FindOrCreate(ctx, userID, agentID)
		Expect(err).ToNot(HaveOccurred())
	})

	It("keeps history, fan-out and summary consistent under interleaved transports", func() {
		members := []*realtime.Conn{realtime.NewConn(sends * 2), realtime.NewConn(sends * 2)}
		for _, c := range members {
			hub.Join(c, conv.ID)
		}

		var wg sync.WaitGroup
		for i := 0; i < sends; i++ {
			req := &model.SendMessageRequest{
				ConversationID: conv.ID,
				SenderID:       userID,
				SenderRole:     model.RoleUser,
				Text:           fmt.Sprintf("message %d", i),
			}
			transport := service.TransportHTTP
			if i%2 == 1 {
				req.SenderID, req.SenderRole = agentID, model.RoleAgent
				transport = service.TransportWebSocket
			}

			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				res, err := coordinator.Send(ctx, transport, req)
				Expect(err).ToNot(HaveOccurred())
				Expect(res.SummaryStale).To(BeFalse())
			}()
		}
		wg.Wait()

		history, err := messages.List(ctx, conv.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(history).To(HaveLen(sends))
		ids := make(map[string]struct{}, sends)
		for i := range history {
			ids[history[i].ID] = struct{}{}
			if i > 0 {
				Expect(history[i].CreatedAt.After(history[i-1].CreatedAt)).To(BeTrue())
			}
		}

		for _, c := range members {
			seen := make(map[string]struct{}, sends)
			for len(seen) < sends {
				var ev model.Event
				Expect(c.Events()).To(Receive(&ev))
				Expect(ev.Type).To(Equal(model.EventNewMessage))
				msg, ok := ev.Data.(*model.Message)
				Expect(ok).To(BeTrue())
				Expect(ids).To(HaveKey(msg.ID))
				Expect(seen).ToNot(HaveKey(msg.ID))
				seen[msg.ID] = struct{}{}
			}
			Expect(c.Events()).To(BeEmpty())
		}

		last := history[len(history)-1]
		got, err := conversations.Get(ctx, conv.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(got.LastMessage).ToNot(BeNil())
		Expect(got.LastMessage.Text).To(Equal(last.Text))
		Expect(got.LastMessage.Timestamp).To(BeTemporally("==", last.CreatedAt))
		Expect(got.UpdatedAt).To(BeTemporally("==", last.CreatedAt))
	})
})
