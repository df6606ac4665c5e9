package identity_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/identity"
	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/store"
)

const (
	seedUser   = "65a0000000000000000000a1"
	seedAgentA = "65a0000000000000000000b1"
	seedAgentB = "65a0000000000000000000b2"
)

var _ = Describe("Resolver", func() {
	var (
		ctx      context.Context
		st       *store.MemoryStore
		resolver *identity.Resolver
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemoryStore()
		resolver = identity.NewResolver(st)

		Expect(st.UpsertParty(ctx, &model.Party{ID: seedUser, Role: model.RoleUser, Name: "Ada", Email: "ada@example.com"})).To(Succeed())
		Expect(st.UpsertParty(ctx, &model.Party{ID: seedAgentA, Role: model.RoleAgent, Name: "Zed", Email: "zed@example.com"})).To(Succeed())
		Expect(st.UpsertParty(ctx, &model.Party{ID: seedAgentB, Role: model.RoleAgent, Name: "Bea", Email: "bea@example.com"})).To(Succeed())
	})

	Describe("Resolve", func() {
		It("accepts an existing party with the expected role", func() {
			Expect(resolver.Resolve(ctx, seedUser, model.RoleUser)).To(Succeed())
			Expect(resolver.Resolve(ctx, seedAgentA, model.RoleAgent)).To(Succeed())
		})

		It("reports malformed identifiers", func() {
			err := resolver.Resolve(ctx, "not-an-id", model.RoleUser)
			Expect(errors.Is(err, model.ErrInvalidIdentifier)).To(BeTrue())
		})

		It("reports unknown parties as not found", func() {
			err := resolver.Resolve(ctx, model.NewID(), model.RoleUser)
			Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())
		})

		It("treats a party with the wrong role as not found", func() {
			err := resolver.Resolve(ctx, seedAgentA, model.RoleUser)
			Expect(errors.Is(err, model.ErrNotFound)).To(BeTrue())
		})
	})

	It("builds summaries for known ids only", func() {
		summaries, err := resolver.Summaries(ctx, seedUser, model.NewID())
		Expect(err).ToNot(HaveOccurred())
		Expect(summaries).To(HaveLen(1))
		Expect(summaries[seedUser].Name).To(Equal("Ada"))
		Expect(summaries[seedUser].Email).To(Equal("ada@example.com"))
	})

	It("lists agents ordered by name", func() {
		agents, err := resolver.Agents(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(agents).To(HaveLen(2))
		Expect(agents[0].Name).To(Equal("Bea"))
		Expect(agents[1].Name).To(Equal("Zed"))
	})
})

var _ = Describe("LoadSeed", func() {
	var (
		ctx    context.Context
		st     *store.MemoryStore
		tmpDir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemoryStore()

		var err error
		tmpDir, err = os.MkdirTemp("", "seed_test_*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	write := func(body string) string {
		path := filepath.Join(tmpDir, "parties.json")
		Expect(os.WriteFile(path, []byte(body), 0o600)).To(Succeed())
		return path
	}

	It("upserts every party in the file", func() {
		path := write(`[
			{"id": "` + seedUser + `", "role": "user", "name": "Ada", "email": "ada@example.com"},
			{"id": "` + seedAgentA + `", "role": "agent", "name": "Zed", "email": "zed@example.com"}
		]`)

		n, err := identity.LoadSeed(ctx, st, path)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(2))

		ok, err := st.PartyExists(ctx, seedAgentA, model.RoleAgent)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("stops at the first invalid entry", func() {
		path := write(`[
			{"id": "` + seedUser + `", "role": "user", "name": "Ada"},
			{"id": "` + seedAgentA + `", "role": "admin", "name": "Zed"}
		]`)

		n, err := identity.LoadSeed(ctx, st, path)
		Expect(err).To(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("fails on a missing file", func() {
		_, err := identity.LoadSeed(ctx, st, filepath.Join(tmpDir, "missing.json"))
		Expect(err).To(HaveOccurred())
	})
})
