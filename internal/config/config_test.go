package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/config"
)

var _ = Describe("Load", func() {
	setenv := func(key, value string) {
		old, had := os.LookupEnv(key)
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(func() {
			if had {
				os.Setenv(key, old)
			} else {
				os.Unsetenv(key)
			}
		})
	}

	It("falls back to defaults", func() {
		setenv("STORE_DRIVER", "")
		setenv("WS_SEND_BUFFER", "")

		cfg := config.Load()
		Expect(cfg.StoreDriver).To(Equal("memory"))
		Expect(cfg.WSSendBuffer).To(Equal(64))
		Expect(cfg.RateLimitWindow).To(Equal(time.Minute))
		Expect(cfg.EventsEnabled).To(BeFalse())
	})

	It("reads typed values from the environment", func() {
		setenv("ENV", "development")
		setenv("STORE_DRIVER", "postgres")
		setenv("EVENTS_ENABLED", "true")
		setenv("WS_SEND_BUFFER", "8")
		setenv("SSE_HEARTBEAT", "5s")
		setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

		cfg := config.Load()
		Expect(cfg.Development()).To(BeTrue())
		Expect(cfg.StoreDriver).To(Equal("postgres"))
		Expect(cfg.EventsEnabled).To(BeTrue())
		Expect(cfg.WSSendBuffer).To(Equal(8))
		Expect(cfg.SSEHeartbeat).To(Equal(5 * time.Second))
		Expect(cfg.AllowedOrigins).To(Equal([]string{"https://a.example", "https://b.example"}))
	})

	It("ignores malformed numbers", func() {
		setenv("RATE_LIMIT_REQUESTS", "lots")
		setenv("RATE_LIMIT_WINDOW", "soon")

		cfg := config.Load()
		Expect(cfg.RateLimitRequests).To(Equal(120))
		Expect(cfg.RateLimitWindow).To(Equal(time.Minute))
	})
})
