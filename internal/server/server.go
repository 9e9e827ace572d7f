package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketplace-chat/internal/auth"
	"github.com/fathima-sithara/marketplace-chat/internal/cache"
	"github.com/fathima-sithara/marketplace-chat/internal/events"
	"github.com/fathima-sithara/marketplace-chat/internal/handlers"
	"github.com/fathima-sithara/marketplace-chat/internal/media"
	"github.com/fathima-sithara/marketplace-chat/internal/middleware"
	"github.com/fathima-sithara/marketplace-chat/internal/repository"
	"github.com/fathima-sithara/marketplace-chat/internal/ws"
)

// Deps carries everything the HTTP layer needs. Verifier and Redis are
// optional: without a verifier the API trusts the ids in the request (local
// development), without Redis the write endpoints are not rate limited.
type Deps struct {
	Repo     repository.Repository
	Unread   cache.Unread
	Pub      events.Publisher
	Hub      *ws.Hub
	Media    *media.Service
	Verifier *auth.Verifier
	Redis    *redis.Client
	Presence cache.Presence
	Log      *zap.SugaredLogger
}

func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 << 20, // base64 payloads run ~4/3 of the raw file
	})
	app.Use(fiberlogger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	mh := handlers.NewMessageHandler(d.Repo, d.Unread, d.Presence, d.Pub, d.Hub, d.Log)
	uh := handlers.NewUploadHandler(d.Media, d.Log)

	api := app.Group("/api")
	if d.Verifier != nil {
		api.Use(auth.Middleware(d.Verifier))
	}
	if d.Presence != nil {
		api.Use(func(c *fiber.Ctx) error {
			if id := auth.CallerID(c); id != "" {
				if err := d.Presence.TouchPresence(c.Context(), id); err != nil {
					d.Log.Debugw("presence touch", "err", err)
				}
			}
			return c.Next()
		})
	}

	var writeGuard fiber.Handler
	if d.Redis != nil {
		rl := middleware.NewRateLimiter(d.Redis, "rl:chat", 30, time.Minute)
		writeGuard = rl.ByKey(func(c *fiber.Ctx) string {
			if id := auth.CallerID(c); id != "" {
				return id
			}
			return c.IP()
		})
	} else {
		writeGuard = func(c *fiber.Ctx) error { return c.Next() }
	}

	api.Get("/messages", mh.Get)
	api.Post("/messages", writeGuard, mh.Post)
	api.Patch("/messages", mh.Patch)
	api.Get("/notifications", mh.Notifications)
	api.Post("/upload", writeGuard, uh.Post)

	if d.Hub != nil {
		api.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		api.Get("/ws", websocket.New(wsHandler(d)))
	}

	return app
}

func wsHandler(d Deps) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		if userID == "" {
			userID = conn.Query("userId")
		}
		if userID == "" {
			_ = conn.Close()
			return
		}
		client := ws.NewClient(userID, conn)
		d.Hub.AddClient(client)
		go client.WritePump()
		defer func() {
			d.Hub.RemoveClient(client)
			client.CloseSend()
			_ = conn.Close()
		}()
		for {
			// inbound frames are ignored; the socket is a one-way feed
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
