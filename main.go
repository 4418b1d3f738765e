package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/tournament-chat/modules/activity"
	"github.com/example/tournament-chat/modules/api"
	"github.com/example/tournament-chat/modules/chat"
	"github.com/example/tournament-chat/modules/registry"
	"github.com/example/tournament-chat/modules/store"
	"github.com/example/tournament-chat/modules/unread"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Tournament Chat - Fiber + WebSocket + GORM ===")

	cfg := loadConfig()
	if cfg.API.JWTSecret == defaultJWTSecret {
		log.Println("Warning: JWT_SECRET_KEY is not set, using the development secret")
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	db, err := store.Open(cfg.DBPath, cfg.DBDebug)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	// Create modules
	storeModule := store.NewModule(db, cfg.DBPath, logger)
	repo := storeModule.Repository()

	registryModule := registry.NewModule(repo, logger)

	unreadModule, err := unread.NewModule(cfg.Unread, repo, logger)
	if err != nil {
		log.Fatalf("Failed to create unread module: %v", err)
	}

	chatModule := chat.NewModule(cfg.Session, repo, registryModule.GetRegistry(), unreadModule.GetTracker(), logger)
	activityModule := activity.NewModule(logger)
	apiModule := api.NewModule(cfg.API, logger)

	// Inject live-session collaborators into the API module.
	// (These are in-process objects, not exposed via ServiceContainer)
	apiModule.SetGateway(chatModule.Gateway())
	apiModule.SetActivity(activityModule.Stats())

	// Register modules with the framework.
	// - store: SQLite message store (GORM)
	// - registry: live connections per room
	// - unread: unread counter cache (memory or Redis)
	// - chat: room services, broadcaster and sessions (ServiceProviderModule + EventEmitterModule)
	// - activity: room activity stats (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server, depends on chat
	app.Register(storeModule)
	app.Register(registryModule)
	app.Register(unreadModule)
	app.Register(chatModule)
	app.Register(activityModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg Config) {
	port := cfg.API.Port

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Database: %s", cfg.DBPath)
	log.Printf("  - Unread cache: %s", cfg.Unread.Backend)
	log.Printf("  - Delivery timeout: %s", cfg.Session.DeliverTimeout)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                          - Health check")
	log.Println("  GET    /api/v1/rooms                    - List my rooms with unread counts")
	log.Println("  POST   /api/v1/rooms                    - Create a room")
	log.Println("  GET    /api/v1/rooms/:id                - Room details")
	log.Println("  GET    /api/v1/rooms/:id/messages       - Messages after ?since=")
	log.Println("  POST   /api/v1/rooms/:id/read           - Mark room read")
	log.Println("  POST   /api/v1/rooms/:id/participants   - Invite a user (room admin)")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?token=<jwt>):", port)
	log.Println("  Frames: join, leave, message, read")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
