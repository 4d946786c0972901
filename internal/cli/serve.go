package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/knightmint/knightmint/internal/api"
	"github.com/knightmint/knightmint/internal/catalog"
	"github.com/knightmint/knightmint/internal/config"
	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/payment"
	"github.com/knightmint/knightmint/internal/progress"
	"github.com/knightmint/knightmint/internal/rules"
	"github.com/knightmint/knightmint/internal/session"
	"github.com/knightmint/knightmint/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the puzzle service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// eventRecorder adapts the event log repo to the session layer.
type eventRecorder struct {
	db   *sql.DB
	repo *store.EventRepo
}

func (r *eventRecorder) Record(ctx context.Context, ev domain.ProgressEvent) error {
	return r.repo.Append(ctx, r.db, ev)
}

func runServe() error {
	path := resolveConfigPath()
	if path == "" {
		return fmt.Errorf("no config found: use --config <path>, set KNIGHTMINT_CONFIG, or place config.json next to the binary")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load puzzle catalog: %w", err)
	}
	log.Printf("[serve] catalog loaded: %d puzzles", cat.Size())

	// Progress stores: SQLite for wallet keys, LevelDB for guests.
	sqlProgress := progress.NewSQLStore(db)
	var prog progress.Store = sqlProgress
	if cfg.GuestStoreDir != "" {
		guest, err := progress.OpenLocalStore(cfg.GuestStoreDir)
		if err != nil {
			return fmt.Errorf("open guest store: %w", err)
		}
		defer guest.Close()
		prog = &progress.Routed{Wallet: sqlProgress, Guest: guest}
	}

	portal := payment.NewPortalClient(cfg.PortalBaseURL, cfg.PortalAppID, cfg.PortalAPIKey)
	verifier := payment.NewVerifier(portal, db, cfg.RecipientAddress)

	var purchaser session.Purchaser
	if cfg.WalletBridgeURL != "" {
		wallet := payment.NewWalletBridge(cfg.WalletBridgeURL)
		purchaser = payment.NewFlow(db, wallet, verifier, cfg)
	} else {
		log.Printf("[serve] no wallet bridge configured; unlocks run through the confirm endpoint")
	}

	recorder := &eventRecorder{db: db, repo: &store.EventRepo{}}
	oracle := rules.NewEngine()
	advanceDelay := time.Duration(cfg.AdvanceDelayMs) * time.Millisecond

	sessions := session.NewManager(func(userKey string) *session.Controller {
		return session.NewController(userKey, cat, oracle, prog, recorder, purchaser, advanceDelay)
	})

	handler := &api.Handler{
		Sessions: sessions,
		Progress: prog,
		DB:       db,
		Refs:     &store.ReferenceRepo{},
		Verifier: verifier,
		Prices:   cfg.Prices,
	}
	srv := api.NewServer(handler, cfg.ListenAddr)

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("knightmint listening on %s", cfg.ListenAddr)
	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
