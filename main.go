package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/willson5127/holocardserver/cards"
	"github.com/willson5127/holocardserver/config"
	"github.com/willson5127/holocardserver/loghandler"
	"github.com/willson5127/holocardserver/matchmaking"
	"github.com/willson5127/holocardserver/storage"
	"github.com/willson5127/holocardserver/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found; using environment variables.")
	}

	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, slog.LevelInfo)))

	cfg := config.Load()

	db, err := cards.LoadDatabase(cfg.CardDefinitionsPath)
	if err != nil {
		log.Fatalf("Failed to load card definitions: %v", err)
	}
	slog.Info("card definitions loaded", "tag", "main", "path", cfg.CardDefinitionsPath, "cards", len(db.AllCardIDs()))

	if cfg.AuthJWKSURL == "" {
		slog.Info("auth disabled (AUTH_JWKS_URL not set)", "tag", "main")
	} else {
		slog.Info("auth configured", "tag", "main", "jwks_url", cfg.AuthJWKSURL)
	}

	// Match-log storage (optional; DATABASE_URL empty = no persistence).
	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	mm := matchmaking.NewMatchmaker(cfg, db, store)

	hub := ws.NewHub(cfg, mm)
	go hub.Run(ctx)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	})

	// GET /api/matches?player_id=...&limit=N — recent match logs for a player.
	http.HandleFunc("/api/matches", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		playerID := r.URL.Query().Get("player_id")
		if playerID == "" {
			http.Error(w, "player_id required", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list := []storage.MatchLog{}
		if store != nil {
			var err error
			list, err = store.ListByPlayer(r.Context(), playerID, limit)
			if err != nil {
				slog.Error("list match logs", "tag", "main", "err", err)
				http.Error(w, "failed to load match logs", http.StatusInternalServerError)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	})

	addr := fmt.Sprintf(":%d", cfg.WSPort)
	slog.Info("holocard server listening", "tag", "main", "addr", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
