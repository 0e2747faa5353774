package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"chain-roulette/internal/account"
	"chain-roulette/internal/bets"
	"chain-roulette/internal/chain"
	"chain-roulette/internal/config"
	"chain-roulette/internal/events"
	"chain-roulette/internal/logging"
	"chain-roulette/internal/rounds"
	httptransport "chain-roulette/internal/transport/http"
	"chain-roulette/internal/watch"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpc := chain.NewRPCClient(cfg.Chain.RPCURL, cfg.Chain.ProgramID)
	ws, err := chain.DialWS(ctx, cfg.Chain.WSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("ws dial failed")
	}
	defer ws.Close()

	buf := events.NewBuffer(cfg.Server.EventBufferCap)
	defer buf.Close()
	betsCol := bets.NewCollection(rpc, cfg.Chain.PlayerAddress)
	rec := rounds.NewReconciler(cfg.Chain.ProgramID, cfg.Chain.PlayerAddress, betsCol, buf)

	if err := watch.Bootstrap(ctx, rpc, rec, cfg.Chain.ProgramID); err != nil {
		log.Fatal().Err(err).Msg("initial seed failed")
	}
	if err := betsCol.Refresh(ctx); err != nil {
		log.Fatal().Err(err).Msg("bets refresh failed")
	}

	go runWatch(ctx, ws, rpc, rec, cfg.Chain.ProgramID)

	r := httptransport.NewRouter(rec, betsCol, buf, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// runWatch keeps the account subscriptions alive for the life of the
// process. A fatal cache error triggers a full reseed before the watch
// resumes.
func runWatch(ctx context.Context, ws *chain.WSClient, rpc *chain.RPCClient, rec *rounds.Reconciler, programID string) {
	mgr := watch.NewManager(ws, rec, account.TableAddress(programID))
	for {
		err := mgr.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("watch stopped, reseeding")
		for {
			err := watch.Bootstrap(ctx, rpc, rec, programID)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("reseed failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}
