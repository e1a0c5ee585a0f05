package server

import (
	"context"
	"net"
	"net/http"

	ethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"cosmossdk.io/log"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/config"
)

// StartJSONRPC registers apis on a go-ethereum rpc.Server and serves it
// over both plain HTTP (JSONRPCAddress) and WebSocket
// (JSONRPCWsAddress), following the same RegisterName/errgroup
// start-and-wait-for-shutdown shape the teacher's cosmos/evm-backed
// version of this file used.
func StartJSONRPC(
	ctx context.Context,
	logger log.Logger,
	g *errgroup.Group,
	cfg *config.Config,
	apis []ethrpc.API,
) (*http.Server, *http.Server, error) {
	rpcServer := ethrpc.NewServer()

	for _, api := range apis {
		if err := rpcServer.RegisterName(api.Namespace, api.Service); err != nil {
			logger.Error("failed to register service in JSON RPC namespace", "namespace", api.Namespace, "error", err)
			return nil, nil, err
		}
	}

	router := mux.NewRouter()
	router.Handle("/", rpcServer).Methods(http.MethodPost)
	corsHandler := cors.Default().Handler(router)

	httpSrv := &http.Server{
		Addr:    cfg.JSONRPCAddress,
		Handler: corsHandler,
	}
	if err := serveAndWait(ctx, logger, g, httpSrv, "JSON-RPC HTTP server"); err != nil {
		return nil, nil, err
	}

	var wsSrv *http.Server
	if cfg.JSONRPCWsAddress != "" {
		wsSrv = &http.Server{
			Addr:    cfg.JSONRPCWsAddress,
			Handler: rpcServer.WebsocketHandler([]string{"*"}),
		}
		if err := serveAndWait(ctx, logger, g, wsSrv, "JSON-RPC WebSocket server"); err != nil {
			return nil, nil, err
		}
	}

	return httpSrv, wsSrv, nil
}

// serveAndWait starts srv in the background and registers a goroutine on
// g that blocks until either ctx is canceled (graceful shutdown) or the
// listener itself fails.
func serveAndWait(ctx context.Context, logger log.Logger, g *errgroup.Group, srv *http.Server, name string) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	g.Go(func() error {
		logger.Info("starting " + name, "address", srv.Addr)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(ln) }()

		select {
		case <-ctx.Done():
			logger.Info("stopping "+name, "address", srv.Addr)
			return srv.Shutdown(context.Background())
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			logger.Error("failed to serve "+name, "error", err)
			return err
		}
	})
	return nil
}
