// Command corenet-echo exercises client+server+Bluetooth+TLS end to
// end, grounded on ehrlich-b-go-ublk/cmd/ublk-mem/main.go's flag
// parsing and logging setup.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/corenet-go/corenet"
	"github.com/corenet-go/corenet/async"
	"github.com/corenet-go/corenet/btutils"
	"github.com/corenet-go/corenet/internal/corelog"
	"github.com/corenet-go/corenet/internal/metrics"
	"github.com/corenet-go/corenet/internal/tlsclient"
)

func main() {
	var (
		listen  = flag.String("listen", "", "host:port to accept TCP connections on and echo them back")
		connect = flag.String("connect", "", "host:port to dial and send a line to")
		btScan  = flag.Bool("bt-scan", false, "enumerate paired Bluetooth devices and exit")
		useTLS  = flag.Bool("tls", false, "wrap -connect in a TLS 1.3 handshake")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logCfg := corelog.DefaultConfig()
	if *verbose {
		logCfg.Level = corelog.LevelDebug
	}
	logger := corelog.New(logCfg)
	corelog.SetDefault(logger)

	m := metrics.New()
	obs := metrics.NewObserver(m)

	if err := async.Init(async.Config{Observer: obs}); err != nil {
		logger.Error("failed to start executor", "error", err)
		os.Exit(1)
	}
	defer async.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	switch {
	case *btScan:
		runBTScan(ctx, logger)
	case *listen != "":
		runServer(ctx, logger, *listen)
	case *connect != "":
		runClient(ctx, logger, *connect, *useTLS)
	default:
		fmt.Fprintln(os.Stderr, "usage: corenet-echo [-listen host:port | -connect host:port [-tls] | -bt-scan]")
		os.Exit(2)
	}

	snap := m.Snapshot()
	logger.Info("session metrics", "submitted", snap.Submitted, "completed", snap.Completed, "bytes_sent", snap.BytesSent, "bytes_recv", snap.BytesRecv)
}

func runBTScan(ctx context.Context, logger *corelog.Logger) {
	devices, err := btutils.GetPaired(ctx)
	if err != nil {
		logger.Error("bt-scan failed", "error", err)
		os.Exit(1)
	}
	for _, d := range devices {
		fmt.Printf("%s  %s\n", d.Address, d.Name)
	}
}

func runServer(ctx context.Context, logger *corelog.Logger, addr string) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		logger.Error("invalid -listen address", "error", err)
		os.Exit(1)
	}

	srv, err := corenet.ListenTCP(host, port, corenet.Options{Backlog: 16})
	if err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}
	defer srv.Close(ctx)
	logger.Info("listening", "addr", addr)

	for {
		conn, err := srv.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("accept failed", "error", err)
			continue
		}
		go echoLoop(ctx, logger, conn)
	}
}

func echoLoop(ctx context.Context, logger *corelog.Logger, conn *corenet.Socket) {
	defer conn.Close(ctx)
	buf := make([]byte, 4096)
	for {
		result, err := conn.Recv(ctx, buf)
		if err != nil {
			if !corenet.IsCanceled(err) {
				logger.Debug("connection closed", "error", err)
			}
			return
		}
		if result.Closed {
			return
		}
		if result.Alert != nil {
			logger.Debug("tls alert", "desc", result.Alert.Desc, "fatal", result.Alert.IsFatal)
			if result.Alert.IsFatal {
				return
			}
			continue
		}
		if _, err := conn.Send(ctx, result.Data); err != nil {
			logger.Warn("send failed", "error", err)
			return
		}
	}
}

func runClient(ctx context.Context, logger *corelog.Logger, addr string, useTLS bool) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		logger.Error("invalid -connect address", "error", err)
		os.Exit(1)
	}

	var conn *corenet.Socket
	if useTLS {
		conn, err = corenet.DialTLS(ctx, host, port, tlsclient.Config{}, corenet.Options{})
	} else {
		conn, err = corenet.DialTCP(ctx, host, port, corenet.Options{})
	}
	if err != nil {
		logger.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if _, err := conn.Send(ctx, []byte("hello from corenet-echo\n")); err != nil {
		logger.Error("send failed", "error", err)
		os.Exit(1)
	}
	buf := make([]byte, 4096)
	result, err := conn.Recv(ctx, buf)
	if err != nil {
		logger.Error("recv failed", "error", err)
		os.Exit(1)
	}
	if result.Alert != nil {
		logger.Error("tls alert", "desc", result.Alert.Desc, "fatal", result.Alert.IsFatal)
		os.Exit(1)
	}
	fmt.Printf("%s", result.Data)
}

func splitHostPort(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, uint16(port), nil
}
