//go:build integration

// Package integration drives the public corenet API over real loopback
// TCP sockets, exercising the executor/backend stack end to end instead
// of through the in-memory Loopback fixture internal packages use.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corenet-go/corenet"
	"github.com/corenet-go/corenet/async"
)

// requireExecutor starts the global executor for one test and tears it
// down on cleanup, mirroring the teacher's requireRoot-style test guard
// but for the one piece of global state this module needs.
func requireExecutor(t *testing.T) {
	t.Helper()
	require.NoError(t, async.Init(async.DefaultConfig()))
	t.Cleanup(async.Cleanup)
}

// echoServer starts a TCP listener on an ephemeral port that echoes one
// message per accepted connection, returning the bound port.
func echoServer(t *testing.T, ctx context.Context) uint16 {
	t.Helper()
	srv, err := corenet.ListenTCP("127.0.0.1", 0, corenet.Options{Backlog: 4})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close(context.Background()) })

	port := srv.Info().Local.Port
	go func() {
		for {
			conn, err := srv.Accept(ctx)
			if err != nil {
				return
			}
			go func() {
				defer conn.Close(context.Background())
				buf := make([]byte, 4096)
				result, err := conn.Recv(ctx, buf)
				if err != nil || result.Closed {
					return
				}
				conn.Send(ctx, result.Data)
			}()
		}
	}()
	return port
}

// TestEchoRoundTripTCP verifies spec 8's "Echo round-trip" property for
// TCP/v4: a client connected to an echo server observes recv == sent
// for a bytestring under 1024 bytes.
func TestEchoRoundTripTCP(t *testing.T) {
	requireExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	port := echoServer(t, ctx)

	client, err := corenet.DialTCP(ctx, "127.0.0.1", port, corenet.Options{})
	require.NoError(t, err)
	defer client.Close(ctx)

	want := []byte("round trip payload")
	_, err = client.Send(ctx, want)
	require.NoError(t, err)

	got := make([]byte, len(want))
	result, err := client.Recv(ctx, got)
	require.NoError(t, err)
	require.Equal(t, want, result.Data)
}

// TestServerPortRecovery verifies spec 8's "Server port recovery"
// property: listening on port 0 yields a non-zero bound port that a
// client can then successfully connect to.
func TestServerPortRecovery(t *testing.T) {
	requireExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	port := echoServer(t, ctx)
	require.NotZero(t, port)

	client, err := corenet.DialTCP(ctx, "127.0.0.1", port, corenet.Options{})
	require.NoError(t, err)
	defer client.Close(ctx)
}

// TestOrderlyClose verifies spec 8's "Orderly close" property: once the
// peer closes gracefully, Recv reports RecvResult.Closed rather than
// hanging or returning an error.
func TestOrderlyClose(t *testing.T) {
	requireExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv, err := corenet.ListenTCP("127.0.0.1", 0, corenet.Options{Backlog: 4})
	require.NoError(t, err)
	defer srv.Close(context.Background())
	port := srv.Info().Local.Port

	go func() {
		conn, err := srv.Accept(ctx)
		if err != nil {
			return
		}
		conn.Close(context.Background())
	}()

	client, err := corenet.DialTCP(ctx, "127.0.0.1", port, corenet.Options{})
	require.NoError(t, err)
	defer client.Close(ctx)

	buf := make([]byte, 16)
	result, err := client.Recv(ctx, buf)
	require.NoError(t, err)
	require.True(t, result.Closed)
}

// TestCancellationUnblocksRecv verifies spec 8's "Cancellation"
// property: CancelIO on a Recv in flight completes it within a bounded
// time with a cancellation-flavored, fatal error.
func TestCancellationUnblocksRecv(t *testing.T) {
	requireExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	port := func() uint16 {
		srv, err := corenet.ListenTCP("127.0.0.1", 0, corenet.Options{Backlog: 4})
		require.NoError(t, err)
		t.Cleanup(func() { srv.Close(context.Background()) })
		p := srv.Info().Local.Port
		go func() {
			conn, err := srv.Accept(ctx)
			if err == nil {
				t.Cleanup(func() { conn.Close(context.Background()) })
			}
		}()
		return p
	}()

	client, err := corenet.DialTCP(ctx, "127.0.0.1", port, corenet.Options{})
	require.NoError(t, err)
	defer client.Close(ctx)

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		_, err := client.Recv(ctx, buf)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	client.CancelIO()

	select {
	case err := <-done:
		require.Error(t, err)
		require.True(t, corenet.IsCanceled(err))
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not unblock after CancelIO within bound")
	}
}
