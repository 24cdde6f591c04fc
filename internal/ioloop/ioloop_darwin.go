//go:build darwin

package ioloop

import (
	"fmt"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/corenet-go/corenet/internal/constants"
	"github.com/corenet-go/corenet/internal/executor"
)

// kqueueKey identifies one registered interest the way kqueue does:
// (fd, filter) rather than a single opaque handle (spec 4.2's "macOS
// backend maps (fd,filter) to a CompletionResult").
type kqueueKey struct {
	fd     int32
	filter int16
}

// kqueueBackend implements executor.Backend over kqueue for sockets,
// plus a side channel (see RegisterAux) for IOBluetooth's auxiliary
// completion source, which does not deliver through kqueue at all.
type kqueueBackend struct {
	kq int

	mu      sync.Mutex
	waiting map[kqueueKey]*executor.Operation
	queue   []executor.Operation

	auxMu  sync.Mutex
	auxSrc []auxCompletionSource
}

// auxCompletionSource is satisfied by the macOS Bluetooth channel
// wrapper (btSource in btsource_darwin.go, spec 4.2's "Open
// Question: macOS IOBluetooth channel completions arrive via an
// auxiliary completion source, not kqueue"). Poll returns completed
// operations to deliver this pass.
type auxCompletionSource interface {
	Poll() []executor.Outcome
}

// New creates the macOS kqueue backend for one worker thread.
func New() (executor.Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("ioloop: kqueue: %w", err)
	}
	return &kqueueBackend{kq: kq, waiting: make(map[kqueueKey]*executor.Operation)}, nil
}

func (b *kqueueBackend) Push(op executor.Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, op)
}

func (b *kqueueBackend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) + len(b.waiting)
}

// RegisterAux attaches an auxiliary completion source (IOBluetooth
// channel) that this backend polls every pass alongside kqueue.
func (b *kqueueBackend) RegisterAux(src auxCompletionSource) {
	b.auxMu.Lock()
	defer b.auxMu.Unlock()
	b.auxSrc = append(b.auxSrc, src)
}

func (b *kqueueBackend) RunOnce(wait bool) error {
	b.mu.Lock()
	toRegister := b.queue
	b.queue = nil
	changes := make([]unix.Kevent_t, 0, len(toRegister))
	for i := range toRegister {
		op := &toRegister[i]

		if op.Kind == executor.OpCancel {
			// Walk both filters for the fd: drop the registration and
			// resume the waiting operation with ECANCELED.
			for _, filter := range []int16{unix.EVFILT_READ, unix.EVFILT_WRITE} {
				key := kqueueKey{fd: int32(op.FD), filter: filter}
				if w, ok := b.waiting[key]; ok {
					delete(b.waiting, key)
					var kev unix.Kevent_t
					unix.SetKevent(&kev, op.FD, int(filter), unix.EV_DELETE)
					changes = append(changes, kev)
					w.Result.Complete(executor.Outcome{Err: syscall.ECANCELED})
				}
			}
		}

		// Shutdown/Close/Cancel don't need to wait on readiness; run
		// them immediately and report back.
		if op.Kind == executor.OpShutdown || op.Kind == executor.OpClose || op.Kind == executor.OpCancel {
			outcome := performImmediateOp(op)
			if op.Result != nil {
				op.Result.Complete(outcome)
			}
			continue
		}

		filter := opFilter(op.Kind)
		key := kqueueKey{fd: int32(op.FD), filter: filter}
		if op.Result != nil {
			b.waiting[key] = op
		}
		var kev unix.Kevent_t
		unix.SetKevent(&kev, op.FD, int(filter), unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
		changes = append(changes, kev)
	}
	b.mu.Unlock()

	timeout := &unix.Timespec{}
	*timeout = unix.NsecToTimespec(int64(constants.KqueueLoopTimeout))
	if !wait {
		timeout = &unix.Timespec{}
	}

	events := make([]unix.Kevent_t, 64)
	n, err := unix.Kevent(b.kq, changes, events, timeout)
	if err != nil && err != unix.EINTR {
		return fmt.Errorf("ioloop: kevent: %w", err)
	}

	b.mu.Lock()
	for i := 0; i < n; i++ {
		ev := events[i]
		key := kqueueKey{fd: int32(ev.Ident), filter: ev.Filter}
		op, ok := b.waiting[key]
		if !ok {
			continue
		}
		delete(b.waiting, key)
		outcome := executor.Outcome{}
		if ev.Flags&unix.EV_ERROR != 0 {
			outcome.Err = syscall.Errno(ev.Data)
		} else {
			outcome = performReadyOp(op)
		}
		op.Result.Complete(outcome)
	}
	b.mu.Unlock()

	b.pollAux()
	return nil
}

func (b *kqueueBackend) pollAux() {
	b.auxMu.Lock()
	srcs := append([]auxCompletionSource(nil), b.auxSrc...)
	b.auxMu.Unlock()
	for _, src := range srcs {
		_ = src.Poll() // delivery happens inside the source's own CompletionResult bookkeeping
	}
}

func opFilter(kind executor.OpKind) int16 {
	switch kind {
	case executor.OpSend, executor.OpSendTo, executor.OpConnect:
		return unix.EVFILT_WRITE
	default:
		return unix.EVFILT_READ
	}
}

func (b *kqueueBackend) Close() error {
	return unix.Close(b.kq)
}

// performReadyOp runs the actual syscall once kqueue has reported the
// fd ready, since EVFILT_READ/WRITE only signals readiness rather than
// performing the transfer the way io_uring's SQEs or IOCP's overlapped
// calls do.
func performReadyOp(op *executor.Operation) executor.Outcome {
	switch op.Kind {
	case executor.OpReceive:
		n, err := unix.Read(op.FD, op.Buf)
		return executor.Outcome{N: int32(n), Err: err}
	case executor.OpReceiveFrom:
		n, from, err := unix.Recvfrom(op.FD, op.Buf, 0)
		out := executor.Outcome{N: int32(n), Err: err}
		out.Addr = sockaddrToRawAddr(from)
		return out
	case executor.OpSend:
		n, err := unix.Write(op.FD, op.Buf)
		return executor.Outcome{N: int32(n), Err: err}
	case executor.OpSendTo:
		var to unix.Sockaddr
		if op.Addr != nil {
			to = rawAddrToSockaddr(op.Addr)
		}
		err := unix.Sendto(op.FD, op.Buf, 0, to)
		n := len(op.Buf)
		if err != nil {
			n = 0
		}
		return executor.Outcome{N: int32(n), Err: err}
	case executor.OpAccept:
		nfd, sa, err := unix.Accept(op.FD)
		return executor.Outcome{FD: nfd, Addr: sockaddrToRawAddr(sa), Err: err}
	case executor.OpConnect:
		errno, err := unix.GetsockoptInt(op.FD, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return executor.Outcome{Err: err}
		}
		if errno != 0 {
			return executor.Outcome{Err: syscall.Errno(errno)}
		}
		return executor.Outcome{}
	default:
		return executor.Outcome{Err: fmt.Errorf("ioloop: unexpected op kind %s", op.Kind)}
	}
}

// performImmediateOp runs operations that don't depend on readiness.
func performImmediateOp(op *executor.Operation) executor.Outcome {
	switch op.Kind {
	case executor.OpShutdown:
		return executor.Outcome{Err: unix.Shutdown(op.FD, unix.SHUT_RDWR)}
	case executor.OpClose:
		return executor.Outcome{Err: unix.Close(op.FD)}
	case executor.OpCancel:
		// RunOnce has already removed the fd's EVFILT_READ/WRITE waits
		// and resumed them with ECANCELED; nothing is left to do here.
		return executor.Outcome{}
	default:
		return executor.Outcome{}
	}
}

func sockaddrToRawAddr(sa unix.Sockaddr) *executor.RawAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &executor.RawAddr{IP: append([]byte(nil), a.Addr[:]...), Port: uint16(a.Port), Family: unix.AF_INET}
	case *unix.SockaddrInet6:
		return &executor.RawAddr{IP: append([]byte(nil), a.Addr[:]...), Port: uint16(a.Port), Family: unix.AF_INET6}
	default:
		return nil
	}
}

func rawAddrToSockaddr(a *executor.RawAddr) unix.Sockaddr {
	if len(a.IP) == 16 {
		var sa unix.SockaddrInet6
		copy(sa.Addr[:], a.IP)
		sa.Port = int(a.Port)
		return &sa
	}
	var sa unix.SockaddrInet4
	copy(sa.Addr[:], a.IP)
	sa.Port = int(a.Port)
	return &sa
}
