package tcp

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/averel/salon/internal/core"
)

// Listener accepts TCP connections and spawns one session worker per client.
// It never blocks on client I/O itself.
type Listener struct {
	addr       string
	reg        *core.Registry
	maxPayload uint32
	limit      rate.Limit
	burst      int
}

func NewListener(addr string, reg *core.Registry, maxPayload uint32, perSecond float64, burst int) *Listener {
	return &Listener{
		addr:       addr,
		reg:        reg,
		maxPayload: maxPayload,
		limit:      rate.Limit(perSecond),
		burst:      burst,
	}
}

// Serve runs the accept loop until ctx is canceled, then waits for all
// session workers to finish their cleanup.
func (l *Listener) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	log.Info().Str("module", "transport.tcp").Str("addr", l.addr).Msg("listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Error().Err(err).Str("module", "transport.tcp").Msg("accept failed")
			continue
		}
		sess := core.NewSession(NewConn(nc, l.maxPayload), l.reg, l.newLimiter())
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Run(ctx)
		}()
	}

	wg.Wait()
	log.Info().Str("module", "transport.tcp").Msg("listener stopped")
	return nil
}

func (l *Listener) newLimiter() *rate.Limiter {
	if l.limit <= 0 {
		return nil
	}
	return rate.NewLimiter(l.limit, l.burst)
}
