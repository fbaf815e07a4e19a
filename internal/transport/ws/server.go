package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"antventure.ai/internal/protocol"
	"antventure.ai/internal/runner"
	"antventure.ai/internal/sim/colony"
)

// idleTimeout closes a connection that sends nothing while no run is active.
var idleTimeout = 60 * time.Second

// Server streams simulation runs over a websocket. A connection runs at most one
// simulation at a time; CANCEL or closing the socket aborts it.
type Server struct {
	runner *runner.Runner
	log    *slog.Logger

	upgrader websocket.Upgrader
}

func NewServer(r *runner.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner: r,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 256)
		writerDone := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) bool {
			b, err := json.Marshal(v)
			if err != nil {
				s.log.Error("marshal", "err", err)
				return false
			}
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			mu        sync.Mutex
			runCancel context.CancelFunc
			runID     string
			runs      sync.WaitGroup
		)
		// armDeadline must be called with mu held. Only an idle connection times out.
		armDeadline := func() {
			if runCancel == nil {
				_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
			} else {
				_ = conn.SetReadDeadline(time.Time{})
			}
		}

		// Reader loop.
		for {
			mu.Lock()
			armDeadline()
			mu.Unlock()
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				send(protocol.NewError("", "", errors.Join(protocol.ErrMalformed, err)))
				continue
			}

			switch base.Type {
			case protocol.TypeCancel:
				var c protocol.CancelMsg
				_ = json.Unmarshal(msg, &c)
				mu.Lock()
				if runCancel != nil && (c.RunID == "" || c.RunID == runID) {
					runCancel()
				}
				mu.Unlock()

			case protocol.TypeRun:
				req, err := protocol.ValidateRunRequest(msg)
				if err != nil {
					send(protocol.NewError(req.RequestID, "", err))
					continue
				}
				mu.Lock()
				if runCancel != nil {
					busy := runID
					mu.Unlock()
					send(protocol.NewError(req.RequestID, busy, protocol.ErrRunInProgress))
					continue
				}
				rctx, rcancel := context.WithCancel(ctx)
				runCancel = rcancel
				runID = runner.NewRunID()
				id := runID
				mu.Unlock()

				runs.Add(1)
				go func() {
					defer runs.Done()
					final := s.stream(rctx, id, req, send)
					// Free the slot before the client can see DONE/ERROR, so an
					// immediate follow-up RUN is accepted.
					mu.Lock()
					runCancel = nil
					runID = ""
					armDeadline()
					mu.Unlock()
					rcancel()
					send(final)
				}()

			default:
				send(protocol.NewError("", "", errors.Join(protocol.ErrMalformed, errors.New("unexpected message type "+base.Type))))
			}
		}

		runs.Wait()
		<-writerDone
	}
}

// stream runs req, forwarding ACCEPTED and SAMPLE messages, and returns the final
// DONE or ERROR message without sending it.
func (s *Server) stream(ctx context.Context, runID string, req protocol.RunRequest, send func(any) bool) any {
	out, err := s.runner.Run(ctx, runner.Request{
		Params:  req.Params,
		Seed:    req.Seed,
		Workers: req.Workers,
		RunID:   runID,
	}, runner.Hooks{
		OnAccepted: func(a runner.Accepted) {
			send(protocol.AcceptedMsg{
				Type:            protocol.TypeAccepted,
				ProtocolVersion: protocol.Version,
				RequestID:       req.RequestID,
				RunID:           a.RunID,
				Seed:            a.Seed,
				RowsExpected:    a.RowsExpected,
				Constants:       a.Constants,
			})
		},
		OnSample: func(sm colony.Sample) {
			send(protocol.SampleMsg{Type: protocol.TypeSample, RunID: runID, Sample: sm})
		},
	})
	if err != nil {
		return protocol.NewError(req.RequestID, runID, err)
	}
	return doneMsg(req, out, false)
}

func doneMsg(req protocol.RunRequest, out runner.Outcome, table bool) protocol.DoneMsg {
	res := out.Result
	m := protocol.DoneMsg{
		Type:            protocol.TypeDone,
		ProtocolVersion: protocol.Version,
		RequestID:       req.RequestID,
		RunID:           out.RunID,
		Message:         res.Message,
		Digest:          res.Digest,
		Rows:            len(res.Rows),
		Seed:            res.Seed,
		ElapsedMS:       res.Elapsed.Milliseconds(),
		Constants:       res.Constants,
	}
	if table {
		m.Table = res.Rows
	}
	return m
}
