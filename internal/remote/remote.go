// Package remote exposes the transport over OSC. Incoming messages become
// Commands on a channel; the control loop applies them, never the OSC
// goroutines.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/hypebeast/go-osc/osc"
	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/types"
)

// OSC addresses
const (
	AddrPlay     = "/transport/play"
	AddrPause    = "/transport/pause"
	AddrStop     = "/transport/stop"
	AddrSeek     = "/transport/seek"
	AddrLoop     = "/transport/loop"
	AddrPosition = "/transport/position"
	AddrState    = "/transport/state"
)

type Op int

const (
	OpPlay Op = iota
	OpPause
	OpStop
	OpSeek
	OpLoop
)

func (o Op) String() string {
	return [...]string{"play", "pause", "stop", "seek", "loop"}[o]
}

type Command struct {
	Op Op
	Ms int64
	On bool
}

// Controller is the transport surface a Command acts on.
type Controller interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, ms int64) error
	SetLooping(on bool)
}

func (c Command) Apply(ctx context.Context, ctl Controller) error {
	switch c.Op {
	case OpPlay:
		return ctl.Play(ctx)
	case OpPause:
		return ctl.Pause(ctx)
	case OpStop:
		return ctl.Stop(ctx)
	case OpSeek:
		return ctl.Seek(ctx, c.Ms)
	case OpLoop:
		ctl.SetLooping(c.On)
		return nil
	}
	return fmt.Errorf("unknown op %d", c.Op)
}

var errArgs = errors.New("bad arguments")

func parse(msg *osc.Message) (Command, error) {
	switch msg.Address {
	case AddrPlay:
		return Command{Op: OpPlay}, nil
	case AddrPause:
		return Command{Op: OpPause}, nil
	case AddrStop:
		return Command{Op: OpStop}, nil
	case AddrSeek:
		if len(msg.Arguments) != 1 {
			return Command{}, fmt.Errorf("%s wants 1 argument: %w", AddrSeek, errArgs)
		}
		ms, ok := number(msg.Arguments[0])
		if !ok {
			return Command{}, fmt.Errorf("%s: %T is not a number: %w", AddrSeek, msg.Arguments[0], errArgs)
		}
		return Command{Op: OpSeek, Ms: int64(ms)}, nil
	case AddrLoop:
		if len(msg.Arguments) != 1 {
			return Command{}, fmt.Errorf("%s wants 1 argument: %w", AddrLoop, errArgs)
		}
		if b, ok := msg.Arguments[0].(bool); ok {
			return Command{Op: OpLoop, On: b}, nil
		}
		v, ok := number(msg.Arguments[0])
		if !ok {
			return Command{}, fmt.Errorf("%s: %T is not a flag: %w", AddrLoop, msg.Arguments[0], errArgs)
		}
		return Command{Op: OpLoop, On: v != 0}, nil
	}
	return Command{}, fmt.Errorf("unknown address %s", msg.Address)
}

func number(arg any) (float64, bool) {
	switch v := arg.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// Server receives transport commands over UDP.
type Server struct {
	conn   net.PacketConn
	server *osc.Server
	cmds   chan Command
	logger *zap.Logger
	once   sync.Once
}

// Listen binds addr (for example ":57130").
func Listen(addr string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("listen for osc"))
	}
	s := &Server{conn: conn, cmds: make(chan Command, 16), logger: logger}

	d := osc.NewStandardDispatcher()
	for _, addr := range []string{AddrPlay, AddrPause, AddrStop, AddrSeek, AddrLoop} {
		if err := d.AddMsgHandler(addr, s.handle); err != nil {
			conn.Close()
			return nil, fault.Wrap(err, fmsg.With("register osc handler"))
		}
	}
	s.server = &osc.Server{Dispatcher: d}
	return s, nil
}

// Addr is the bound address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Commands delivers parsed commands in arrival order.
func (s *Server) Commands() <-chan Command {
	return s.cmds
}

// Serve blocks until Close is called.
func (s *Server) Serve() error {
	s.logger.Info("osc remote listening", zap.Stringer("addr", s.conn.LocalAddr()))
	err := s.server.Serve(s.conn)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) Close() error {
	var err error
	s.once.Do(func() { err = s.conn.Close() })
	return err
}

func (s *Server) handle(msg *osc.Message) {
	cmd, err := parse(msg)
	if err != nil {
		s.logger.Warn("ignoring osc message", zap.String("addr", msg.Address), zap.Error(err))
		return
	}
	select {
	case s.cmds <- cmd:
	default:
		s.logger.Warn("osc command dropped, control loop busy", zap.Stringer("op", cmd.Op))
	}
}

// Feedback reports the playhead to an OSC listener. Only changes are sent.
type Feedback struct {
	client *osc.Client
	last   *types.PlaybackState
}

func NewFeedback(host string, port int) *Feedback {
	return &Feedback{client: osc.NewClient(host, port)}
}

// Send reports state if it differs from the last report.
func (f *Feedback) Send(st types.PlaybackState) error {
	if f.last != nil && f.last.IsPlaying == st.IsPlaying && f.last.CurrentTime == st.CurrentTime && f.last.IsLooping == st.IsLooping {
		return nil
	}
	prev := f.last
	f.last = &st

	if err := f.client.Send(osc.NewMessage(AddrPosition, int32(st.CurrentTime))); err != nil {
		return fault.Wrap(err, fmsg.With("send playhead"))
	}
	if prev == nil || prev.IsPlaying != st.IsPlaying || prev.IsLooping != st.IsLooping {
		msg := osc.NewMessage(AddrState, boolInt(st.IsPlaying), boolInt(st.IsLooping))
		if err := f.client.Send(msg); err != nil {
			return fault.Wrap(err, fmsg.With("send transport state"))
		}
	}
	return nil
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
