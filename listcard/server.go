package listcard

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

// Server exposes a device over the telegram protocol
type Server struct {
	mu  sync.Mutex
	dev scheduler.Device

	// Logger receives connection errors.  Nil uses the log package default.
	Logger *log.Logger
}

// NewServer returns a Server for dev
func NewServer(dev scheduler.Device) *Server {
	return &Server{dev: dev}
}

// Serve accepts connections on ln and answers telegrams for dev until ln
// is closed
func Serve(ln net.Listener, dev scheduler.Device) error {
	return NewServer(dev).Serve(ln)
}

func (s *Server) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

// Serve accepts connections on ln until it is closed.  Calls from all
// connections are serialized.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	rx := bufio.NewReader(conn)
	for {
		frame, err := rx.ReadBytes(telEnd)
		if err != nil {
			if err != io.EOF {
				s.logger().Println("listcard: read from", conn.RemoteAddr(), err)
			}
			return
		}
		reply := s.Handle(bytes.TrimSuffix(frame, []byte{telEnd}))
		if _, err := conn.Write(append(reply, telEnd)); err != nil {
			s.logger().Println("listcard: write to", conn.RemoteAddr(), err)
			return
		}
	}
}

// Handle decodes one frame, performs the call and returns the encoded
// reply without its terminator
func (s *Server) Handle(frame []byte) []byte {
	t, err := Decode(frame)
	if err != nil {
		return Encode(Telegram{Data: append([]byte{nack}, err.Error()...)})
	}
	s.mu.Lock()
	data, err := s.dispatch(t)
	s.mu.Unlock()
	if err != nil {
		return Encode(Telegram{Op: t.Op, Data: append([]byte{nack}, err.Error()...)})
	}
	return Encode(Telegram{Op: t.Op, Data: append([]byte{ack}, data...)})
}

func (s *Server) dispatch(t Telegram) ([]byte, error) {
	rd := reader{buf: t.Data}
	var err error
	switch t.Op {
	case OpOpen:
		list, off := rd.u32(), rd.u32()
		if rd.err != nil {
			return nil, rd.err
		}
		ok, err := s.dev.OpenBuffer(scheduler.ListID(list), off)
		if err != nil {
			return nil, err
		}
		if ok {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case OpJump, OpMark:
		x, y := rd.i32(), rd.i32()
		if rd.err != nil {
			return nil, rd.err
		}
		if t.Op == OpJump {
			err = s.dev.AppendJump(x, y)
		} else {
			err = s.dev.AppendMark(x, y)
		}
	case OpPixels:
		n, i := rd.u32(), rd.u16()
		if rd.err != nil {
			return nil, rd.err
		}
		err = s.dev.AppendPixelRun(n, i)
	case OpEnd:
		err = s.dev.MarkEnd()
	case OpExecute:
		list := rd.u32()
		if rd.err != nil {
			return nil, rd.err
		}
		err = s.dev.Execute(scheduler.ListID(list))
	case OpAutoAdvance:
		err = s.dev.AutoAdvance()
	case OpExecuteFrom:
		list, pos := rd.u32(), rd.u32()
		if rd.err != nil {
			return nil, rd.err
		}
		err = s.dev.ExecuteFrom(scheduler.ListID(list), pos)
	case OpStatus:
		st, err := s.dev.QueryStatus()
		if err != nil {
			return nil, err
		}
		return payload(uint32(st.Busy), st.Position, st.Error), nil
	case OpWait:
		err = s.dev.Wait()
	case OpRelease:
		err = s.dev.Release()
	case OpInputPointer:
		in, err := s.dev.InputPointer()
		if err != nil {
			return nil, err
		}
		return payload(in), nil
	case OpStop:
		err = s.dev.Stop()
	case OpPause, OpRestart:
		p, ok := s.dev.(scheduler.Pauser)
		if !ok {
			return nil, scheduler.ErrNotPauser
		}
		if t.Op == OpPause {
			err = p.PauseList()
		} else {
			err = p.RestartList()
		}
	default:
		return nil, fmt.Errorf("unknown op %s", t.Op)
	}
	return nil, err
}
