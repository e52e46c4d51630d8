package listcard

import (
	"bufio"
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

func serveSim(t *testing.T, dev scheduler.Device) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go Serve(ln, dev)
	return ln.Addr().String()
}

func TestRemoteRoundTrip(t *testing.T) {
	sim := NewSim(SimConfig{Mode: scheduler.ModeRing, Capacity: 32})
	card := NewRemote(serveSim(t, sim), false, nil)
	defer card.Close()

	ok, err := card.OpenBuffer(scheduler.ListA, 30)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, card.AppendJump(-1, 2))
	require.NoError(t, card.AppendMark(3, -4))
	require.NoError(t, card.AppendPixelRun(7, 0xBEEF))
	require.NoError(t, card.Wait())
	require.NoError(t, card.MarkEnd())
	in, err := card.InputPointer()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), in)

	require.NoError(t, card.ExecuteFrom(scheduler.ListA, 30))
	sim.Step(10)
	st, err := card.QueryStatus()
	require.NoError(t, err)
	assert.True(t, st.Busy.Waiting())
	assert.Equal(t, uint32(2), st.Position)
	require.NoError(t, card.Release())
	sim.Step(10)
	st, err = card.QueryStatus()
	require.NoError(t, err)
	assert.False(t, st.Busy.Busy())

	assert.Equal(t, []scheduler.Request{
		scheduler.JumpTo(-1, 2), scheduler.MarkTo(3, -4), scheduler.Pixels(7, 0xBEEF),
	}, sim.Executed())
}

func TestRemoteNack(t *testing.T) {
	sim := NewSim(SimConfig{Capacity: 4})
	// hide the Pauser methods
	card := NewRemote(serveSim(t, struct{ scheduler.Device }{sim}), false, nil)
	defer card.Close()

	err := card.PauseList()
	assert.True(t, IsNack(err), "got %v", err)

	_, err = card.OpenBuffer(scheduler.ListID(9), 0)
	assert.True(t, IsNack(err))

	// the connection survives a refusal
	ok, err := card.OpenBuffer(scheduler.ListA, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoteReconnects(t *testing.T) {
	sim := NewSim(SimConfig{Capacity: 4})
	card := NewRemote(serveSim(t, sim), false, nil)
	_, err := card.QueryStatus()
	require.NoError(t, err)
	card.Conn.Close()

	_, err = card.QueryStatus()
	assert.Error(t, err, "write on a closed conn")
	_, err = card.QueryStatus()
	assert.NoError(t, err)
	card.Close()
}

// serveCorrupt answers every telegram with a status ack whose CRC is wrong
// and counts the connections it accepts
func serveCorrupt(t *testing.T, accepted *int32) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	body := []byte{byte(OpStatus), ack}
	crc := crcHelper(body)
	crc[0] ^= 0xFF
	frame := append([]byte{telStart}, sanitize(append(body, crc...))...)
	frame = append(frame, telEnd)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(accepted, 1)
			go func(c net.Conn) {
				defer c.Close()
				rx := bufio.NewReader(c)
				for {
					if _, err := rx.ReadBytes(telEnd); err != nil {
						return
					}
					if _, err := c.Write(frame); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestRemoteDropsConnOnCorruptReply(t *testing.T) {
	var accepted int32
	card := NewRemote(serveCorrupt(t, &accepted), false, nil)
	defer card.Close()

	_, err := card.QueryStatus()
	assert.ErrorIs(t, err, ErrCRC)
	assert.Nil(t, card.Conn, "a corrupt reply leaves the stream out of step")

	_, err = card.QueryStatus()
	assert.ErrorIs(t, err, ErrCRC)
	assert.Equal(t, int32(2), atomic.LoadInt32(&accepted), "second call redials")
}

func TestDoubleBufferOverRemote(t *testing.T) {
	sim := NewSim(SimConfig{Capacity: 8, Period: 50 * time.Microsecond})
	defer sim.Close()
	card := NewRemote(serveSim(t, sim), false, nil)
	defer card.Close()
	s, err := scheduler.New(card, scheduler.Config{Capacity: 8, PollInterval: 100 * time.Microsecond})
	require.NoError(t, err)

	reqs := figure(100)
	stream(t, s, reqs)
	assert.Equal(t, reqs, sim.Executed())

	require.NoError(t, s.Suspend())
	require.NoError(t, s.Resume())
	assert.NoError(t, s.Flush(context.Background()))
}
