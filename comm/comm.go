/*Package comm provides the connection plumbing for remote hardware reached
over TCP or RS-232.

A RemoteDevice holds one connection and frames every message with a single
terminator byte.  Types that speak a protocol embed or hold a *RemoteDevice
and build their commands on SendRecv:

	rd := comm.NewRemoteDevice("192.168.100.50:2000", false, nil)
	rd.Terminator = '\n'
	if err := rd.Open(); err != nil {
		return err
	}
	defer rd.Close()
	resp, err := rd.SendRecv([]byte("STATUS?"))

Open retries with an exponential backoff; many lab controllers refuse
connections for a moment after the previous one is dropped.
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

const (
	// DefaultTerminator ends messages when no other is configured
	DefaultTerminator = byte('\r')

	// DefaultTimeout bounds connecting and each SendRecv
	DefaultTimeout = 3 * time.Second
)

var (
	// ErrNoSerialConf is generated when IsSerial is true and SerialConf is nil
	ErrNoSerialConf = errors.New("remote device is serial but has no serial config")

	// ErrNotConnected is generated when .Conn is nil and Send or Recv is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Communicator can Open, Send, Recv and Close
type Communicator interface {
	io.Closer
	Open() error
	Send([]byte) error
	Recv() ([]byte, error)
	SendRecv([]byte) ([]byte, error)
}

/*RemoteDevice has an address and implements Communicator

SendRecv is safe for concurrent use; Send and Recv are not, and belong to
callers that serialize access themselves.
*/
type RemoteDevice struct {
	// Addr is host:port for TCP, ignored for serial
	Addr string

	// IsSerial selects SerialConf over Addr
	IsSerial bool

	// SerialConf configures the port when IsSerial is true
	SerialConf *serial.Config

	// Terminator ends every message in both directions
	Terminator byte

	// Timeout bounds connecting and each round trip over TCP.
	// Serial ports use SerialConf.ReadTimeout.
	Timeout time.Duration

	Conn io.ReadWriteCloser

	mu sync.Mutex
	rx *bufio.Reader
}

// NewRemoteDevice creates a new RemoteDevice instance with the default
// terminator and timeout
func NewRemoteDevice(addr string, isSerial bool, conf *serial.Config) *RemoteDevice {
	return &RemoteDevice{
		Addr:       addr,
		IsSerial:   isSerial,
		SerialConf: conf,
		Terminator: DefaultTerminator,
		Timeout:    DefaultTimeout}
}

func (rd *RemoteDevice) timeout() time.Duration {
	if rd.Timeout <= 0 {
		return DefaultTimeout
	}
	return rd.Timeout
}

// Open the connection, setting the Conn variable
func (rd *RemoteDevice) Open() error {
	// a refused connection is retried with an exponential backoff, anything
	// else (no route, bad port name) is not going to get better
	var final error
	op := func() error {
		err := rd.open()
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "refused") {
				return err
			}
			final = err
			return nil
		}
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      rd.timeout(),
		Clock:               backoff.SystemClock})
	if err != nil {
		return fmt.Errorf("connection to %s: %w", rd.Addr, err)
	}
	return final
}

func (rd *RemoteDevice) open() error {
	var err error
	var conn io.ReadWriteCloser
	if rd.IsSerial {
		if rd.SerialConf == nil {
			return ErrNoSerialConf
		}
		conn, err = serial.OpenPort(rd.SerialConf)
	} else {
		conn, err = TCPSetup(rd.Addr, rd.timeout())
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	rd.rx = bufio.NewReader(conn)
	return nil
}

// Close the connection, nil-ing the Conn variable
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	rd.Conn = nil
	rd.rx = nil
	return err
}

// Send writes data to the remote followed by the terminator
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	msg := make([]byte, 0, len(b)+1)
	msg = append(msg, b...)
	msg = append(msg, rd.Terminator)
	_, err := rd.Conn.Write(msg)
	return err
}

// Recv recieves data from the remote and strips the terminator
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	buf, err := rd.rx.ReadBytes(rd.Terminator)
	if err != nil {
		if len(buf) > 0 && err == io.EOF {
			return buf, ErrTerminatorNotFound
		}
		return nil, err
	}
	return bytes.TrimSuffix(buf, []byte{rd.Terminator}), nil
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// SendRecv sends a buffer after appending the terminator,
// then returns the response with the terminator stripped
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	if d, ok := rd.Conn.(deadliner); ok {
		d.SetDeadline(time.Now().Add(rd.timeout()))
	}
	if err := rd.Send(b); err != nil {
		return nil, err
	}
	return rd.Recv()
}

// TCPSetup opens a new TCP connection with a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}
