/*Package listcard is the device side of list streaming: a simulated scan card
with two list memories, and a small telegram protocol that carries the
scheduler.Device calls over TCP or RS-232.

Sim executes its lists on an internal clock, keeps an ordered log of what it
executed and raises error bits on underrun or overrun, which makes it the
reference for testing streamers.  Remote is a client for any card reachable
through the protocol, and Serve exposes a Device (usually a Sim) on a
net.Listener:

	sim := listcard.NewSim(listcard.SimConfig{Mode: scheduler.ModeRing, Capacity: 4096, Period: 10 * time.Microsecond})
	defer sim.Close()
	ln, _ := net.Listen("tcp", ":2000")
	go listcard.Serve(ln, sim)

	card := listcard.NewRemote("localhost:2000", false, nil)
*/
package listcard
