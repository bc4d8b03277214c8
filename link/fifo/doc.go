// Package fifo carries a link between processes over named pipes.
//
// [Serve] publishes a card (any [link.Peer]) in a bus directory and answers
// the host until its context is cancelled. [Dial] opens the same directory
// from the host side and returns a [Link] that implements [link.Link], so
// a driver in one process can talk to a simulated card in another:
//
//	/tmp/sd-bus/            # Bus directory
//	├── host_to_card        # Host messages: transmit, receive, select, deselect
//	└── card_to_host        # Card replies to receive requests
//
// Every message is two bytes, a type and a value. Only receive requests
// are answered, so transmitted bytes stream without a round trip while
// ordering is preserved by the pipe.
//
// Link methods cannot return errors. The first failure (a timeout or a
// closed pipe) is kept in [Link.Err], and every receive after it reads
// [link.Idle], which the driver sees as an unresponsive card.
//
// Named pipes are only available on Unix systems.
package fifo
