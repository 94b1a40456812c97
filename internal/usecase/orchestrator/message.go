package orchestrator

import (
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/domain/search/request"
)

// MessageType tags inbound messages.
type MessageType string

const (
	// MessageInit hands over a catalog to index.
	MessageInit MessageType = "init"
	// MessageSearch asks for one query to be run.
	MessageSearch MessageType = "search"
)

// Message is an inbound request to the orchestrator.
type Message struct {
	Type    MessageType
	Catalog product.Catalog // init only
	// Gen identifies the load an init belongs to; the ready ack echoes it.
	Gen     uint64
	Request request.Request // search only; Seq is echoed back
	// Reply, when set, receives the search response instead of Responses.
	// It must have room for one value.
	Reply chan<- Response
}

// ResponseType tags outbound messages.
type ResponseType string

const (
	// ResponseReady follows an init once the index is built (or failed to build).
	ResponseReady ResponseType = "ready"
	// ResponseResults carries the outcome of one search.
	ResponseResults ResponseType = "results"
)

// Response is an outbound message. Results of different searches may
// arrive in any order; Seq tells them apart.
type Response struct {
	Type    ResponseType
	Gen     uint64 // ready only
	Seq     uint64
	Results []product.Product
	Err     error
}
