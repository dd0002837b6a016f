package notification

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// eventName is the fixed SSE event name all stream events are published under
const eventName = "sse"

// Event is a single server-sent event: an identifier the client can echo back
// as Last-Event-ID after a disconnect, and a JSON-serializable payload.
type Event struct {
	ID   string
	Data interface{}
}

// connectedPayload is the synthetic payload pushed right after a stream opens,
// so the client always receives at least one event and can record its
// Last-Event-ID baseline.
type connectedPayload struct {
	Content string `json:"content"`
}

// newEventID composes the identifier scheme shared by connections and events:
// recipient identity, a separator, and the current wall clock in milliseconds.
// Identifiers scope to a recipient via their prefix and compare as plain
// strings.
func newEventID(recipientID int64) string {
	return fmt.Sprintf("%d_%d", recipientID, time.Now().UnixMilli())
}

// recipientPrefix returns the identifier prefix shared by every connection and
// event belonging to the recipient. The separator keeps prefixes unambiguous:
// "4_" never matches an identifier of recipient 42.
func recipientPrefix(recipientID int64) string {
	return strconv.FormatInt(recipientID, 10) + "_"
}

// writeEvent frames one event in text/event-stream format and flushes it so
// intermediaries do not batch deliveries
func writeEvent(w io.Writer, flusher http.Flusher, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, eventName, data); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	flusher.Flush()

	return nil
}
