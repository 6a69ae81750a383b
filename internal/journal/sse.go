package journal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// gapEvent tells a slow client how many records it missed. The records
// themselves are still in the durable log for catch-up via ReadAll.
type gapEvent struct {
	Type   string `json:"type"`
	Missed int64  `json:"missed"`
}

// SSEHandler streams journal records to the client as Server-Sent Events,
// one event per record, blank-line terminated. The stream is infinite and
// ends only when the client disconnects.
func (j *Journal) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		sub := j.Subscribe()
		defer j.Unsubscribe(sub)

		j.logger.Info("live subscriber connected", "remote", r.RemoteAddr)
		defer j.logger.Info("live subscriber disconnected", "remote", r.RemoteAddr)

		// Initial event so EventSource clients know the stream is up.
		fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
		flusher.Flush()

		for {
			select {
			case rec, ok := <-sub.Records():
				if !ok {
					return
				}
				// Surface any drop as an explicit gap before the next record.
				if missed := sub.TakeMissed(); missed > 0 {
					gap, _ := json.Marshal(gapEvent{Type: "gap", Missed: missed})
					fmt.Fprintf(w, "data: %s\n\n", gap)
				}
				data, _ := json.Marshal(rec)
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
