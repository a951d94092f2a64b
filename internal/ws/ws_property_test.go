package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any code buffer, a code-change event survives the wire encoding
// byte for byte.
func TestEventSerializationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("code-change events preserve the buffer", prop.ForAll(
		func(sessionID, code string) bool {
			ev := Event{
				Type:      EventCodeChange,
				SessionID: sessionID,
				Code:      code,
			}

			data, err := json.Marshal(ev)
			if err != nil {
				return false
			}

			var parsed Event
			if err := json.Unmarshal(data, &parsed); err != nil {
				return false
			}

			return parsed.Type == EventCodeChange && parsed.SessionID == sessionID && parsed.Code == code
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// For any room population, a broadcast reaches every member and a
// sender-excluded broadcast reaches every member but the sender.
func TestRoomDeliveryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("broadcast reaches all members", prop.ForAll(
		func(numClients int, code string) bool {
			room := NewRoom("prop-session")
			defer room.Close()

			clients := make([]*Client, numClients)
			received := make([]string, numClients)
			var wg sync.WaitGroup

			for i := 0; i < numClients; i++ {
				clients[i] = NewClient("c", nil)
				room.Register(clients[i])

				idx := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					select {
					case data := <-clients[idx].SendChan():
						var ev Event
						if json.Unmarshal(data, &ev) == nil {
							received[idx] = ev.Code
						}
					case <-time.After(100 * time.Millisecond):
					}
				}()
			}

			room.Broadcast(&Event{Type: EventCodeChange, Code: code})
			wg.Wait()

			for i := 0; i < numClients; i++ {
				if received[i] != code {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.AlphaString(),
	))

	properties.Property("sender never receives its own relay", prop.ForAll(
		func(numOthers int, code string) bool {
			room := NewRoom("prop-session")
			defer room.Close()

			sender := NewClient("sender", nil)
			room.Register(sender)

			others := make([]*Client, numOthers)
			for i := 0; i < numOthers; i++ {
				others[i] = NewClient("other", nil)
				room.Register(others[i])
			}

			room.BroadcastExcept(sender, &Event{Type: EventCodeChange, Code: code})

			for _, other := range others {
				select {
				case <-other.SendChan():
				case <-time.After(100 * time.Millisecond):
					return false
				}
			}

			select {
			case <-sender.SendChan():
				return false
			default:
				return true
			}
		},
		gen.IntRange(1, 10),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
