// Command esjc-bench is a small append/read smoke test against a running
// server: it connects, appends a handful of events to a scratch stream,
// reads them back forward, and subscribes to the stream for a short window
// to confirm live delivery, logging each step with zerolog.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/michael-schnell/esjc/esjc"
	"github.com/michael-schnell/esjc/internal/esjclog"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:1113", "server TCP address")
		stream      = flag.String("stream", fmt.Sprintf("esjc-bench-%d", time.Now().UnixNano()), "scratch stream name")
		eventCount  = flag.Int("events", 5, "number of events to append")
		subscribeFor = flag.Duration("subscribe-for", 2*time.Second, "how long to watch the stream after appending")
		login       = flag.String("login", "", "optional username")
		password    = flag.String("password", "", "optional password")
	)
	flag.Parse()

	log := esjclog.New(os.Stderr)

	settings := esjc.Create().
		SetClusterDiscoverer(esjc.StaticEndpoint(*addr, "")).
		SetLog(log).
		Build()
	if *login != "" {
		settings.DefaultUserCredentials = &esjc.UserCredentials{Username: *login, Password: *password}
	}

	conn := esjc.NewConnection(settings)
	conn.AddListener(benchListener{log: log})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		log.Error(err, "connect failed")
		os.Exit(1)
	}
	defer conn.Close()

	events := make([]esjc.EventData, 0, *eventCount)
	for i := 0; i < *eventCount; i++ {
		events = append(events, esjc.EventData{
			EventType: "benchEvent",
			IsJSON:    true,
			Data:      []byte(fmt.Sprintf(`{"seq":%d}`, i)),
		})
	}

	result, err := conn.AppendToStream(*stream, esjc.ExpectedVersionAny, events, nil).Get(ctx)
	if err != nil {
		log.Error(err, "append failed")
		os.Exit(1)
	}
	log.Info("appended events", "stream", *stream, "nextExpectedVersion", result.NextExpectedVersion)

	slice, err := conn.ReadStreamEventsForward(*stream, 0, *eventCount, false, nil).Get(ctx)
	if err != nil {
		log.Error(err, "read failed")
		os.Exit(1)
	}
	log.Info("read events back", "count", len(slice.Events), "status", fmt.Sprint(slice.Status))

	sub, err := conn.SubscribeToStream(*stream, false, &benchSubscriptionListener{log: log}, nil)
	if err != nil {
		log.Error(err, "subscribe failed")
		os.Exit(1)
	}
	_ = sub

	time.Sleep(*subscribeFor)
	log.Info("done")
}

type benchListener struct{ log *esjclog.Logger }

func (l benchListener) ClientConnected(remote string) { l.log.Info("client connected", "remote", remote) }
func (l benchListener) ClientDisconnected()           { l.log.Info("client disconnected") }
func (l benchListener) ClientReconnecting()           { l.log.Info("client reconnecting") }
func (l benchListener) ConnectionClosed(cause error)  { l.log.Info("connection closed", "cause", cause) }
func (l benchListener) ErrorOccurred(cause error)      { l.log.Error(cause, "error occurred") }
func (l benchListener) AuthenticationFailed()          { l.log.Info("authentication failed") }

type benchSubscriptionListener struct{ log *esjclog.Logger }

func (l *benchSubscriptionListener) OnEvent(event esjc.ResolvedEvent) {
	l.log.Info("event appeared", "eventType", event.Event.EventType, "eventNumber", event.Event.EventNumber)
}

func (l *benchSubscriptionListener) OnDropped(reason string, cause error) {
	l.log.Info("subscription dropped", "reason", reason, "cause", cause)
}
