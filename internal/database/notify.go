package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/npezzotti/go-tripplanner/internal/types"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

// PgNotifier publishes row changes on a Postgres NOTIFY channel so every
// server instance listening on it can fan them out.
type PgNotifier struct {
	conn    *sql.DB
	channel string
}

func NewPgNotifier(db *PgTripPlannerRepository, channel string) *PgNotifier {
	return &PgNotifier{conn: db.conn, channel: channel}
}

func (n *PgNotifier) Publish(ctx context.Context, change types.RowChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	if _, err := n.conn.ExecContext(ctx, "SELECT pg_notify($1, $2)", n.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}

	return nil
}

// ChangeListener receives row changes from a NOTIFY channel and hands them
// to a dispatch function.
type ChangeListener struct {
	log      *log.Logger
	listener *pq.Listener
	dispatch func(types.RowChange)
}

func NewChangeListener(logger *log.Logger, dsn, channel string, dispatch func(types.RowChange)) (*ChangeListener, error) {
	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Printf("listener event %d: %v", ev, err)
		}
	})

	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %q: %w", channel, err)
	}

	return &ChangeListener{
		log:      logger,
		listener: listener,
		dispatch: dispatch,
	}, nil
}

// Run blocks until ctx is cancelled.
func (cl *ChangeListener) Run(ctx context.Context) {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case n := <-cl.listener.Notify:
			// nil is sent after a reconnect; changes in the gap are recovered by client polling
			if n == nil {
				cl.log.Println("listener reconnected")
				continue
			}
			cl.handle(n.Extra)
		case <-ticker.C:
			if err := cl.listener.Ping(); err != nil {
				cl.log.Println("listener ping:", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (cl *ChangeListener) handle(payload string) {
	var change types.RowChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		cl.log.Println("decode change:", err)
		return
	}
	cl.dispatch(change)
}

func (cl *ChangeListener) Close() error {
	return cl.listener.Close()
}
