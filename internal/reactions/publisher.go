package reactions

import (
	"context"
	"encoding/json"
	"fmt"

	libnats "github.com/nats-io/nats.go"

	"murmur/internal/core"
	"murmur/internal/nats"
)

// NATSPublisher forwards reaction events to JetStream, one subject per action.
type NATSPublisher struct {
	NATS *nats.NATS
}

func (p *NATSPublisher) Publish(ctx context.Context, event core.ReactionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &libnats.Msg{
		Subject: nats.Subject("reaction", event.Action),
		Data:    payload,
		Header: libnats.Header{
			libnats.MsgIdHdr: []string{messageID(event)},
		},
	}

	_, err = p.NATS.JS.PublishMsg(ctx, msg)
	return err
}

func messageID(event core.ReactionEvent) string {
	return fmt.Sprintf("%s-%s-%d", event.ID.String(), event.Action, event.Received.UnixNano())
}
