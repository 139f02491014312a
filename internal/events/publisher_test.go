package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recordingConn) Publish(subject string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func TestNATSPublisherPublish(t *testing.T) {
	conn := &recordingConn{}
	publisher := NewNATSPublisher(conn, "avatair.events.", zerolog.Nop())

	err := publisher.Publish(context.Background(), Event{Type: ResponseRound, ResponseID: "responseid1", Step: "generate"})
	require.NoError(t, err)
	require.Equal(t, []string{"avatair.events.response.round"}, conn.subjects)

	var decoded Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	require.Equal(t, "responseid1", decoded.ResponseID)
	require.Equal(t, "generate", decoded.Step)
	require.False(t, decoded.OccurredAt.IsZero())
}

func TestNATSPublisherSurfacesErrors(t *testing.T) {
	conn := &recordingConn{err: errors.New("connection closed")}
	publisher := NewNATSPublisher(conn, "", zerolog.Nop())

	err := publisher.Publish(context.Background(), Event{Type: ResponseCreated})
	require.ErrorContains(t, err, "avatair.response.created")
}

func TestNopPublisher(t *testing.T) {
	require.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Type: SurveyExported}))
}
