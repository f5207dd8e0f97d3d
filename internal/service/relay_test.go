package service

import (
	"context"
	"testing"

	"warelay/internal/models"
	"warelay/pkg/wassup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relayFixture(gateway *mockGateway) (*Relay, *mockMessageStore) {
	messages := newMockMessageStore()
	return NewRelay(messages, &mockFactory{gateway: gateway}, testLogger()), messages
}

func outgoingMsg() *models.Msg {
	return &models.Msg{
		ID:         42,
		ChannelID:  1,
		Direction:  models.DirectionOut,
		Status:     models.StatusPending,
		ContactURN: "tel:+27820009999",
		Text:       "hello there",
	}
}

func TestSendPlainText(t *testing.T) {
	gateway := &mockGateway{
		sendUUID:       "gw-msg-uuid",
		sendTranscript: &wassup.Transcript{Method: "POST", URL: "/messages/", StatusCode: 201},
	}
	relay, messages := relayFixture(gateway)

	err := relay.Send(context.Background(), directChannel(), outgoingMsg())
	require.NoError(t, err)

	require.Len(t, gateway.sentPayloads, 1)
	payload := gateway.sentPayloads[0]
	assert.Equal(t, "+27820009999", payload.ToAddr)
	assert.Equal(t, "+27820001111", payload.Number)
	assert.Empty(t, payload.Group)
	assert.Equal(t, "hello there", payload.Content)
	assert.Empty(t, gateway.sentMedia)

	assert.Equal(t, "gw-msg-uuid", messages.wired[42])
	assert.Equal(t, []string{"Message sent."}, messages.logNames)
	assert.Equal(t, 201, messages.logs[0].StatusCode)
}

func TestSendGroupChannelCarriesGroupUUID(t *testing.T) {
	ch := directChannel()
	ch.Type = models.ChannelTypeGroup
	ch.Config[models.ConfigGroupUUID] = "group-uuid"
	gateway := &mockGateway{sendUUID: "gw-msg-uuid"}
	relay, _ := relayFixture(gateway)

	err := relay.Send(context.Background(), ch, outgoingMsg())
	require.NoError(t, err)
	assert.Equal(t, "group-uuid", gateway.sentPayloads[0].Group)
}

func TestSendReplyResolvesExternalID(t *testing.T) {
	gateway := &mockGateway{sendUUID: "gw-msg-uuid"}
	relay, messages := relayFixture(gateway)
	messages.externalIDs[7] = "inbound-gw-uuid"

	msg := outgoingMsg()
	msg.ResponseToID = 7
	err := relay.Send(context.Background(), directChannel(), msg)
	require.NoError(t, err)
	assert.Equal(t, "inbound-gw-uuid", gateway.sentPayloads[0].InReplyTo)
}

func TestSendFirstSupportedAttachment(t *testing.T) {
	gateway := &mockGateway{sendUUID: "gw-msg-uuid"}
	relay, _ := relayFixture(gateway)

	msg := outgoingMsg()
	msg.Attachments = []string{
		"image/jpeg:https://media.example.com/a.jpg",
		"image/png:https://media.example.com/b.png",
	}
	err := relay.Send(context.Background(), directChannel(), msg)
	require.NoError(t, err)

	require.Len(t, gateway.sentMedia, 1)
	assert.Equal(t, models.Attachment{
		ContentType: "image/jpeg",
		URL:         "https://media.example.com/a.jpg",
	}, gateway.sentMedia[0])
}

func TestSendUnsupportedAttachmentFallsBackToText(t *testing.T) {
	gateway := &mockGateway{sendUUID: "gw-msg-uuid"}
	relay, messages := relayFixture(gateway)

	msg := outgoingMsg()
	msg.Attachments = []string{"text/calendar:https://media.example.com/invite.ics"}
	err := relay.Send(context.Background(), directChannel(), msg)
	require.NoError(t, err)

	assert.Empty(t, gateway.sentMedia)
	require.Len(t, gateway.sentPayloads, 1)
	assert.Equal(t, "hello there", gateway.sentPayloads[0].Content)
	assert.Equal(t, "gw-msg-uuid", messages.wired[42])
}

func TestSendGatewayFailureMarksFailed(t *testing.T) {
	gateway := &mockGateway{
		sendErr:        assert.AnError,
		sendTranscript: &wassup.Transcript{Method: "POST", URL: "/messages/", StatusCode: 500},
	}
	relay, messages := relayFixture(gateway)

	err := relay.Send(context.Background(), directChannel(), outgoingMsg())
	assert.Error(t, err)
	assert.Equal(t, []int64{42}, messages.failed)
	assert.Empty(t, messages.wired)
	// transcript is still recorded for diagnostics
	require.Len(t, messages.logs, 1)
	assert.Equal(t, 500, messages.logs[0].StatusCode)
}

func TestSendBadCredentialMarksFailed(t *testing.T) {
	relay, messages := relayFixture(&mockGateway{})

	ch := directChannel()
	ch.Config = map[string]interface{}{}
	err := relay.Send(context.Background(), ch, outgoingMsg())
	assert.Error(t, err)
	assert.Equal(t, []int64{42}, messages.failed)
}
