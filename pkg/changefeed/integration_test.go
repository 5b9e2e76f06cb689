package changefeed_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/changefeed"
	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/storage"
	testdb "github.com/fcamachol/chatflow/test/database"
)

func TestConsumer_ReactionUpsertReachesQueueViaNotify(t *testing.T) {
	ctx := context.Background()
	dbClient, connString := testdb.NewTestClientWithConnString(t)
	gw := storage.New(dbClient.DB)

	instanceID := "inst-" + uuid.NewString()
	_, err := dbClient.DB.ExecContext(ctx, `
		INSERT INTO instances (instance_id, owner_jid, creator_user_id, api_base_url, api_key,
		                        is_owner_cache, connection_state, created_at, updated_at)
		VALUES ($1, '5215500000000@s.whatsapp.net', 'user-1', 'https://provider.example', 'key',
		        false, 'open', now(), now())`, instanceID)
	require.NoError(t, err)

	messageID := "M-" + uuid.NewString()
	senderJID := "5215500000000@s.whatsapp.net"
	chatID := senderJID

	_, err = gw.UpsertContact(ctx, models.Contact{JID: senderJID, InstanceID: instanceID, PushName: "Tester"})
	require.NoError(t, err)
	_, err = gw.UpsertChat(ctx, models.Chat{ChatID: chatID, InstanceID: instanceID, Type: models.ChatIndividual})
	require.NoError(t, err)
	_, err = gw.UpsertMessage(ctx, models.Message{
		MessageID: messageID, InstanceID: instanceID, ChatID: chatID, SenderJID: senderJID,
		MessageType: models.MessageText, Content: "hello", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	consumer := changefeed.NewConsumer(gw, connString, 10)
	require.NoError(t, consumer.Start(ctx))
	t.Cleanup(func() { consumer.Stop(context.Background()) })

	reactorJID := "5215511111111@s.whatsapp.net"
	_, err = gw.UpsertReaction(ctx, models.MessageReaction{
		MessageID: messageID, InstanceID: instanceID, ReactorJID: reactorJID,
		ReactionEmoji: "🚨", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		items, err := gw.LeaseQueueBatch(ctx, 10)
		if err != nil || len(items) == 0 {
			return false
		}
		for _, item := range items {
			if item.EventType == models.QueueEventReaction && item.Priority == models.PriorityHigh {
				return true
			}
		}
		return false
	}, 5*time.Second, 100*time.Millisecond, "reaction NOTIFY should translate into a high-priority queue item")
}
