package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"tripchat/internal/models"
	"tripchat/internal/storage"

	"github.com/stretchr/testify/require"
)

type fakeGroupStore struct {
	groups map[string]*models.Group
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{groups: map[string]*models.Group{}}
}

func (s *fakeGroupStore) SaveGroup(_ context.Context, group models.Group) error {
	s.groups[group.ID] = &group
	return nil
}

func (s *fakeGroupStore) AppendMessage(_ context.Context, groupID string, msg models.Message) error {
	g, ok := s.groups[groupID]
	if !ok {
		return storage.ErrGroupNotFound
	}
	if !g.IsMember(msg.Sender) {
		return storage.ErrNotAMember
	}

	g.Messages = append(g.Messages, msg)
	return nil
}

func (s *fakeGroupStore) GroupsByMember(_ context.Context, email string) ([]models.Group, error) {
	var out []models.Group
	for _, g := range s.groups {
		if g.IsMember(email) {
			out = append(out, *g)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	published []struct {
		groupID string
		msg     models.Message
	}
}

func (p *recordingPublisher) PublishNewMessage(groupID string, msg models.Message) {
	p.published = append(p.published, struct {
		groupID string
		msg     models.Message
	}{groupID, msg})
}

func newTestChat() (*Chat, *fakeGroupStore, *recordingPublisher) {
	store := newFakeGroupStore()
	pub := &recordingPublisher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, store, store, pub), store, pub
}

func TestCreateGroup_OwnerIsSoleMember(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestChat()

	group, err := c.CreateGroup(context.Background(), "Rome trip", "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, group.ID)
	require.Equal(t, []string{"a@x.com"}, group.Members)
	require.Empty(t, group.Messages)
}

func TestListGroups_OnlyMemberships(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestChat()
	ctx := context.Background()

	mine, err := c.CreateGroup(ctx, "mine", "a@x.com")
	require.NoError(t, err)

	_, err = c.CreateGroup(ctx, "theirs", "b@x.com")
	require.NoError(t, err)

	groups, err := c.ListGroups(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, mine.ID, groups[0].ID)
}

func TestSendMessage_StoresAndPublishes(t *testing.T) {
	t.Parallel()

	c, store, pub := newTestChat()
	ctx := context.Background()

	group, err := c.CreateGroup(ctx, "g", "a@x.com")
	require.NoError(t, err)

	msg, err := c.SendMessage(ctx, group.ID, "a@x.com", "hello")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", msg.Sender)
	require.Equal(t, "hello", msg.Text)
	require.False(t, msg.SentAt.IsZero())

	require.Len(t, store.groups[group.ID].Messages, 1)

	require.Len(t, pub.published, 1)
	require.Equal(t, group.ID, pub.published[0].groupID)
	require.Equal(t, msg, pub.published[0].msg)
}

func TestSendMessage_UnknownGroupNoBroadcast(t *testing.T) {
	t.Parallel()

	c, _, pub := newTestChat()

	_, err := c.SendMessage(context.Background(), "no-such-group", "a@x.com", "hi")
	require.True(t, errors.Is(err, storage.ErrGroupNotFound))
	require.Empty(t, pub.published)
}

func TestSendMessage_NonMemberNoBroadcast(t *testing.T) {
	t.Parallel()

	c, _, pub := newTestChat()
	ctx := context.Background()

	group, err := c.CreateGroup(ctx, "g", "a@x.com")
	require.NoError(t, err)

	_, err = c.SendMessage(ctx, group.ID, "intruder@x.com", "hi")
	require.True(t, errors.Is(err, storage.ErrNotAMember))
	require.Empty(t, pub.published)
}

func TestSendMessage_AppendOrderPreserved(t *testing.T) {
	t.Parallel()

	c, store, _ := newTestChat()
	ctx := context.Background()

	group, err := c.CreateGroup(ctx, "g", "a@x.com")
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := c.SendMessage(ctx, group.ID, "a@x.com", text)
		require.NoError(t, err)
	}

	log := store.groups[group.ID].Messages
	require.Equal(t, []string{"one", "two", "three"}, []string{log[0].Text, log[1].Text, log[2].Text})
}
