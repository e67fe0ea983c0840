package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "tripchat/internal/lib/logger"
	"tripchat/internal/models"
	"tripchat/internal/storage"

	"github.com/google/uuid"
)

type Chat struct {
	log         *slog.Logger
	grpSaver    GroupSaver
	grpProvider GroupProvider
	publisher   MessagePublisher
}

type GroupSaver interface {
	SaveGroup(ctx context.Context, group models.Group) error
	AppendMessage(ctx context.Context, groupID string, msg models.Message) error
}

type GroupProvider interface {
	GroupsByMember(ctx context.Context, email string) ([]models.Group, error)
}

// MessagePublisher fans a stored message out to sockets subscribed to the
// group's channel. Delivery is best-effort; the send path does not wait on it.
type MessagePublisher interface {
	PublishNewMessage(groupID string, msg models.Message)
}

func New(
	log *slog.Logger,
	groupSaver GroupSaver,
	groupProvider GroupProvider,
	publisher MessagePublisher,
) *Chat {
	return &Chat{
		log:         log,
		grpSaver:    groupSaver,
		grpProvider: groupProvider,
		publisher:   publisher,
	}
}

// CreateGroup creates a group whose sole initial member is the owner.
func (c *Chat) CreateGroup(ctx context.Context, name, ownerEmail string) (models.Group, error) {
	const op = "chat.CreateGroup"

	log := c.log.With(slog.String("op", op))

	group := models.Group{
		ID:       uuid.New().String(),
		Name:     name,
		Members:  []string{ownerEmail},
		Messages: []models.Message{},
	}

	if err := c.grpSaver.SaveGroup(ctx, group); err != nil {
		log.Error("failed to save group", sl.Err(err))
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("group created", slog.String("group_id", group.ID))

	return group, nil
}

// ListGroups returns the groups the given email is a member of, and only those.
func (c *Chat) ListGroups(ctx context.Context, email string) ([]models.Group, error) {
	const op = "chat.ListGroups"

	groups, err := c.grpProvider.GroupsByMember(ctx, email)
	if err != nil {
		c.log.With(slog.String("op", op)).Error("failed to list groups", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groups, nil
}

// SendMessage appends a message to the group's log and, once stored,
// publishes it to the group's channel. A failed append produces no broadcast.
func (c *Chat) SendMessage(ctx context.Context, groupID, sender, text string) (models.Message, error) {
	const op = "chat.SendMessage"

	log := c.log.With(slog.String("op", op), slog.String("group_id", groupID))

	msg := models.Message{
		Sender: sender,
		Text:   text,
		SentAt: time.Now().UTC(),
	}

	if err := c.grpSaver.AppendMessage(ctx, groupID, msg); err != nil {
		if errors.Is(err, storage.ErrGroupNotFound) {
			log.Warn("group not found")
			return models.Message{}, storage.ErrGroupNotFound
		}
		if errors.Is(err, storage.ErrNotAMember) {
			log.Warn("sender is not a member", slog.String("sender", sender))
			return models.Message{}, storage.ErrNotAMember
		}

		log.Error("failed to append message", sl.Err(err))
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	c.publisher.PublishNewMessage(groupID, msg)

	log.Info("message sent", slog.String("sender", sender))

	return msg, nil
}
