package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// ReactionAggregator serializes reaction mutations per message so concurrent
// adds and removes of the same emoji resolve to a consistent aggregate.
type ReactionAggregator struct {
	messages store.MessageStore
	locks    *keyedMutex
}

// NewReactionAggregator creates an aggregator over the message store.
func NewReactionAggregator(messages store.MessageStore) *ReactionAggregator {
	return &ReactionAggregator{
		messages: messages,
		locks:    newKeyedMutex(),
	}
}

// Add records a user's reaction and returns the aggregated entry for the
// emoji after the add. Reacting twice with the same emoji yields Conflict
// and leaves the aggregate untouched.
func (a *ReactionAggregator) Add(ctx context.Context, messageID, emoji, userID string) (ReactionView, *CoreError) {
	unlock := a.locks.Lock(messageID)
	defer unlock()

	if err := a.messages.AddReaction(ctx, messageID, emoji, userID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ReactionView{}, Conflict("already reacted with this emoji")
		}
		if errors.Is(err, store.ErrNotFound) {
			return ReactionView{}, NotFound("message not found")
		}
		return ReactionView{}, Infrastructure(fmt.Errorf("add reaction: %w", err))
	}

	entries, err := a.messages.ListReactions(ctx, messageID)
	if err != nil {
		return ReactionView{}, Infrastructure(fmt.Errorf("list reactions: %w", err))
	}
	for _, entry := range entries {
		if entry.Emoji == emoji {
			return newReactionView(entry), nil
		}
	}
	return ReactionView{}, Infrastructure(fmt.Errorf("reaction %q missing after add", emoji))
}

// Remove deletes a user's reaction. Removing a reaction that does not exist
// yields NotFound. When the last user of an emoji removes it the aggregate
// entry disappears entirely.
func (a *ReactionAggregator) Remove(ctx context.Context, messageID, emoji, userID string) *CoreError {
	unlock := a.locks.Lock(messageID)
	defer unlock()

	if err := a.messages.RemoveReaction(ctx, messageID, emoji, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFound("reaction not found")
		}
		return Infrastructure(fmt.Errorf("remove reaction: %w", err))
	}
	return nil
}
