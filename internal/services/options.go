package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/apiserver/types"
)

const DefaultEventChannel = "tasktrack.events"

// ListCache is the read-through cache used for list operations. List keys
// embed a per-scope generation so a list read that races a mutation can only
// land under a key that is no longer consulted.
type ListCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Generation(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) (int64, error)
	DeletePattern(ctx context.Context, pattern string) error
}

// EventPublisher sends change events to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Options carries the optional collaborators shared by the services.
// A nil Cache or Events disables that side channel.
type Options struct {
	Cache   ListCache
	Events  EventPublisher
	Channel string
	Logger  logrus.FieldLogger
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Channel == "" {
		o.Channel = DefaultEventChannel
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// listKey resolves the versioned key for a list within scope. It must be
// called before the list is read from the repository. ok is false when the
// cache is disabled or the generation cannot be read.
func (o Options) listKey(ctx context.Context, scope, suffix string) (string, bool) {
	if o.Cache == nil {
		return "", false
	}
	gen, err := o.Cache.Generation(ctx, generationKey(scope))
	if err != nil {
		o.Logger.WithError(err).WithField("scope", scope).Warn("cache read failed")
		return "", false
	}
	return fmt.Sprintf("%s:v%d:%s", scope, gen, suffix), true
}

func (o Options) cached(ctx context.Context, key string, dest any) bool {
	hit, err := o.Cache.Get(ctx, key, dest)
	if err != nil {
		o.Logger.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	return hit
}

func (o Options) store(ctx context.Context, key string, value any) {
	if err := o.Cache.Set(ctx, key, value); err != nil {
		o.Logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// invalidate moves each scope to a new generation and drops the lists
// cached under earlier ones.
func (o Options) invalidate(ctx context.Context, scopes ...string) {
	if o.Cache == nil {
		return
	}
	for _, scope := range scopes {
		if _, err := o.Cache.Bump(ctx, generationKey(scope)); err != nil {
			o.Logger.WithError(err).WithField("scope", scope).Warn("cache invalidation failed")
		}
		if err := o.Cache.DeletePattern(ctx, scope+":v*"); err != nil {
			o.Logger.WithError(err).WithField("scope", scope).Warn("cache invalidation failed")
		}
	}
}

func (o Options) publish(ctx context.Context, eventType types.EventType, userID, entityID string, data any) {
	if o.Events == nil {
		return
	}
	event := types.Event{
		Type:       eventType,
		UserID:     userID,
		EntityID:   entityID,
		OccurredAt: o.Now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		o.Logger.WithError(err).WithField("event", eventType).Warn("event encoding failed")
		return
	}
	attrs := map[string]string{"type": string(eventType), "user_id": userID}
	if _, err := o.Events.Publish(ctx, o.Channel, payload, attrs); err != nil {
		o.Logger.WithError(err).WithField("event", eventType).Warn("event publish failed")
	}
}

func projectsScope(userID string) string {
	return "projects:" + userID
}

func tasksScope(userID string) string {
	return "tasks:" + userID
}

func tasksSuffix(filter types.TaskFilter) string {
	if filter.ProjectID != nil {
		return "project:" + *filter.ProjectID
	}
	return "all"
}

func generationKey(scope string) string {
	return scope + ":gen"
}
