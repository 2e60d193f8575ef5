package mongodb

import (
	"context"
	"errors"
	"fmt"

	"habit_notifier/internal/domain/notification"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	notificationsCollection = "notifications"
	logsCollection          = "notificationLogs"
)

// NotificationRepository implements notification.Repository on MongoDB.
type NotificationRepository struct {
	db *mongo.Database
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Migrate creates the log indexes; definitions are keyed by _id.
func (r *NotificationRepository) Migrate(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notificationId", Value: 1}},
			Options: options.Index().SetName("notification_id_idx"),
		},
		{
			Keys:    bson.D{{Key: "triggeredAt", Value: 1}},
			Options: options.Index().SetName("triggered_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "notificationId", Value: 1},
				{Key: "triggeredAt", Value: 1},
			},
			Options: options.Index().SetName("user_notification_triggered_idx"),
		},
	}
	if _, err := r.db.Collection(logsCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating log indexes: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Put(ctx context.Context, def *notification.Definition) error {
	if def.Actions == nil {
		def = def.Clone()
		def.Actions = []notification.Action{}
	}
	_, err := r.db.Collection(notificationsCollection).ReplaceOne(ctx,
		bson.M{"_id": def.ID}, def, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error upserting notification %s: %w", def.ID, err)
	}
	return nil
}

func (r *NotificationRepository) Get(ctx context.Context, id string) (*notification.Definition, error) {
	var def notification.Definition
	err := r.db.Collection(notificationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&def)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notification.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("error getting notification %s: %w", id, err)
	}
	return &def, nil
}

func (r *NotificationRepository) GetAll(ctx context.Context) ([]*notification.Definition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.db.Collection(notificationsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer cursor.Close(ctx)

	defs := make([]*notification.Definition, 0)
	if err = cursor.All(ctx, &defs); err != nil {
		return nil, fmt.Errorf("error decoding notifications: %w", err)
	}
	return defs, nil
}

func (r *NotificationRepository) AppendLog(ctx context.Context, e *notification.LogEntry) error {
	_, err := r.db.Collection(logsCollection).InsertOne(ctx, e)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", notification.ErrDuplicateLog, e.ID)
		}
		return fmt.Errorf("error appending notification log %s: %w", e.ID, err)
	}
	return nil
}

func (r *NotificationRepository) UpdateLog(ctx context.Context, e *notification.LogEntry) error {
	res, err := r.db.Collection(logsCollection).ReplaceOne(ctx, bson.M{"_id": e.ID}, e)
	if err != nil {
		return fmt.Errorf("error updating notification log %s: %w", e.ID, err)
	}
	if res.MatchedCount == 0 {
		return notification.ErrLogNotFound
	}
	return nil
}

func (r *NotificationRepository) GetLogsForDefinition(ctx context.Context, definitionID string) ([]*notification.LogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "triggeredAt", Value: 1}})
	cursor, err := r.db.Collection(logsCollection).Find(ctx, bson.M{"notificationId": definitionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying logs for %s: %w", definitionID, err)
	}
	defer cursor.Close(ctx)

	entries := make([]*notification.LogEntry, 0)
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding logs for %s: %w", definitionID, err)
	}
	return entries, nil
}

func (r *NotificationRepository) LatestLogForDefinition(ctx context.Context, definitionID string) (*notification.LogEntry, error) {
	var e notification.LogEntry
	opts := options.FindOne().SetSort(bson.D{{Key: "triggeredAt", Value: -1}})
	err := r.db.Collection(logsCollection).FindOne(ctx, bson.M{"notificationId": definitionID}, opts).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notification.ErrLogNotFound
		}
		return nil, fmt.Errorf("error getting latest log for %s: %w", definitionID, err)
	}
	return &e, nil
}
