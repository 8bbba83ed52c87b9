package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskforge/taskify/internal/models"
)

// MongoStore handles task document CRUD in MongoDB. Every query is scoped
// to the owning user id.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("tasks")}
}

// EnsureIndexes creates the compound indexes used by owner-scoped listings.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *MongoStore) Insert(ctx context.Context, task *models.Task) (*models.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Tags == nil {
		task.Tags = []string{}
	}
	if task.Status == models.StatusCompleted {
		task.Completed = true
		task.CompletedAt = &now
	}
	res, err := s.col.InsertOne(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("mongo insert: %w", err)
	}
	task.ID = res.InsertedID.(primitive.ObjectID)
	return task, nil
}

// sortFields maps API sort keys to document fields.
var sortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "title",
	"status":    "status",
	"priority":  "priority",
}

// buildSort translates a "-createdAt" style sort key into a Mongo sort
// document, falling back to newest-created-first.
func buildSort(sort string) bson.D {
	dir := 1
	if strings.HasPrefix(sort, "-") {
		dir = -1
		sort = sort[1:]
	}
	field, ok := sortFields[sort]
	if !ok {
		return bson.D{{Key: "created_at", Value: -1}}
	}
	return bson.D{{Key: field, Value: dir}}
}

// buildListQuery translates a task filter into an owner-scoped Mongo query.
func buildListQuery(userID string, f models.TaskFilter) bson.M {
	query := bson.M{"user_id": userID}
	if f.Status != "" && f.Status != "all" {
		query["status"] = f.Status
	}
	if f.Priority != "" && f.Priority != "all" {
		query["priority"] = f.Priority
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}
	return query
}

// List returns one page of the user's tasks matching the filter, plus the
// total match count.
func (s *MongoStore) List(ctx context.Context, userID string, f models.TaskFilter) ([]models.Task, int, error) {
	query := buildListQuery(userID, f)

	total, err := s.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(buildSort(f.Sort)).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))
	cur, err := s.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	tasks := []models.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, 0, err
	}
	return tasks, int(total), nil
}

func (s *MongoStore) Get(ctx context.Context, userID, id string) (*models.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var task models.Task
	err = s.col.FindOne(ctx, bson.M{"_id": oid, "user_id": userID}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Update applies a partial patch to a task and returns the updated
// document. Status transitions keep completed/completed_at consistent:
// entering completed stamps completed_at, leaving it clears both.
func (s *MongoStore) Update(ctx context.Context, userID, id string, patch models.UpdateTaskRequest) (*models.Task, error) {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now()}
	unset := bson.M{}
	if patch.Title != nil {
		set["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		set["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}
	if patch.DueDate.Set {
		if patch.DueDate.Value != nil {
			set["due_date"] = *patch.DueDate.Value
		} else {
			unset["due_date"] = ""
		}
	}
	if patch.Status != nil && *patch.Status != current.Status {
		set["status"] = *patch.Status
		if *patch.Status == models.StatusCompleted {
			set["completed"] = true
			set["completed_at"] = time.Now()
		} else {
			set["completed"] = false
			unset["completed_at"] = ""
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var task models.Task
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": current.ID, "user_id": userID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes a task and returns the deleted document.
func (s *MongoStore) Delete(ctx context.Context, userID, id string) (*models.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var task models.Task
	err = s.col.FindOneAndDelete(ctx, bson.M{"_id": oid, "user_id": userID}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// bulkSelector matches the intersection of the requested ids and the
// caller's own tasks; ids owned by others simply don't match.
func bulkSelector(userID string, ids []string) bson.M {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	return bson.M{"_id": bson.M{"$in": oids}, "user_id": userID}
}

func (s *MongoStore) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	res, err := s.col.DeleteMany(ctx, bulkSelector(userID, ids))
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) BulkSetStatus(ctx context.Context, userID string, ids []string, status string) (int, error) {
	now := time.Now()
	update := bson.M{"$set": bson.M{
		"status":     status,
		"completed":  status == models.StatusCompleted,
		"updated_at": now,
	}}
	if status == models.StatusCompleted {
		update["$set"].(bson.M)["completed_at"] = now
	} else {
		update["$unset"] = bson.M{"completed_at": ""}
	}
	res, err := s.col.UpdateMany(ctx, bulkSelector(userID, ids), update)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (s *MongoStore) BulkSetPriority(ctx context.Context, userID string, ids []string, priority string) (int, error) {
	res, err := s.col.UpdateMany(ctx, bulkSelector(userID, ids),
		bson.M{"$set": bson.M{"priority": priority, "updated_at": time.Now()}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

// DeleteByOwner removes every task owned by the user. Used by account
// deletion.
func (s *MongoStore) DeleteByOwner(ctx context.Context, userID string) (int, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

// StatusCounts aggregates per-status task counts over the user's tasks.
func (s *MongoStore) StatusCounts(ctx context.Context, userID string) (models.TaskStats, error) {
	var stats models.TaskStats
	cur, err := s.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return stats, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return stats, err
	}
	for _, row := range rows {
		switch row.Status {
		case models.StatusPending:
			stats.Pending = row.Count
		case models.StatusInProgress:
			stats.InProgress = row.Count
		case models.StatusCompleted:
			stats.Completed = row.Count
		}
		stats.Total += row.Count
	}
	return stats, nil
}

// CountOverdue counts the user's tasks with a due date in the past that
// are not completed.
func (s *MongoStore) CountOverdue(ctx context.Context, userID string) (int, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{
		"user_id":  userID,
		"due_date": bson.M{"$lt": time.Now()},
		"status":   bson.M{"$ne": models.StatusCompleted},
	})
	return int(n), err
}

// CountCreatedSince counts the user's tasks created at or after the cutoff.
func (s *MongoStore) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": since},
	})
	return int(n), err
}

// CountCompletedSince counts the user's tasks completed at or after the
// cutoff.
func (s *MongoStore) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{
		"user_id":      userID,
		"completed_at": bson.M{"$gte": since},
	})
	return int(n), err
}
