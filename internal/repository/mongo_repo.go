package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/marketplace-chat/internal/config"
	"github.com/fathima-sithara/marketplace-chat/internal/models"
)

type mongoRepo struct {
	msgCol    *mongo.Collection
	convCol   *mongo.Collection
	userCol   *mongo.Collection
	notifyCol *mongo.Collection
}

func NewMongoClient(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func NewMongoRepository(db *mongo.Database, cfg *config.Config) Repository {
	return &mongoRepo{
		msgCol:    db.Collection(cfg.Mongo.MessagesCollection),
		convCol:   db.Collection(cfg.Mongo.ConversationsCollection),
		userCol:   db.Collection(cfg.Mongo.UsersCollection),
		notifyCol: db.Collection(cfg.Mongo.NotificationsCollection),
	}
}

func (r *mongoRepo) SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	if _, err := r.msgCol.InsertOne(ctx, m); err != nil {
		return nil, err
	}

	members := MemberKey(m.SenderID, m.ReceiverID)
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"updated_at": now,
			"last_message": &models.LastMessage{
				Content:   m.Preview(),
				CreatedAt: m.CreatedAt,
				SenderID:  m.SenderID,
			},
		},
		"$setOnInsert": bson.M{
			"_id":        uuid.NewString(),
			"type":       m.Type,
			"members":    members,
			"created_at": now,
		},
	}
	_, err := r.convCol.UpdateOne(ctx,
		bson.M{"type": m.Type, "members": members},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *mongoRepo) GetThread(ctx context.Context, convType, userID, otherUserID string) ([]*models.Message, error) {
	filter := bson.M{
		"type": convType,
		"$or": bson.A{
			bson.M{"sender_id": userID, "receiver_id": otherUserID},
			bson.M{"sender_id": otherUserID, "receiver_id": userID},
		},
	}
	cur, err := r.msgCol.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *mongoRepo) MarkThreadRead(ctx context.Context, convType, readerID, peerID string) error {
	_, err := r.msgCol.UpdateMany(ctx,
		bson.M{"type": convType, "sender_id": peerID, "receiver_id": readerID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	return err
}

func (r *mongoRepo) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := r.msgCol.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoRepo) AddReaction(ctx context.Context, id, emoji string) ([]string, error) {
	res := r.msgCol.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"reactions": emoji}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m models.Message
	if err := res.Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m.Reactions, nil
}

func (r *mongoRepo) ListConversations(ctx context.Context, convType, userID string) ([]*models.Conversation, error) {
	cur, err := r.convCol.Find(ctx,
		bson.M{"type": convType, "members": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (r *mongoRepo) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.userCol.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *mongoRepo) SaveNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := r.notifyCol.InsertOne(ctx, n)
	return err
}

func (r *mongoRepo) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	cur, err := r.notifyCol.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(100),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Notification
	for cur.Next(ctx) {
		var n models.Notification
		if err := cur.Decode(&n); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, cur.Err()
}
