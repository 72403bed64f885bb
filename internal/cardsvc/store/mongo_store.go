package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
)

// MongoStore keeps one document per card in the "cards" collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("cards")}
}

// Init creates the unique index on card_id.
func (s *MongoStore) Init(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.M{"card_id": 1},
		Options: options.Index().SetUnique(true),
	}
	_, err := s.col.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		return fmt.Errorf("could not create card_id index: %w", err)
	}
	return nil
}

func (s *MongoStore) GetAll(ctx context.Context) ([]models.CardRecord, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list cards: %w", err)
	}
	defer cur.Close(ctx)

	cards := []models.CardRecord{}
	if err := cur.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("could not decode cards: %w", err)
	}
	return cards, nil
}

func (s *MongoStore) Get(ctx context.Context, cardId string) (*models.CardRecord, error) {
	c := &models.CardRecord{}
	err := s.col.FindOne(ctx, bson.M{"card_id": cardId}).Decode(c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not get card: %w", err)
	}
	return c, nil
}

func (s *MongoStore) Add(ctx context.Context, card models.CardRecord) error {
	_, err := s.col.InsertOne(ctx, card)
	if err != nil {
		return fmt.Errorf("could not insert card: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, cardId string, patch models.CardPatch) (*models.CardRecord, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Printed != nil {
		set["printed"] = *patch.Printed
	}
	if patch.Shipped != nil {
		set["shipped"] = *patch.Shipped
	}
	if patch.Delivered != nil {
		set["delivered"] = *patch.Delivered
	}
	if patch.Revoked != nil {
		set["revoked"] = *patch.Revoked
	}
	if patch.TokenId != nil {
		set["token_id"] = *patch.TokenId
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	c := &models.CardRecord{}
	err := s.col.FindOneAndUpdate(ctx, bson.M{"card_id": cardId}, bson.M{"$set": set}, opts).Decode(c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not update card: %w", err)
	}
	return c, nil
}
