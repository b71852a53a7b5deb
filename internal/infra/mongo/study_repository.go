package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"study-service/internal/domain"
)

type StudyRepository struct {
	coll *mongo.Collection
}

func NewStudyRepository(db *mongo.Database) *StudyRepository {
	return &StudyRepository{coll: db.Collection(studiesCollection)}
}

func (r *StudyRepository) Create(ctx context.Context, study *domain.Study) error {
	if _, err := r.coll.InsertOne(ctx, study); err != nil {
		return fmt.Errorf("insert study: %w", err)
	}
	return nil
}

func (r *StudyRepository) Get(ctx context.Context, userID, id string) (domain.Study, error) {
	var study domain.Study
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&study)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Study{}, domain.ErrStudyNotFound
	}
	if err != nil {
		return domain.Study{}, fmt.Errorf("find study: %w", err)
	}
	return study, nil
}

func (r *StudyRepository) List(ctx context.Context, userID string) ([]domain.Study, error) {
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	var out []domain.Study
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode studies: %w", err)
	}
	return out, nil
}

// Update replaces the whole document; the last writer wins.
func (r *StudyRepository) Update(ctx context.Context, study *domain.Study) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": study.ID, "userId": study.UserID}, study)
	if err != nil {
		return fmt.Errorf("replace study: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrStudyNotFound
	}
	return nil
}
