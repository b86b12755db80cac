package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"recipe_feedback/internal/domain"
)

// Repo is the document-store backend: one `feedbacks` collection, ObjectID
// hex as the opaque id, aggregation pipeline for the subject summary.
type Repo struct{ coll *mongo.Collection }

func New(db *mongo.Database) *Repo {
	return &Repo{coll: db.Collection("feedbacks")}
}

type feedbackDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	AuthorID  string        `bson:"author_id"`
	SubjectID string        `bson:"subject_id"`
	Rating    int           `bson:"rating"`
	Comment   *string       `bson:"comment,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func toDoc(f domain.Feedback) (feedbackDoc, error) {
	d := feedbackDoc{
		AuthorID:  f.AuthorID,
		SubjectID: f.SubjectID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if f.ID != "" {
		oid, err := parseID(f.ID)
		if err != nil {
			return feedbackDoc{}, err
		}
		d.ID = oid
	}
	return d, nil
}

func fromDoc(d feedbackDoc) domain.Feedback {
	return domain.Feedback{
		ID:        d.ID.Hex(),
		AuthorID:  d.AuthorID,
		SubjectID: d.SubjectID,
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// parseID maps the opaque string id onto an ObjectID. Malformed hex can
// never name a stored document, so it surfaces as not-found.
func parseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, domain.ErrNotFound
	}
	return oid, nil
}

// EnsureIndexes creates the listing indexes; called once at startup.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *Repo) Save(ctx context.Context, f domain.Feedback) (domain.Feedback, error) {
	doc, err := toDoc(f)
	if err != nil {
		return domain.Feedback{}, err
	}

	if f.ID == "" {
		res, err := r.coll.InsertOne(ctx, doc)
		if err != nil {
			return domain.Feedback{}, err
		}
		doc.ID = res.InsertedID.(bson.ObjectID)
		return fromDoc(doc), nil
	}

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return domain.Feedback{}, err
	}
	if res.MatchedCount == 0 {
		return domain.Feedback{}, domain.ErrNotFound
	}
	return fromDoc(doc), nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (domain.Feedback, error) {
	oid, err := parseID(id)
	if err != nil {
		return domain.Feedback{}, err
	}
	var doc feedbackDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Feedback{}, domain.ErrNotFound
		}
		return domain.Feedback{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repo) ExistsByID(ctx context.Context, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, nil
	}
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repo) DeleteByID(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) FindAll(ctx context.Context) ([]domain.Feedback, error) {
	return r.queryList(ctx, bson.M{}, options.Find())
}

func (r *Repo) FindByAuthor(ctx context.Context, authorID string) ([]domain.Feedback, error) {
	return r.queryList(ctx, bson.M{"author_id": authorID}, options.Find().SetSort(createdDesc()))
}

func (r *Repo) FindBySubject(ctx context.Context, subjectID string) ([]domain.Feedback, error) {
	return r.queryList(ctx, bson.M{"subject_id": subjectID}, options.Find().SetSort(createdDesc()))
}

func (r *Repo) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"subject_id": subjectID})
}

// AverageBySubject aggregates store-side; rounding happens in the service
// layer so this path agrees with the MySQL AVG path.
func (r *Repo) AverageBySubject(ctx context.Context, subjectID string) (*float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"subject_id": subjectID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var agg []struct {
		AvgRating float64 `bson:"avgRating"`
	}
	if err := cur.All(ctx, &agg); err != nil {
		return nil, err
	}
	if len(agg) == 0 {
		return nil, nil
	}
	v := agg[0].AvgRating
	return &v, nil
}

func (r *Repo) FindRecent(ctx context.Context, n int) ([]domain.Feedback, error) {
	opts := options.Find().SetSort(createdDesc()).SetLimit(int64(n))
	return r.queryList(ctx, bson.M{}, opts)
}

func (r *Repo) queryList(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]domain.Feedback, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []feedbackDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Feedback, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func createdDesc() bson.D {
	return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
}
