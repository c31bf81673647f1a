package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

type userDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	models.User `bson:",inline"`
}

func (d userDocument) toModel() models.User {
	u := d.User
	u.ID = d.ID.Hex()
	return u
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	doc := userDocument{ID: primitive.NewObjectID(), User: *user}
	doc.Email = strings.ToLower(doc.Email)
	if _, err := s.users().InsertOne(ctx, doc); err != nil {
		return translate("insert user", err)
	}
	user.ID = doc.ID.Hex()
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate("find user", err)
	}
	user := doc.toModel()
	return &user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func userFilter(f store.UserFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Department != "" {
		filter["department"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Department) + "$", "$options": "i"}
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"firstName": pattern},
			bson.M{"lastName": pattern},
			bson.M{"email": pattern},
		}
	}
	return filter
}

func (s *Store) ListUsers(ctx context.Context, filter store.UserFilter) ([]models.User, int64, error) {
	mongoFilter := userFilter(filter)
	total, err := s.users().CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, 0, translate("count users", err)
	}

	opts := pageOptions(options.Find().SetSort(bson.M{"createdAt": -1}), filter.Limit, filter.Offset)
	cursor, err := s.users().Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, 0, translate("find users", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, translate("decode users", err)
	}
	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toModel())
	}
	return users, total, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id, role string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err = s.users().FindOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()}}, opts).Decode(&doc)
	if err != nil {
		return nil, translate("update user role", err)
	}
	user := doc.toModel()
	return &user, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.users().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		return translate("touch last login", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context, query store.UserCountQuery) (int64, error) {
	filter := bson.M{}
	if query.LastLoginSince != nil {
		filter["lastLogin"] = bson.M{"$gte": *query.LastLoginSince}
	}
	if query.CreatedSince != nil {
		filter["createdAt"] = bson.M{"$gte": *query.CreatedSince}
	}
	total, err := s.users().CountDocuments(ctx, filter)
	if err != nil {
		return 0, translate("count users", err)
	}
	return total, nil
}
