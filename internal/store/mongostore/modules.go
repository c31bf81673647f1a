package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

type moduleDocument struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty"`
	models.EducationModule `bson:",inline"`
}

func (d moduleDocument) toModel() models.EducationModule {
	m := d.EducationModule
	m.ID = d.ID.Hex()
	return m
}

type completionDocument struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	models.ModuleCompletion `bson:",inline"`
}

func (d completionDocument) toModel() models.ModuleCompletion {
	c := d.ModuleCompletion
	c.ID = d.ID.Hex()
	return c
}

func (s *Store) CreateModule(ctx context.Context, module *models.EducationModule) error {
	doc := moduleDocument{ID: primitive.NewObjectID(), EducationModule: *module}
	if _, err := s.modules().InsertOne(ctx, doc); err != nil {
		return translate("insert module", err)
	}
	module.ID = doc.ID.Hex()
	return nil
}

func (s *Store) FindModuleByID(ctx context.Context, id string) (*models.EducationModule, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc moduleDocument
	if err := s.modules().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate("find module", err)
	}
	module := doc.toModel()
	return &module, nil
}

func (s *Store) ListModules(ctx context.Context, filter store.ModuleFilter) ([]models.EducationModule, error) {
	mongoFilter := bson.M{}
	if filter.Category != "" {
		mongoFilter["category"] = filter.Category
	}
	if filter.Difficulty != "" {
		mongoFilter["difficulty"] = filter.Difficulty
	}
	if filter.ActiveOnly {
		mongoFilter["isActive"] = true
	}

	cursor, err := s.modules().Find(ctx, mongoFilter, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, translate("find modules", err)
	}
	defer cursor.Close(ctx)

	var docs []moduleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate("decode modules", err)
	}
	modules := make([]models.EducationModule, 0, len(docs))
	for _, doc := range docs {
		modules = append(modules, doc.toModel())
	}
	return modules, nil
}

func (s *Store) updateModule(ctx context.Context, op, id string, set bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.modules().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return translate(op, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateModule(ctx context.Context, module *models.EducationModule) error {
	return s.updateModule(ctx, "update module", module.ID, bson.M{
		"title":         module.Title,
		"description":   module.Description,
		"category":      module.Category,
		"difficulty":    module.Difficulty,
		"estimatedTime": module.EstimatedTime,
		"sections":      module.Sections,
		"quiz":          module.Quiz,
		"tags":          module.Tags,
		"isActive":      module.IsActive,
		"updatedAt":     time.Now().UTC(),
	})
}

func (s *Store) SetModuleActive(ctx context.Context, id string, active bool) error {
	return s.updateModule(ctx, "set module active", id, bson.M{"isActive": active, "updatedAt": time.Now().UTC()})
}

func (s *Store) UpdateModuleStatistics(ctx context.Context, id string, stats models.ModuleStatistics) error {
	return s.updateModule(ctx, "update module statistics", id, bson.M{"statistics": stats})
}

func (s *Store) CountModules(ctx context.Context, activeOnly bool) (int64, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	total, err := s.modules().CountDocuments(ctx, filter)
	if err != nil {
		return 0, translate("count modules", err)
	}
	return total, nil
}

func (s *Store) RecordCompletion(ctx context.Context, completion *models.ModuleCompletion) error {
	doc := completionDocument{ID: primitive.NewObjectID(), ModuleCompletion: *completion}
	if _, err := s.completions().InsertOne(ctx, doc); err != nil {
		return translate("insert completion", err)
	}
	completion.ID = doc.ID.Hex()
	return nil
}

func (s *Store) FindCompletion(ctx context.Context, userID, moduleID string) (*models.ModuleCompletion, error) {
	var doc completionDocument
	err := s.completions().FindOne(ctx, bson.M{"userId": userID, "moduleId": moduleID}).Decode(&doc)
	if err != nil {
		return nil, translate("find completion", err)
	}
	completion := doc.toModel()
	return &completion, nil
}

func (s *Store) ListCompletions(ctx context.Context, filter store.CompletionFilter) ([]models.ModuleCompletion, error) {
	mongoFilter := bson.M{}
	if filter.UserID != "" {
		mongoFilter["userId"] = filter.UserID
	}
	if filter.ModuleID != "" {
		mongoFilter["moduleId"] = filter.ModuleID
	}
	cursor, err := s.completions().Find(ctx, mongoFilter, options.Find().SetSort(bson.M{"completedAt": -1}))
	if err != nil {
		return nil, translate("find completions", err)
	}
	defer cursor.Close(ctx)

	var docs []completionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate("decode completions", err)
	}
	completions := make([]models.ModuleCompletion, 0, len(docs))
	for _, doc := range docs {
		completions = append(completions, doc.toModel())
	}
	return completions, nil
}

func (s *Store) CountCompletions(ctx context.Context) (int64, error) {
	total, err := s.completions().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, translate("count completions", err)
	}
	return total, nil
}
