package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

type reportDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	models.Report `bson:",inline"`
}

func (d reportDocument) toModel() models.Report {
	r := d.Report
	r.ID = d.ID.Hex()
	if r.AdminNotes == nil {
		r.AdminNotes = []models.AdminNote{}
	}
	if r.AnalysisResults.Indicators == nil {
		r.AnalysisResults.Indicators = []models.Indicator{}
	}
	return r
}

func reportFilter(f store.ReportFilter) bson.M {
	filter := bson.M{}
	if f.ReportedBy != "" {
		filter["reportedBy"] = f.ReportedBy
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.ReportType != "" {
		filter["reportType"] = f.ReportType
	}
	if f.Severity != "" {
		filter["severity"] = f.Severity
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		dateFilter := bson.M{}
		if f.CreatedFrom != nil {
			dateFilter["$gte"] = *f.CreatedFrom
		}
		if f.CreatedTo != nil {
			dateFilter["$lte"] = *f.CreatedTo
		}
		filter["createdAt"] = dateFilter
	}
	return filter
}

func (s *Store) CreateReport(ctx context.Context, report *models.Report) error {
	doc := reportDocument{ID: primitive.NewObjectID(), Report: *report}
	if doc.AdminNotes == nil {
		doc.AdminNotes = []models.AdminNote{}
	}
	if _, err := s.reports().InsertOne(ctx, doc); err != nil {
		return translate("insert report", err)
	}
	report.ID = doc.ID.Hex()
	return nil
}

func (s *Store) FindReportByID(ctx context.Context, id string) (*models.Report, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc reportDocument
	if err := s.reports().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate("find report", err)
	}
	report := doc.toModel()
	return &report, nil
}

func (s *Store) ListReports(ctx context.Context, filter store.ReportFilter) ([]models.Report, int64, error) {
	mongoFilter := reportFilter(filter)

	total, err := s.reports().CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, 0, translate("count reports", err)
	}

	opts := pageOptions(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}), filter.Limit, filter.Offset)
	cursor, err := s.reports().Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, 0, translate("find reports", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, translate("decode reports", err)
	}
	reports := make([]models.Report, 0, len(docs))
	for _, doc := range docs {
		reports = append(reports, doc.toModel())
	}
	return reports, total, nil
}

func (s *Store) CountReports(ctx context.Context, filter store.ReportFilter) (int64, error) {
	total, err := s.reports().CountDocuments(ctx, reportFilter(filter))
	if err != nil {
		return 0, translate("count reports", err)
	}
	return total, nil
}

// updateReport applies one update document and returns the post-image.
func (s *Store) updateReport(ctx context.Context, op, id string, update bson.M) (*models.Report, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc reportDocument
	if err := s.reports().FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return nil, translate(op, err)
	}
	report := doc.toModel()
	return &report, nil
}

func (s *Store) UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus, note *models.AdminNote) (*models.Report, error) {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}
	if note != nil {
		update["$push"] = bson.M{"adminNotes": *note}
	}
	return s.updateReport(ctx, "update report status", id, update)
}

func (s *Store) AppendReportNote(ctx context.Context, id string, note models.AdminNote) (*models.Report, error) {
	return s.updateReport(ctx, "append report note", id, bson.M{
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
		"$push": bson.M{"adminNotes": note},
	})
}

func (s *Store) UpdateReportVerdict(ctx context.Context, id string, verdict models.Verdict, note models.AdminNote) (*models.Report, error) {
	return s.updateReport(ctx, "update report verdict", id, bson.M{
		"$set":  bson.M{"analysisResults.verdict": verdict, "updatedAt": time.Now().UTC()},
		"$push": bson.M{"adminNotes": note},
	})
}

func (s *Store) aggregate(ctx context.Context, op string, coll *mongo.Collection, pipeline []bson.M, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return translate(op, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return translate(op, err)
	}
	return nil
}

func (s *Store) DailyReportCounts(ctx context.Context, since time.Time) ([]store.DailyCount, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"createdAt": bson.M{"$gte": since}}},
		{"$group": bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}},
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	var rows []struct {
		Date  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := s.aggregate(ctx, "daily report counts", s.reports(), pipeline, &rows); err != nil {
		return nil, err
	}
	counts := make([]store.DailyCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, store.DailyCount{Date: row.Date, Count: row.Count})
	}
	return counts, nil
}

func (s *Store) ReportTypeCounts(ctx context.Context) ([]store.TypeCount, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$reportType", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
	}
	var rows []struct {
		ReportType models.ReportType `bson:"_id"`
		Count      int64             `bson:"count"`
	}
	if err := s.aggregate(ctx, "report type counts", s.reports(), pipeline, &rows); err != nil {
		return nil, err
	}
	counts := make([]store.TypeCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, store.TypeCount{ReportType: row.ReportType, Count: row.Count})
	}
	return counts, nil
}

func (s *Store) TopSenders(ctx context.Context, query store.SenderQuery) ([]store.SenderCount, error) {
	match := reportFilter(store.ReportFilter{Statuses: query.Statuses, CreatedFrom: query.Since})
	pipeline := []bson.M{
		{"$match": match},
		{"$sort": bson.M{"createdAt": -1}},
		{"$group": bson.M{
			"_id":          "$senderEmail",
			"count":        bson.M{"$sum": 1},
			"latestReport": bson.M{"$first": "$createdAt"},
			"severity":     bson.M{"$first": "$severity"},
		}},
		{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "latestReport", Value: -1}}},
	}
	if query.Limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": query.Limit})
	}

	var rows []struct {
		SenderEmail  string          `bson:"_id"`
		Count        int64           `bson:"count"`
		LatestReport time.Time       `bson:"latestReport"`
		Severity     models.Severity `bson:"severity"`
	}
	if err := s.aggregate(ctx, "top senders", s.reports(), pipeline, &rows); err != nil {
		return nil, err
	}
	senders := make([]store.SenderCount, 0, len(rows))
	for _, row := range rows {
		senders = append(senders, store.SenderCount{
			SenderEmail:  row.SenderEmail,
			Count:        row.Count,
			LatestReport: row.LatestReport,
			Severity:     row.Severity,
		})
	}
	return senders, nil
}

func (s *Store) ListAdminNotes(ctx context.Context, limit, offset int) ([]store.NoteEntry, int64, error) {
	countPipeline := []bson.M{
		{"$unwind": "$adminNotes"},
		{"$count": "total"},
	}
	var countRows []struct {
		Total int64 `bson:"total"`
	}
	if err := s.aggregate(ctx, "count notes", s.reports(), countPipeline, &countRows); err != nil {
		return nil, 0, err
	}
	var total int64
	if len(countRows) > 0 {
		total = countRows[0].Total
	}

	pipeline := []bson.M{
		{"$unwind": "$adminNotes"},
		{"$sort": bson.M{"adminNotes.addedAt": -1}},
	}
	if offset > 0 {
		pipeline = append(pipeline, bson.M{"$skip": offset})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": limit})
	}
	pipeline = append(pipeline, bson.M{"$project": bson.M{"emailSubject": 1, "adminNotes": 1}})

	var rows []struct {
		ID           primitive.ObjectID `bson:"_id"`
		EmailSubject string             `bson:"emailSubject"`
		Note         models.AdminNote   `bson:"adminNotes"`
	}
	if err := s.aggregate(ctx, "list notes", s.reports(), pipeline, &rows); err != nil {
		return nil, 0, err
	}
	entries := make([]store.NoteEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, store.NoteEntry{ReportID: row.ID.Hex(), EmailSubject: row.EmailSubject, Note: row.Note})
	}
	return entries, total, nil
}
