package inspect

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/db"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
)

type MongoInspector struct {
	cfg  config.MongoConfig
	open func(context.Context, config.MongoConfig) (*db.MongoHandle, error)
}

func NewMongoInspector(cfg config.MongoConfig) *MongoInspector {
	return &MongoInspector{cfg: cfg, open: db.NewMongoClient}
}

// Collections lists the collections whose name matches the regular
// expression pattern; an empty pattern lists all of them.
func (i *MongoInspector) Collections(ctx context.Context, pattern string, rep *report.Reporter) error {
	filter := bson.M{}
	if pattern != "" {
		filter = bson.M{"name": bson.M{"$regex": pattern}}
	}

	return probe.Run(ctx, probe.Probe[*db.MongoHandle]{
		Name: fmt.Sprintf("%s (mongo)", i.cfg.Database),
		Open: func(ctx context.Context) (*db.MongoHandle, error) {
			return i.open(ctx, i.cfg)
		},
		Action: func(ctx context.Context, handle *db.MongoHandle, rep *report.Reporter) error {
			rep.Info("collections matching %q:", pattern)

			names, err := handle.Database.ListCollectionNames(ctx, filter)
			if err != nil {
				return fmt.Errorf("list collections: %w", err)
			}

			for _, name := range names {
				rep.Row([]string{"name"}, []any{name})
			}
			rep.Summary(len(names))
			return nil
		},
	}, rep)
}
