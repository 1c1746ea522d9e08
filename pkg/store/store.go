// Package store persists named visualization graphs.
//
// [FileStore] keeps one JSON file per graph and backs the CLI; [MongoStore]
// keeps one document per graph and backs shared server deployments. Both
// validate names with errors.ValidateGraphName and report missing graphs with
// errors.ErrCodeNotFound.
package store

import (
	"context"
	"time"

	"github.com/matzehuels/nvlviz/pkg/graph"
)

// Store persists graphs by name.
type Store interface {
	Save(ctx context.Context, name string, g *graph.VisualizationGraph) error
	Load(ctx context.Context, name string) (*graph.VisualizationGraph, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

// Info summarizes a stored graph.
type Info struct {
	Name          string    `json:"name" bson:"_id"`
	Nodes         int       `json:"nodes" bson:"node_count"`
	Relationships int       `json:"relationships" bson:"relationship_count"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}
