package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
)

// DefaultCollection is the collection graphs are stored in.
const DefaultCollection = "graphs"

// MongoOptions configures a MongoStore.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string // defaults to DefaultCollection
}

// MongoStore keeps one document per graph, keyed by name.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type graphDocument struct {
	Info  `bson:",inline"`
	Graph graph.VisualizationGraph `bson:"graph"`
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.Database == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "MongoDB database name is required")
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping MongoDB")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// Save validates g and upserts it under name.
func (s *MongoStore) Save(ctx context.Context, name string, g *graph.VisualizationGraph) error {
	if err := errors.ValidateGraphName(name); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	doc := graphDocument{
		Info: Info{
			Name:          name,
			Nodes:         len(g.Nodes),
			Relationships: len(g.Relationships),
			UpdatedAt:     time.Now().UTC(),
		},
		Graph: *g,
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save graph %s: %w", name, err)
	}
	return nil
}

// Load fetches the graph stored under name.
func (s *MongoStore) Load(ctx context.Context, name string) (*graph.VisualizationGraph, error) {
	if err := errors.ValidateGraphName(name); err != nil {
		return nil, err
	}
	var doc graphDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeNotFound, "graph %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}
	g := graph.New(doc.Graph.Nodes, doc.Graph.Relationships)
	return g, nil
}

// List returns the summaries of every stored graph sorted by name.
func (s *MongoStore) List(ctx context.Context) ([]Info, error) {
	opts := options.Find().
		SetProjection(bson.M{"graph": 0}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	var out []Info
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	return out, nil
}

// Delete removes the graph stored under name.
func (s *MongoStore) Delete(ctx context.Context, name string) error {
	if err := errors.ValidateGraphName(name); err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("delete graph %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeNotFound, "graph %q not found", name)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
