// Package cache stores rendered artifacts and import results between runs.
//
// Three backends implement [Cache]: [NullCache] (caching disabled),
// [FileCache] (one JSON file per entry, used by the CLI) and [RedisCache]
// (shared by server instances). Keys are built by a [Keyer] from a content
// hash plus the options that influence the cached value, so a changed
// option never serves a stale artifact.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Time-to-live for each kind of cached value.
const (
	// TTLArtifact covers rendered HTML, SVG, DOT and PNG output. Artifacts are
	// keyed by content hash so they only go stale when the renderer changes.
	TTLArtifact = 7 * 24 * time.Hour

	// TTLImport covers Neo4j query results, which change with the database.
	TTLImport = time.Hour
)

// Keyer builds cache keys.
type Keyer interface {
	// ArtifactKey identifies a rendered artifact of the graph with graphHash.
	ArtifactKey(graphHash string, opts ArtifactKeyOpts) string
	// ImportKey identifies the graph produced by a source query.
	ImportKey(source, query string, opts ImportKeyOpts) string
}

// ArtifactKeyOpts holds the render options that change an artifact.
type ArtifactKeyOpts struct {
	Format     string  `json:"format"`
	Width      string  `json:"width,omitempty"`
	Height     string  `json:"height,omitempty"`
	Tooltip    bool    `json:"tooltip,omitempty"`
	Fragment   bool    `json:"fragment,omitempty"`
	Detailed   bool    `json:"detailed,omitempty"`
	Scale      float64 `json:"scale,omitempty"`
	Viewport   string  `json:"viewport,omitempty"`
	ConfigHash string  `json:"config_hash,omitempty"`
	BundleHash string  `json:"bundle_hash,omitempty"`
}

// ImportKeyOpts holds the import options that change an imported graph.
type ImportKeyOpts struct {
	Database            string         `json:"database,omitempty"`
	Params              map[string]any `json:"params,omitempty"`
	SizeProperty        string         `json:"size_property,omitempty"`
	NodeCaption         string         `json:"node_caption,omitempty"`
	RelationshipCaption string         `json:"relationship_caption,omitempty"`
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ArtifactKey hashes graphHash together with opts.
func (DefaultKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", graphHash, opts)
}

// ImportKey hashes the source name, query text and opts.
func (DefaultKeyer) ImportKey(source, query string, opts ImportKeyOpts) string {
	return hashKey("import:"+source, query, opts)
}
