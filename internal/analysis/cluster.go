package analysis

import (
	"go.uber.org/zap"

	"github.com/Benny93/fanout-go/internal/embeddings"
	"github.com/Benny93/fanout-go/internal/graph"
)

// Clustering defaults.
const (
	DefaultSimilarityThreshold = 0.3
	DefaultThemeTerms          = 5
)

// Member is a node absorbed into a cluster.
type Member struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Cluster is a group of topically similar content around a seed node.
type Cluster struct {
	CenterID   string   `json:"center"`
	Members    []Member `json:"members"`
	ThemeTerms []string `json:"theme"`
}

// Clusterer greedily partitions content into topical clusters.
type Clusterer struct {
	threshold  float64
	themeTerms int
	vectorizer *embeddings.Vectorizer
	logger     *zap.Logger
}

// ClustererOption configures a Clusterer.
type ClustererOption func(*Clusterer)

// WithThreshold sets the similarity a member must exceed.
func WithThreshold(threshold float64) ClustererOption {
	return func(c *Clusterer) {
		c.threshold = threshold
	}
}

// WithVectorizer replaces the default TF-IDF vectorizer.
func WithVectorizer(v *embeddings.Vectorizer) ClustererOption {
	return func(c *Clusterer) {
		if v != nil {
			c.vectorizer = v
		}
	}
}

// WithClusterLogger sets the logger used for clustering failures.
func WithClusterLogger(logger *zap.Logger) ClustererOption {
	return func(c *Clusterer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClusterer creates a clusterer with the default threshold, theme size
// and vectorizer.
func NewClusterer(opts ...ClustererOption) *Clusterer {
	c := &Clusterer{
		threshold:  DefaultSimilarityThreshold,
		themeTerms: DefaultThemeTerms,
		vectorizer: embeddings.NewVectorizer(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cluster groups content nodes with non-empty text. Nodes are visited in
// graph insertion order; a visited node never seeds or joins a later
// cluster, and clusters of a single member are dropped. The vectorizer is
// fit on this call's corpus only.
//
// A corpus without usable terms yields no clusters.
func (c *Clusterer) Cluster(g *graph.ContentGraph) []Cluster {
	var ids []string
	var docs []string
	for _, node := range g.ContentNodes() {
		if node.BodyText == "" {
			continue
		}
		ids = append(ids, node.ID)
		docs = append(docs, node.BodyText)
	}

	clusters := []Cluster{}
	if len(docs) == 0 {
		return clusters
	}

	matrix, err := c.vectorizer.FitTransform(docs)
	if err != nil {
		c.logger.Warn("semantic clustering skipped", zap.Int("documents", len(docs)), zap.Error(err))
		return clusters
	}
	sim := matrix.Similarity()

	visited := make([]bool, len(ids))
	for i := range ids {
		if visited[i] {
			continue
		}
		visited[i] = true

		cluster := Cluster{
			CenterID:   ids[i],
			ThemeTerms: matrix.TopTerms(i, c.themeTerms),
		}
		for j := range ids {
			if sim[i][j] <= c.threshold || (j != i && visited[j]) {
				continue
			}
			cluster.Members = append(cluster.Members, Member{ID: ids[j], Similarity: sim[i][j]})
			visited[j] = true
		}

		if len(cluster.Members) > 1 {
			clusters = append(clusters, cluster)
		}
	}

	c.logger.Debug("semantic clustering done",
		zap.Int("documents", len(docs)),
		zap.Int("terms", len(matrix.Terms)),
		zap.Int("clusters", len(clusters)),
	)
	return clusters
}
