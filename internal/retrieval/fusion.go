package retrieval

import (
	"sort"

	"github.com/hyperjump/groundchat/internal/keyword"
	"github.com/hyperjump/groundchat/internal/vector"
)

// FusedResult holds a document ID and fused keyword/semantic scores.
type FusedResult struct {
	DocumentID    string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores clamps cosine scores to [0,1].
func NormalizeSemanticScores(results []*vector.VectorResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	for _, r := range results {
		s := r.Score
		if s < 0 {
			s = 0
		} else if s > 1 {
			s = 1
		}
		normalized[r.ID] = s
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights and returns results sorted
// by fused score. Equal scores are ordered by document id so output is deterministic.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{DocumentID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if result, exists := scoreMap[id]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{DocumentID: id, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (keywordWeight * result.KeywordScore) + (semanticWeight * result.SemanticScore)
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	return results
}
