package services

import (
	"math/rand"
	"testing"

	"dealscout/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price, rating float64) models.Product {
	return models.Product{ID: id, Name: id, Price: price, Rating: rating}
}

func TestScoreRanksByPriceAndRating(t *testing.T) {
	scored := Score([]models.Product{
		product("b", 2000, 4.0),
		product("a", 1000, 5.0),
	})

	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].ID)
	assert.Equal(t, 100.0, scored[0].Score())
	assert.Equal(t, models.TierExcellent, scored[0].RecommendationTier)

	assert.Equal(t, "b", scored[1].ID)
	assert.Equal(t, 24.0, scored[1].Score())
	assert.Equal(t, models.TierWait, scored[1].RecommendationTier)
}

func TestScoreEmptyInput(t *testing.T) {
	assert.Nil(t, Score(nil))

	empty := []models.Product{}
	assert.Equal(t, empty, Score(empty))
}

func TestScoreDoesNotMutateInput(t *testing.T) {
	in := []models.Product{product("x", 10, 3), product("y", 5, 3)}
	out := Score(in)

	assert.Nil(t, in[0].RecommendationScore)
	assert.Equal(t, "x", in[0].ID)
	assert.Equal(t, "y", out[0].ID)
}

func TestScoreSingleProduct(t *testing.T) {
	scored := Score([]models.Product{product("only", 499, 4.5)})
	require.Len(t, scored, 1)
	require.True(t, scored[0].Scored())
	assert.Equal(t, 27.0, scored[0].Score())
	assert.Equal(t, models.TierWait, scored[0].RecommendationTier)
}

func TestScoreEqualPricesScoreOnRatingOnly(t *testing.T) {
	scored := Score([]models.Product{
		product("low", 300, 2.5),
		product("high", 300, 5.0),
		product("mid", 300, 4.0),
	})

	require.Len(t, scored, 3)
	assert.Equal(t, "high", scored[0].ID)
	assert.Equal(t, 30.0, scored[0].Score())
	assert.Equal(t, "mid", scored[1].ID)
	assert.Equal(t, 24.0, scored[1].Score())
	assert.Equal(t, "low", scored[2].ID)
	assert.Equal(t, 15.0, scored[2].Score())
}

func TestScoreIsStableForEqualScores(t *testing.T) {
	in := []models.Product{
		product("first", 100, 4.0),
		product("cheap", 50, 4.0),
		product("second", 100, 4.0),
		product("third", 100, 4.0),
	}

	scored := Score(in)
	ids := []string{scored[0].ID, scored[1].ID, scored[2].ID, scored[3].ID}
	assert.Equal(t, []string{"cheap", "first", "second", "third"}, ids)
}

func TestScoreRoundsToOneDecimal(t *testing.T) {
	scored := Score([]models.Product{
		product("a", 100, 4.1),
		product("b", 400, 3.3),
		product("c", 250, 0),
	})

	byID := map[string]float64{}
	for _, p := range scored {
		byID[p.ID] = p.Score()
	}
	// a: 70 + 24.6; b: 0 + 19.8; c: 35 + 0
	assert.Equal(t, 94.6, byID["a"])
	assert.Equal(t, 19.8, byID["b"])
	assert.Equal(t, 35.0, byID["c"])
}

func TestScoreTierUsesRoundedScore(t *testing.T) {
	// 70 from price plus 1.66/5*30 = 79.96 before rounding
	scored := Score([]models.Product{
		product("a", 100, 1.66),
		product("b", 200, 0),
	})

	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].ID)
	assert.Equal(t, 80.0, scored[0].Score())
	assert.Equal(t, models.TierExcellent, scored[0].RecommendationTier)
	assert.Equal(t, 0.0, scored[1].Score())
}

func TestScoreBoundsAndOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	in := make([]models.Product, 40)
	for i := range in {
		in[i] = product(string(rune('A'+i)), 1+rng.Float64()*10000, rng.Float64()*5)
	}

	scored := Score(in)
	require.Len(t, scored, len(in))
	for i, p := range scored {
		require.True(t, p.Scored())
		assert.GreaterOrEqual(t, p.Score(), 0.0)
		assert.LessOrEqual(t, p.Score(), 100.0)
		assert.Equal(t, TierFor(p.Score()), p.RecommendationTier)
		if i > 0 {
			assert.GreaterOrEqual(t, scored[i-1].Score(), p.Score())
		}
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Tier
	}{
		{100, models.TierExcellent},
		{80, models.TierExcellent},
		{79.9, models.TierGood},
		{60, models.TierGood},
		{59.9, models.TierFair},
		{40, models.TierFair},
		{39.9, models.TierWait},
		{0, models.TierWait},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.score), "score %.1f", tt.score)
	}
}
