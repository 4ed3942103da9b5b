package mongodocs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/docstore"
	"storefront/internal/docstore/docstoretest"
)

func TestMongoContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	db := "storefront_test_" + uuid.NewString()[:8]
	suite.Run(t, &docstoretest.Suite{NewStore: func() docstore.Store {
		s, err := Connect(context.Background(), uri, db)
		require.NoError(t, err)
		return s
	}})
}

func TestNormalize(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := bson.M{
		"id": "p1",
		"data": bson.M{
			"count":   int32(2),
			"at":      primitive.NewDateTimeFromTime(when),
			"tags":    bson.A{"a", bson.D{{Key: "k", Value: "v"}}},
			"missing": nil,
		},
	}
	doc := toDoc(raw)
	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, int64(2), doc.Data["count"])
	assert.Equal(t, when, doc.Data["at"])
	assert.Equal(t, []interface{}{"a", map[string]interface{}{"k": "v"}}, doc.Data["tags"])
}

func TestCondition(t *testing.T) {
	c, err := condition(docstore.Where("userId", docstore.OpNe, "u1"))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$exists": true, "$ne": "u1"}, c)

	c, err = condition(docstore.Where("userId", docstore.OpIn, []string{"a"}))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$in": []interface{}{"a"}}, c)

	_, err = condition(docstore.Where("x", "like", 1))
	assert.Error(t, err)
}
