package qdrant

import (
	"encoding/json"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-rag-api/internal/domain/entity"
)

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("customer_C1").GetUuid()
	assert.NotEmpty(t, a)
	assert.Equal(t, a, pointID("customer_C1").GetUuid())
	assert.NotEqual(t, a, pointID("customer_C2").GetUuid())
}

func TestTypeFilter(t *testing.T) {
	assert.Nil(t, typeFilter(nil))

	f := typeFilter([]entity.RecordType{entity.RecordTypeQuote, entity.RecordTypeWorkHistory})
	require.Len(t, f.GetShould(), 2)
	assert.Equal(t, "work_history", f.GetShould()[1].GetField().GetMatch().GetKeyword())
	assert.Equal(t, payloadType, f.GetShould()[0].GetField().GetKey())
}

func TestDecodePayload(t *testing.T) {
	meta, err := json.Marshal(entity.MetadataFor("C1", &entity.Customer{ID: "C1", Name: "Tanaka"}))
	require.NoError(t, err)

	doc := decodePayload(map[string]*pb.Value{
		payloadDocID:    stringValue("customer_C1"),
		payloadType:     stringValue("customer"),
		payloadContent:  stringValue("Name: Tanaka"),
		payloadMetadata: stringValue(string(meta)),
	})
	assert.Equal(t, "customer_C1", doc.ID)
	assert.Equal(t, "Name: Tanaka", doc.Content)
	assert.Equal(t, "C1", doc.Metadata.ID)
	require.NotNil(t, doc.Metadata.Customer)
	assert.Equal(t, "Tanaka", doc.Metadata.Customer.Name)

	doc = decodePayload(map[string]*pb.Value{
		payloadDocID: stringValue("quote_Q1"),
		payloadType:  stringValue("quote"),
	})
	assert.Equal(t, entity.RecordTypeQuote, doc.Metadata.Type)
}
