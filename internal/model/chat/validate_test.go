package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryRequestValidate(t *testing.T) {
	assert.NoError(t, QueryRequest{Message: "ruc"}.Validate())
	assert.NoError(t, QueryRequest{Message: "ruc", Kind: KindCategory, MaxLength: 1500}.Validate())

	err := QueryRequest{Message: "   "}.Validate()
	assert.True(t, MessageMissing(err))

	err = QueryRequest{Message: "ruc", MaxLength: 50}.Validate()
	assert.Error(t, err)
	assert.False(t, MessageMissing(err))

	assert.Error(t, QueryRequest{Message: "ruc", MaxLength: 2001}.Validate())
	assert.Error(t, QueryRequest{Message: "ruc", Kind: "otro"}.Validate())
}

func TestDirectAndContinueValidate(t *testing.T) {
	assert.True(t, MessageMissing(DirectRequest{}.Validate()))
	assert.NoError(t, DirectRequest{Message: "hola"}.Validate())

	assert.NoError(t, ContinueRequest{Context: "respuesta previa"}.Validate())
	assert.True(t, MessageMissing(ContinueRequest{}.Validate()))
}
