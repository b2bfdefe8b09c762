package core

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperations_JSON_Unmarshalling(t *testing.T) {

	type Object struct {
		Operations []Operation `json:"operations"`
	}
	var object Object
	jsonRead := `{"operations":["create","read","update","list","delete"]}`
	err := json.Unmarshal([]byte(jsonRead), &object)
	require.NoError(t, err)
	assert.Equal(t, []Operation{OperationCreate, OperationRead, OperationUpdate, OperationList, OperationDelete}, object.Operations)

	jsonRead = `{"operations":["invalid"]}`
	err = json.Unmarshal([]byte(jsonRead), &object)
	if err == nil {
		t.Fatal("invalid operation accepted")
	}
}

func TestOperation_IsWrite(t *testing.T) {
	assert.True(t, OperationCreate.IsWrite())
	assert.True(t, OperationUpdate.IsWrite())
	assert.True(t, OperationDelete.IsWrite())
	assert.False(t, OperationRead.IsWrite())
	assert.False(t, OperationList.IsWrite())
}
