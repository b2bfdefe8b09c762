package schema_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tablegate/core/schema"
)

const (
	ref1 = `{ "type" : "string" ,
		      "$id" : "http://some_host.com/string.json"}`
	ref2 = `{ "$id" : "http://some_host.com/maxlength.json",
	 		  "maxLength" : 5 }`

	top_level1 = `
	{ "$id" : "http://some_host.com/top1.json",
	  "allOf" : [
		{ "$ref" : "http://some_host.com/string.json" },
		{ "$ref" : "http://some_host.com/maxlength.json" }
		]
	}`
	supplier = `
	{ "$id" : "https://tablegate.dev/supplier.json",
	  "type": "object",
	  "required": ["name"],
	  "properties": {
		"name": { "$ref": "http://some_host.com/string.json" },
		"risk": { "type": "number", "minimum": 0, "maximum": 100 }
	  }
	}`
)

func TestValidateString(t *testing.T) {
	v, err := schema.NewValidator([]string{top_level1}, []string{ref1, ref2})
	require.NoError(t, err)

	schemaID1 := "http://some_host.com/top1.json"
	assert.NoError(t, v.ValidateString(`"short"`, schemaID1))
	assert.Error(t, v.ValidateString(`"a very long string"`, schemaID1))
	assert.Error(t, v.ValidateString(`"short"`, "http://some_host.com/unknown.json"))
}

func TestValidateData(t *testing.T) {
	v, err := schema.NewValidator([]string{supplier}, []string{ref1})
	require.NoError(t, err)
	id := "https://tablegate.dev/supplier.json"

	assert.True(t, v.HasSchema(id))
	assert.NoError(t, v.ValidateData(map[string]interface{}{"name": "Acme", "risk": float64(42)}, id))
	assert.Error(t, v.ValidateData(map[string]interface{}{"risk": float64(42)}, id))
	assert.Error(t, v.ValidateData(map[string]interface{}{"name": "Acme", "risk": float64(142)}, id))
}

func TestNewValidatorFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"supplier.json":    {Data: []byte(supplier)},
		"README.md":        {Data: []byte("ignored")},
		"refs/string.json": {Data: []byte(ref1)},
	}
	v, err := schema.NewValidatorFromFS(fsys)
	require.NoError(t, err)
	assert.True(t, v.HasSchema("https://tablegate.dev/supplier.json"))

	_, err = schema.NewValidatorFromFS(fstest.MapFS{"broken.json": {Data: []byte(`{"type":"object"}`)}})
	assert.Error(t, err, "schema without $id must be rejected")

	_, err = schema.NewValidator([]string{supplier, supplier}, nil)
	assert.Error(t, err, "duplicate $id must be rejected")
}

func TestNilValidator(t *testing.T) {
	var v *schema.Validator
	assert.False(t, v.HasSchema("x"))
	assert.Error(t, v.ValidateData(map[string]interface{}{}, "x"))
}
