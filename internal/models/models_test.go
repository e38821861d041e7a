package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_ValueAndScan(t *testing.T) {
	tests := []struct {
		name  string
		input JSON
	}{
		{name: "empty", input: JSON{}},
		{name: "constructor_args", input: JSON{"owner": "0x1234567890123456789012345678901234567890", "supply": "1000"}},
		{name: "nested", input: JSON{"args": map[string]interface{}{"name": "Token"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.input.Value()
			require.NoError(t, err)

			var scanned JSON
			require.NoError(t, scanned.Scan(value))
			assert.Equal(t, tt.input, scanned)
		})
	}
}

func TestJSON_ScanEdgeCases(t *testing.T) {
	var j JSON

	assert.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	assert.NoError(t, j.Scan(""))
	assert.Nil(t, j)

	assert.NoError(t, j.Scan(`{"a":1}`))
	assert.Equal(t, float64(1), j["a"])

	assert.Error(t, j.Scan(123))
	assert.Error(t, j.Scan([]byte(`{invalid json}`)))

	var nilJSON JSON
	value, err := nilJSON.Value()
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestAuditResult_KeepsUnknownFields(t *testing.T) {
	payload := `{
		"vulnerabilities": [{"title": "Reentrancy", "severity": "High"}],
		"fixed_code": "contract A {}",
		"contract_name": "A",
		"contract_description": "demo",
		"slither_version": "0.10.0",
		"gas_report": {"deploy": 120000}
	}`

	var result AuditResult
	require.NoError(t, json.Unmarshal([]byte(payload), &result))
	assert.Equal(t, "A", result.ContractName)
	assert.True(t, result.HasFixedCode())
	require.Len(t, result.Extra, 2)
	assert.JSONEq(t, `"0.10.0"`, string(result.Extra["slither_version"]))

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"vulnerabilities": [{"title": "Reentrancy", "severity": "High"}],
		"fixed_code": "contract A {}",
		"contract_name": "A",
		"contract_description": "demo",
		"slither_version": "0.10.0",
		"gas_report": {"deploy": 120000}
	}`, string(encoded))

	var plain AuditResult
	require.NoError(t, json.Unmarshal([]byte(`{"vulnerabilities": [], "contract_name": "B", "contract_description": ""}`), &plain))
	assert.Nil(t, plain.Extra)
	assert.False(t, plain.HasFixedCode())
}
