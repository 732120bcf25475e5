package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactPayloadMasksKnownSecretKeys(t *testing.T) {
	in := map[string]interface{}{
		"access_token": "abcd1234efgh",
		"username":     "trader1",
		"nested": map[string]interface{}{
			"api_secret": "shortpw",
		},
	}

	out := RedactPayload(in).(map[string]interface{})

	assert.Equal(t, "abcd...efgh", out["access_token"])
	assert.Equal(t, "trader1", out["username"])
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "*******", nested["api_secret"])
}

func TestRedactPayloadWalksLists(t *testing.T) {
	in := map[string]interface{}{
		"sessions": []interface{}{
			map[string]interface{}{"cookie": "longenoughvalue"},
		},
	}

	out := RedactPayload(in).(map[string]interface{})
	sessions := out["sessions"].([]interface{})
	first := sessions[0].(map[string]interface{})
	assert.Equal(t, "long...alue", first["cookie"])
}

func TestMaskEmptyString(t *testing.T) {
	assert.Equal(t, "", mask(""))
}
