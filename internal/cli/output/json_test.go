package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Username string `json:"username"`
	HomeDisc int    `json:"home_disc"`
}

func TestPrintJSON(t *testing.T) {
	data := testStruct{Username: "SYST", HomeDisc: 42}

	var buf bytes.Buffer
	err := PrintJSON(&buf, data)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"username": "SYST"`)
	assert.Contains(t, output, `"home_disc": 42`)
}

func TestPrintJSONCompact(t *testing.T) {
	data := testStruct{Username: "SYST", HomeDisc: 42}

	var buf bytes.Buffer
	err := PrintJSONCompact(&buf, data)
	require.NoError(t, err)

	output := buf.String()
	// Compact JSON should not have extra indentation
	assert.Contains(t, output, `"username":"SYST"`)
	assert.Contains(t, output, `"home_disc":42`)
}

func TestPrintJSONArray(t *testing.T) {
	data := []testStruct{
		{Username: "SYST", HomeDisc: 0},
		{Username: "GUEST", HomeDisc: 1},
	}

	var buf bytes.Buffer
	err := PrintJSON(&buf, data)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"username": "SYST"`)
	assert.Contains(t, output, `"username": "GUEST"`)
}
