package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/dynamobackup/internal/config"
	"github.com/coffersTech/dynamobackup/internal/pkg/transcode"
)

const backupLines = `{"Name":{"S":"Joe"},"Info":{"M":{"City":{"S":"NYC"}}}}
{"Items":{"L":[{"S":"Cookies"},{"N":"3.14"}]},"Photo":{"B":"/wA="}}
`

func TestTranscodeLines(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, transcodeLines(strings.NewReader(backupLines), &out, config.CompressionNone, transcode.Renamed))
	assert.Equal(t,
		`{"Info":{"m":{"City":{"s":"NYC"}}},"Name":{"s":"Joe"}}`+"\n"+
			`{"Items":{"l":[{"s":"Cookies"},{"n":"3.14"}]},"Photo":{"b":"/wA="}}`+"\n",
		out.String())
}

func TestTranscodeLinesPassthroughCompressed(t *testing.T) {
	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	_, err = enc.Write([]byte(backupLines))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	var out bytes.Buffer
	require.NoError(t, transcodeLines(&compressed, &out, config.CompressionZstd, transcode.Passthrough))
	assert.Equal(t,
		`{"Info":{"M":{"City":{"S":"NYC"}}},"Name":{"S":"Joe"}}`+"\n"+
			`{"Items":{"L":[{"S":"Cookies"},{"N":"3.14"}]},"Photo":{"B":"/wA="}}`+"\n",
		out.String())
}

func TestTranscodeLinesReportsLine(t *testing.T) {
	input := `{"Name":{"S":"Joe"}}` + "\n" + `{"Vec":{"VECTOR":[1]}}` + "\n"
	err := transcodeLines(strings.NewReader(input), &bytes.Buffer{}, config.CompressionNone, transcode.Renamed)
	var unknown *transcode.UnknownAttributeTypeError
	require.ErrorAs(t, err, &unknown)
	assert.ErrorContains(t, err, "line 2")
}
