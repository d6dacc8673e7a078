package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("  hello world  \n"))

	got, err := GetSimpleText(r, "Say something", &out)
	require.NoError(t, err)
	require.Equal(t, "hello world", got)
	require.Contains(t, out.String(), "Say something")
}

func TestGetSimpleText_EOFWithPartialInput(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("partial"))

	got, err := GetSimpleText(r, "Prompt", &out)
	require.NoError(t, err)
	require.Equal(t, "partial", got)
}

func TestGetSerial_NoEcho(t *testing.T) {
	old := readSecret
	readSecret = func(fd int) ([]byte, error) { return []byte(" 04A1B2C3 \n"), nil }
	t.Cleanup(func() { readSecret = old })

	var out bytes.Buffer
	got, err := GetSerial(&out)
	require.NoError(t, err)
	require.Equal(t, "04A1B2C3", got)
	require.NotContains(t, out.String(), "04A1B2C3", "serial must never be echoed")
}
