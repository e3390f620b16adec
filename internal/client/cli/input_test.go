package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if !strings.Contains(out.String(), "Name?") {
		t.Fatalf("prompt not written: %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	if err == nil {
		t.Fatal("expected EOF error on empty input")
	}
}

func TestGetOptionalText(t *testing.T) {
	var out bytes.Buffer

	got, err := GetOptionalText(rdr("\n"), "Save to", "letter.pdf", &out)
	require.NoError(t, err)
	require.Equal(t, "letter.pdf", got)
	require.Contains(t, out.String(), "[letter.pdf]")

	got, err = GetOptionalText(rdr("other.pdf\n"), "Save to", "letter.pdf", &out)
	require.NoError(t, err)
	require.Equal(t, "other.pdf", got)
}

func TestGetMultiline_DoubleEnter(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(rdr("a\nb\n\n\n"), "Enter text", &out)
	require.NoError(t, err)
	require.Equal(t, "a\nb", got)
}

func TestGetMultiline_EOFWithoutBlankLine(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(rdr("only line"), "Enter text", &out)
	require.NoError(t, err)
	require.Equal(t, "only line", got)
}

func TestGetSecret(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	got, err := GetSecret("Wallet key", &out)
	require.NoError(t, err)
	require.Equal(t, []byte("s3cret"), got)
	require.Contains(t, out.String(), "Wallet key: ")

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetSecret("Wallet key", &out)
	require.Error(t, err)
}
