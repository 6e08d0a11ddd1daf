package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-filler/internal/dispatch"
)

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	for name, pages := range map[string]int{"form.pdf": 1, "extra.pdf": 2} {
		doc := fpdf.New("P", "pt", "A4", "")
		for i := 0; i < pages; i++ {
			doc.AddPage()
		}
		var buf bytes.Buffer
		require.NoError(t, doc.Output(&buf))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
	}

	img := image.NewRGBA(image.Rect(0, 0, 200, 280))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bg.png"), buf.Bytes(), 0o644))

	return dir
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"values only", []string{"values.yaml"}, false},
		{"help", []string{"--help"}, false},
		{"missing values file", []string{}, true},
		{"two values files", []string{"a.json", "b.json"}, true},
		{"png without background", []string{"--png", "out.png", "values.json"}, true},
		{"payload without recipient", []string{"--payload", "out.json", "values.json"}, true},
		{"bad fallback", []string{"--fallback", "retry", "values.json"}, true},
		{"unknown flag", []string{"--nope", "values.json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseOptions(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadValues(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "values.json")
	yamlPath := filepath.Join(dir, "values.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"full_name": "Jane Doe", "email": "jane@example.org"}`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("full_name: Jane Doe\nemail: jane@example.org\n"), 0o644))

	for _, path := range []string{jsonPath, yamlPath} {
		values, err := readValues(path)
		require.NoError(t, err, path)
		assert.Equal(t, "Jane Doe", values["full_name"])
		assert.Equal(t, "jane@example.org", values["email"])
	}

	_, err := readValues(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("- just\n- a list\n"), 0o644))
	_, err = readValues(badPath)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	dir := writeFixtures(t)
	valuesPath := filepath.Join(dir, "values.json")
	require.NoError(t, os.WriteFile(valuesPath, []byte(`{"full_name": "Jane Doe", "email": "jane@example.org"}`), 0o644))

	opts, fs, err := parseOptions([]string{
		"--dir", dir,
		"--background", "bg.png",
		"--output", filepath.Join(dir, "out.pdf"),
		"--png", filepath.Join(dir, "out.png"),
		"--merge", "extra.pdf",
		"--compress",
		"--payload", filepath.Join(dir, "payload.json"),
		"--to", "office@example.org",
		valuesPath,
	})
	require.NoError(t, err)

	sum, err := run(context.Background(), opts, fs.Arg(0))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.PDFPages)
	assert.NotNil(t, sum.Compression)
	assert.Positive(t, sum.PNGSize)
	assert.FileExists(t, filepath.Join(dir, "out.pdf"))
	assert.FileExists(t, filepath.Join(dir, "out.png"))

	data, err := os.ReadFile(filepath.Join(dir, "payload.json"))
	require.NoError(t, err)
	var payload dispatch.Payload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "office@example.org", payload.To)
	assert.Contains(t, payload.HTML, "Jane Doe")
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "out.pdf", payload.Attachments[0].Filename)
}

func TestRun_PayloadOverCeiling(t *testing.T) {
	dir := writeFixtures(t)
	valuesPath := filepath.Join(dir, "values.yaml")
	require.NoError(t, os.WriteFile(valuesPath, []byte("full_name: Jane Doe\n"), 0o644))

	opts, fs, err := parseOptions([]string{
		"--dir", dir,
		"--output", filepath.Join(dir, "out.pdf"),
		"--payload", filepath.Join(dir, "payload.json"),
		"--to", "office@example.org",
		"--max-payload", "64",
		valuesPath,
	})
	require.NoError(t, err)

	_, err = run(context.Background(), opts, fs.Arg(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ceiling")
	assert.NoFileExists(t, filepath.Join(dir, "payload.json"))
}

func TestRun_MissingTemplate(t *testing.T) {
	dir := t.TempDir()
	valuesPath := filepath.Join(dir, "values.yaml")
	require.NoError(t, os.WriteFile(valuesPath, []byte("full_name: Jane Doe\n"), 0o644))

	opts, fs, err := parseOptions([]string{"--dir", dir, "--output", filepath.Join(dir, "out.pdf"), valuesPath})
	require.NoError(t, err)
	_, err = run(context.Background(), opts, fs.Arg(0))
	assert.Error(t, err)

	opts, fs, err = parseOptions([]string{"--dir", dir, "--fallback", "blank", "--output", filepath.Join(dir, "out.pdf"), valuesPath})
	require.NoError(t, err)
	sum, err := run(context.Background(), opts, fs.Arg(0))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.PDFPages)
}
