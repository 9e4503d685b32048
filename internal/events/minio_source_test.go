package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseObjectKey(t *testing.T) {
	tests := []struct {
		name      string
		objectKey string
		wantDocID string
		wantFile  string
		wantErr   bool
	}{
		{name: "valid", objectKey: "abc-123/specs.xlsx", wantDocID: "abc-123", wantFile: "specs.xlsx"},
		{name: "valid nested", objectKey: "abc-123/nested/path/file.docx", wantDocID: "abc-123", wantFile: "nested/path/file.docx"},
		{name: "backslashes", objectKey: `abc-123\specs.xlsx`, wantDocID: "abc-123", wantFile: "specs.xlsx"},
		{name: "invalid no slash", objectKey: "abc-123", wantErr: true},
		{name: "invalid empty", objectKey: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			docID, filename, err := parseObjectKey(tc.objectKey)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantDocID, docID)
			require.Equal(t, tc.wantFile, filename)
		})
	}
}

func TestParseManifestKey(t *testing.T) {
	ev, err := parseManifestKey("doc-9/Supplier Change.xlsx.sections.json", ManifestSuffix)
	require.NoError(t, err)
	require.Equal(t, "doc-9", ev.DocumentID)
	require.Equal(t, "Supplier Change.xlsx", ev.FileName)
	require.Equal(t, "doc-9/Supplier Change.xlsx.sections.json", ev.ObjectKey)

	_, err = parseManifestKey("doc-9/specs.xlsx", ManifestSuffix)
	require.Error(t, err)

	_, err = parseManifestKey("doc-9/.sections.json", ManifestSuffix)
	require.Error(t, err)
}

func TestDecodeObjectKey(t *testing.T) {
	decoded, err := decodeObjectKey("abc-123%2Fdesign%20review.pdf.sections.json")
	require.NoError(t, err)
	require.Equal(t, "abc-123/design review.pdf.sections.json", decoded)

	_, err = decodeObjectKey("%20")
	require.Error(t, err)
}
