package gcs

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://slips/2024/05/a.jpg", "slips", "2024/05/a.jpg", false},
		{"gs://slips/a.jpg", "slips", "a.jpg", false},
		{"gs://slips", "", "", true},
		{"gs://slips/", "", "", true},
		{"s3://slips/a.jpg", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI() = %q, %q; want %q, %q", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/slip.jpg": "slip.jpg",
		"gs://bucket/slip.pdf":        "slip.pdf",
		"gs://bucket":                 "bucket",
	}
	for uri, want := range tests {
		if got := FilenameFromURI(uri); got != want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
	if got := URI("b", "x/y.csv"); got != "gs://b/x/y.csv" {
		t.Errorf("URI() = %q", got)
	}
}
