package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"512", 512, false},
		{"4K", 4096, false},
		{"4k", 4096, false},
		{"2M", 2 * 1024 * 1024, false},
		{"1G", 1024 * 1024 * 1024, false},
		{"", 0, true},
		{"K", 0, true},
		{"12T", 0, true},
		{"-5", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestOpenAndPadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}

	data, err := openAndPadFile(path, "1K")
	if err != nil {
		t.Fatalf("openAndPadFile: %v", err)
	}
	if len(data) != 1024 {
		t.Errorf("len = %d, want 1024", len(data))
	}
	if data[0] != 1 || data[2] != 3 || data[3] != 0 {
		t.Errorf("padding corrupted data: % X", data[:4])
	}

	// Smaller target leaves the file untouched.
	data, err = openAndPadFile(path, "2")
	if err != nil {
		t.Fatalf("openAndPadFile: %v", err)
	}
	if len(data) != 3 {
		t.Errorf("len = %d, want 3", len(data))
	}

	// No padding argument.
	data, err = openAndPadFile(path, "")
	if err != nil || len(data) != 3 {
		t.Fatalf("openAndPadFile = %d bytes, %v", len(data), err)
	}

	if _, err := openAndPadFile(filepath.Join(t.TempDir(), "missing"), ""); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v", err)
	}
}
