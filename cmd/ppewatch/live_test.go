package main

import "testing"

func TestParseObjectRef(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{"faces/alice.jpg", "faces", "alice.jpg", false},
		{"faces/staff/bob.png", "faces", "staff/bob.png", false},
		{"faces", "", "", true},
		{"/alice.jpg", "", "", true},
		{"faces/", "", "", true},
	}

	for _, tt := range tests {
		ref, err := parseObjectRef(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseObjectRef(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if ref.Bucket != tt.bucket || ref.Key != tt.key {
			t.Errorf("parseObjectRef(%q) = %+v", tt.in, ref)
		}
	}
}
