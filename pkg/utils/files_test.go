package utils

import (
	"path/filepath"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		baseDir string
		want    string
		wantErr bool
	}{
		{
			name:    "valid path within base directory",
			path:    "test.json",
			baseDir: "/srv/app",
			want:    filepath.Join("/srv/app", "test.json"),
			wantErr: false,
		},
		{
			name:    "valid nested path within base directory",
			path:    "nested/test.json",
			baseDir: "/srv/app",
			want:    filepath.Join("/srv/app", "nested/test.json"),
			wantErr: false,
		},
		{
			name:    "path attempting directory traversal",
			path:    "../test.json",
			baseDir: "/srv/app",
			want:    "",
			wantErr: true,
		},
		{
			name:    "path attempting deep directory traversal",
			path:    "../../etc/passwd",
			baseDir: "/srv/app",
			want:    "",
			wantErr: true,
		},
		{
			name:    "absolute path within base directory",
			path:    "/test.json",
			baseDir: "/srv/app",
			want:    filepath.Join("/srv/app", "test.json"),
			wantErr: false,
		},
		{
			name:    "path with dot-dot that resolves within base directory",
			path:    "nested/../test.json",
			baseDir: "/srv/app",
			want:    filepath.Join("/srv/app", "test.json"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePath(tt.path, tt.baseDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ValidatePath() = %v, want %v", got, tt.want)
			}
		})
	}
}
