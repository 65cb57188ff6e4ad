package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		owner    string
		repo     string
		basePath string
		wantErr  bool
	}{
		{
			name:     "full location",
			location: "kubernetes/website@content/en/docs/concepts",
			owner:    "kubernetes",
			repo:     "website",
			basePath: "content/en/docs/concepts",
		},
		{
			name:     "repo root",
			location: "golang/go",
			owner:    "golang",
			repo:     "go",
			basePath: "",
		},
		{
			name:     "missing repo",
			location: "golang",
			wantErr:  true,
		},
		{
			name:     "empty owner",
			location: "/repo@docs",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, basePath, err := ParseLocation(tt.location)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.basePath, basePath)
		})
	}
}
