package registry_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/shopstr-eng/shopstr-cache/internal/mocks"
	"github.com/shopstr-eng/shopstr-cache/internal/registry"
)

var (
	keyA = strings.Repeat("ab", 32)
	keyB = strings.Repeat("cd", 32)
)

func realUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func TestBlocklistLoader_Load(t *testing.T) {
	tests := []struct {
		name         string
		setupMocks   func(*mocks.MockFileSystem, *mocks.MockJSON)
		expectedErr  string // Error message to assert, empty means no error expected
		validateFunc func(t *testing.T, bl registry.AuthorBlocklist)
	}{
		{
			name: "successful load with valid JSON",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("blocklist.json").
					Return([]byte(`{"authors": ["`+keyA+`", "`+keyB+`"]}`), nil)
				mockJSON.
					EXPECT().
					Unmarshal(gomock.Any(), gomock.Any()).
					DoAndReturn(realUnmarshal)
			},
			validateFunc: func(t *testing.T, bl registry.AuthorBlocklist) {
				assert.Equal(t, 2, bl.Len())
				assert.True(t, bl.IsBlocked(keyA))
				assert.True(t, bl.IsBlocked(keyB))
				assert.False(t, bl.IsBlocked(strings.Repeat("ef", 32)))
			},
		},
		{
			name: "successful load with empty blocklist",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("blocklist.json").
					Return([]byte(`{}`), nil)
				mockJSON.
					EXPECT().
					Unmarshal(gomock.Any(), gomock.Any()).
					DoAndReturn(realUnmarshal)
			},
			validateFunc: func(t *testing.T, bl registry.AuthorBlocklist) {
				assert.Equal(t, 0, bl.Len())
				assert.False(t, bl.IsBlocked(keyA))
			},
		},
		{
			name: "file read error",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("blocklist.json").
					Return(nil, assert.AnError)
			},
			expectedErr: "failed to read blocklist file",
		},
		{
			name: "JSON parse error",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				data := []byte(`invalid json`)
				mockFS.
					EXPECT().
					ReadFile("blocklist.json").
					Return(data, nil)
				mockJSON.
					EXPECT().
					Unmarshal(data, gomock.Any()).
					Return(assert.AnError)
			},
			expectedErr: "failed to parse blocklist JSON",
		},
		{
			name: "malformed author key",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("blocklist.json").
					Return([]byte(`{"authors": ["npub1notahexkey"]}`), nil)
				mockJSON.
					EXPECT().
					Unmarshal(gomock.Any(), gomock.Any()).
					DoAndReturn(realUnmarshal)
			},
			expectedErr: "invalid author key",
		},
		{
			name: "case insensitive lookup",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("blocklist.json").
					Return([]byte(`{"authors": ["`+strings.ToUpper(keyA)+`"]}`), nil)
				mockJSON.
					EXPECT().
					Unmarshal(gomock.Any(), gomock.Any()).
					DoAndReturn(realUnmarshal)
			},
			validateFunc: func(t *testing.T, bl registry.AuthorBlocklist) {
				assert.True(t, bl.IsBlocked(keyA))
				assert.True(t, bl.IsBlocked(strings.ToUpper(keyA)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockFS := mocks.NewMockFileSystem(ctrl)
			mockJSON := mocks.NewMockJSON(ctrl)

			if tt.setupMocks != nil {
				tt.setupMocks(mockFS, mockJSON)
			}

			loader := registry.NewBlocklistLoader(mockFS, mockJSON)
			bl, err := loader.Load("blocklist.json")

			if tt.expectedErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr)
				assert.Nil(t, bl)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, bl)
				if tt.validateFunc != nil {
					tt.validateFunc(t, bl)
				}
			}
		})
	}
}

func TestNewAuthorBlocklist_Empty(t *testing.T) {
	empty, err := registry.NewAuthorBlocklist(nil)
	assert.NoError(t, err)
	assert.False(t, empty.IsBlocked(keyA))
	assert.Equal(t, 0, empty.Len())
}
