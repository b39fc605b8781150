package errors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocsiteErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *DocsiteError
		want string
	}{
		{
			name: "io with cause",
			err:  NewIOError("copy", "/content/hero.png", fs.ErrPermission),
			want: "copy: /content/hero.png: permission denied",
		},
		{
			name: "config",
			err:  NewConfigError("server.port", "port %d is not in valid range 0-65535", 70000),
			want: "server.port: port 70000 is not in valid range 0-65535",
		},
		{
			name: "cause only",
			err:  &DocsiteError{Type: ErrorTypeInternal, Cause: errors.New("bare")},
			want: "bare",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDocsiteErrorUnwrapAndIs(t *testing.T) {
	err := NewIOError("stat", "/content/a.mdx", fs.ErrNotExist)

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorIs(t, err, &DocsiteError{Type: ErrorTypeIO})
	assert.ErrorIs(t, err, &DocsiteError{Type: ErrorTypeIO, Op: "stat"})
	assert.NotErrorIs(t, err, &DocsiteError{Type: ErrorTypeIO, Op: "copy"})
	assert.NotErrorIs(t, err, &DocsiteError{Type: ErrorTypeNetwork})
}

func TestIsType(t *testing.T) {
	inner := NewNetworkError("dial", "localhost:3001", errors.New("refused"))
	outer := NewContentError("parse", "a.mdx", inner)

	assert.True(t, IsType(outer, ErrorTypeContent))
	assert.True(t, IsType(outer, ErrorTypeNetwork))
	assert.False(t, IsType(outer, ErrorTypeIO))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeIO))
	assert.False(t, IsType(nil, ErrorTypeIO))
}
