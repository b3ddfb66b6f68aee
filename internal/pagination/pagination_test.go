package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Defaults(t *testing.T) {
	var p PageRequest
	p.Defaults()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 0, p.Offset())

	p = PageRequest{Page: 3, PageSize: 10}
	p.Defaults()
	assert.Equal(t, 20, p.Offset())
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[string](nil, 1, 20, 41)
	assert.Equal(t, 3, resp.TotalPages)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data)
}
