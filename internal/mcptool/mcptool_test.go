package mcptool

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddgraph/internal/generate"
)

type backend struct {
	lastTopK int
	err      error
}

func (b *backend) GenerateStructured(_ context.Context, companyID string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return "# Structured Dashboard - " + companyID, nil
}

func (b *backend) GenerateRAG(_ context.Context, companyID string, topK int) (string, error) {
	b.lastTopK = topK
	if b.err != nil {
		return "", b.err
	}
	return "# RAG Dashboard - " + companyID, nil
}

var _ generate.Tool = (*Client)(nil)

func TestInProcessRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := &backend{}
	c, err := NewInProcess(ctx, NewServer(b, "test"), "test")
	require.NoError(t, err)
	defer c.Close()

	md, err := c.GenerateStructured(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "# Structured Dashboard - acme", md)

	md, err = c.GenerateRAG(ctx, "acme", generate.RemoteTopK)
	require.NoError(t, err)
	assert.Equal(t, "# RAG Dashboard - acme", md)
	assert.Equal(t, generate.RemoteTopK, b.lastTopK)
}

func TestToolFailureIsReported(t *testing.T) {
	ctx := context.Background()
	c, err := NewInProcess(ctx, NewServer(&backend{err: errors.New("no data for company")}, "test"), "test")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GenerateStructured(ctx, "acme")
	require.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "no data for company")

	_, err = c.GenerateStructured(ctx, "  ")
	require.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "company_id is required")
}

func TestStreamableHTTPRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(NewServer(&backend{}, "test").Handler("/mcp"))
	defer srv.Close()

	c, err := Dial(ctx, srv.URL+"/mcp", "test")
	require.NoError(t, err)
	defer c.Close()

	md, err := c.GenerateRAG(ctx, "globex", 0)
	require.NoError(t, err)
	assert.Equal(t, "# RAG Dashboard - globex", md)
}

func TestDialFailsWithoutServer(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, err := Dial(context.Background(), url+"/mcp", "test")
	assert.Error(t, err)
}
