package introspect

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func TestRenderSDLGolden(t *testing.T) {
	srv := startIntrospectable(t)
	c := NewClient(srv.Client(), 0)
	schema, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "legacy_schema", []byte(RenderSDL(schema)))
}
