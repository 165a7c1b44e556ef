package fetch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromoter_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	p := NewPromoter(100)
	resp := Response{
		StatusCode: 200,
		Body:       []byte(""),
	}
	require.True(t, p.ShouldPromote(resp))
}

func TestPromoter_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	p := NewPromoter(100)
	resp := Response{
		StatusCode: 200,
		Body:       []byte(`<div id="__next"></div>`),
	}
	require.True(t, p.ShouldPromote(resp))
}

func TestPromoter_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	p := NewPromoter(1000)
	resp := Response{
		StatusCode: 200,
		Body:       []byte(`<html><script>var a=1;</script><p>t</p></html>`),
	}
	require.True(t, p.ShouldPromote(resp))
}

func TestPromoter_ShouldPromote_DisabledForNon200(t *testing.T) {
	t.Parallel()

	p := NewPromoter(100)
	resp := Response{
		StatusCode: 404,
		Body:       []byte("not found"),
	}
	require.False(t, p.ShouldPromote(resp))
}

func TestPromoter_ShouldPromote_SkipsRenderedResponses(t *testing.T) {
	t.Parallel()

	p := NewPromoter(100)
	resp := Response{
		StatusCode: 200,
		Body:       []byte(""),
		Rendered:   true,
	}
	require.False(t, p.ShouldPromote(resp))
}

func TestPromoter_ShouldPromote_StaticContent(t *testing.T) {
	t.Parallel()

	p := NewPromoter(100)
	resp := Response{
		StatusCode: 200,
		Body:       []byte(`<html><body><h1>Prompt archive</h1><p>plain content</p></body></html>`),
	}
	require.False(t, p.ShouldPromote(resp))
}
