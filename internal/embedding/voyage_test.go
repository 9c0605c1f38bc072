package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVoyage answers with one 2-d vector per input, {index, len(text)},
// listed in reverse order to check the client reorders them.
func fakeVoyage(t *testing.T, calls *[]embeddingRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*calls = append(*calls, req)

		var resp embeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{
				Index:     i,
				Embedding: []float32{float32(i), float32(len(req.Input[i]))},
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_OrdersByIndex(t *testing.T) {
	var calls []embeddingRequest
	srv := fakeVoyage(t, &calls)
	c := NewClient("key", WithURL(srv.URL), WithHTTPClient(srv.Client()))

	vecs, err := c.Embed(context.Background(), []string{"a", "bbb"}, InputDocument)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 3}}, vecs)

	require.Len(t, calls, 1)
	assert.Equal(t, "voyage-3-lite", calls[0].Model)
	assert.Equal(t, InputDocument, calls[0].InputType)
}

func TestEmbed_Empty(t *testing.T) {
	c := NewClient("key", WithURL("http://127.0.0.1:1"))
	vecs, err := c.Embed(context.Background(), nil, InputQuery)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbed_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Provided API key is invalid."}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithURL(srv.URL))
	_, err := c.Embed(context.Background(), []string{"x"}, InputQuery)
	assert.ErrorContains(t, err, "voyage API 401: Provided API key is invalid.")
}

func TestEmbedBatch(t *testing.T) {
	var calls []embeddingRequest
	srv := fakeVoyage(t, &calls)
	c := NewClient("key", WithURL(srv.URL), WithModel("voyage-3"))

	var progress [][2]int
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"}, InputDocument, 2,
		func(i, n int) { progress = append(progress, [2]int{i, n}) })
	require.NoError(t, err)

	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[1])
	}
	assert.Len(t, calls, 3)
	assert.Equal(t, "voyage-3", calls[0].Model)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}
