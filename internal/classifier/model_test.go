package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogitsShapes(t *testing.T) {
	nested, err := decodeLogits([]byte(`[[{"label":"414","score":1.5}]]`))
	require.NoError(t, err)
	assert.Equal(t, []Logit{{Label: "414", Score: 1.5}}, nested)

	flat, err := decodeLogits([]byte(`[{"label":"401","score":-0.5}]`))
	require.NoError(t, err)
	assert.Equal(t, []Logit{{Label: "401", Score: -0.5}}, flat)

	_, err = decodeLogits([]byte(`{"error":"loading"}`))
	assert.Error(t, err)
}

func TestHTTPModelRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "chest pain", body["inputs"])
		params := body["parameters"].(map[string]any)
		assert.Equal(t, "none", params["function_to_apply"])

		fmt.Fprint(w, `[[{"label":"414","score":2.0}]]`)
	}))
	defer srv.Close()

	logits, err := NewHTTPModel(srv.URL, "tok", srv.Client()).Logits(context.Background(), "chest pain")
	require.NoError(t, err)
	assert.Equal(t, []Logit{{Label: "414", Score: 2.0}}, logits)
}

func TestHTTPModelNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPModel(srv.URL, "", srv.Client()).Logits(context.Background(), "x")
	assert.ErrorContains(t, err, "503")
}

func TestRemoteLookupCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "code_dx", r.URL.Query().Get("sf"))
		switch r.URL.Query().Get("terms") {
		case "786":
			fmt.Fprint(w, `[1,["786"],null,[["786","Symptoms involving respiratory system and other chest symptoms"]]]`)
		default:
			fmt.Fprint(w, `[0,[],null,[]]`)
		}
	}))
	defer srv.Close()

	remote, err := NewRemoteLookup(srv.URL, srv.Client())
	require.NoError(t, err)

	info := remote.Describe(context.Background(), "786")
	assert.Equal(t, "Symptoms involving respiratory system and other chest symptoms", info.Description)
	_ = remote.Describe(context.Background(), "786")
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	miss := remote.Describe(context.Background(), "999")
	assert.Equal(t, unknownDescription, miss.Description)

	var none *RemoteLookup
	assert.Equal(t, unknownHierarchy, none.Describe(context.Background(), "786").FullHierarchy)
}

func TestHTTPLoaderWarmsUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"label":"414","score":0.1}]`)
	}))
	defer srv.Close()

	load := HTTPLoader(srv.URL, "", "does/not/exist.json", srv.Client())
	model, index, err := load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, model)
	assert.Equal(t, 0, index.Len())

	_, _, err = HTTPLoader("", "", "", nil)(context.Background())
	assert.Error(t, err)
}
