package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opendiscourse/corpusd/internal/model"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

func TestInitSchema_DropsThenCreates(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Chunks", body["class"])
		moduleConfig := body["moduleConfig"].(map[string]interface{})["text2vec-openai"].(map[string]interface{})
		require.Equal(t, "text-embedding-3-small", moduleConfig["model"])
		require.Equal(t, "http://embedder:8080", moduleConfig["baseURL"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "Old"})
	err := client.InitSchema(context.Background(), Schema{
		Collection:      "Chunks",
		Model:           "text-embedding-3-small",
		ProviderBaseURL: "http://embedder:8080",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"DELETE /v1/schema/Chunks", "POST /v1/schema"}, calls)
	require.Equal(t, "Chunks", client.Collection())
}

func TestUpsert_SendsOneBatch(t *testing.T) {
	var batches int
	var gotIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/batch/objects", r.URL.Path)
		batches++
		var body struct {
			Objects []struct {
				Class      string                 `json:"class"`
				ID         string                 `json:"id"`
				Properties map[string]interface{} `json:"properties"`
			} `json:"objects"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, obj := range body.Objects {
			require.Equal(t, "Chunks", obj.Class)
			gotIDs = append(gotIDs, obj.ID)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "Chunks"})
	chunks := []model.Chunk{
		{ID: "id-1", Text: "alpha", Source: "a.txt"},
		{ID: "id-2", Text: "beta", Source: "a.txt", Tags: []string{"x"}},
	}
	require.NoError(t, client.Upsert(context.Background(), chunks))
	require.Equal(t, 1, batches)
	require.Equal(t, []string{"id-1", "id-2"}, gotIDs)
}

func TestUpsert_EmptyBatchSkipsNetwork(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0", Collection: "Chunks", Timeout: time.Second})
	require.NoError(t, client.Upsert(context.Background(), nil))
}

func TestQuery_ParsesMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/graphql", r.URL.Path)
		fmt.Fprint(w, `{"data":{"Get":{"Chunks":[
			{"text":"most relevant","source":"a.txt","tags":["t"],"_additional":{"certainty":0.93}},
			{"text":"less relevant","source":"b.txt","tags":null,"_additional":{"certainty":0.71}}
		]}}}`)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "Chunks"})
	matches, err := client.Query(context.Background(), "what is relevant?", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "most relevant", matches[0].Text)
	require.Equal(t, 0.93, matches[0].Score)
	require.Equal(t, "b.txt", matches[1].Source)
}

func TestQuery_GraphQLErrorSurfacesAsStoreUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"vectorizer down"}]}`)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "Chunks"})
	_, err := client.Query(context.Background(), "q", 3)
	require.ErrorIs(t, err, appErr.ErrStoreUnavailable)
}

func TestUpsert_UnreachableStore(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:1", Collection: "Chunks", Timeout: time.Second})
	err := client.Upsert(context.Background(), []model.Chunk{{ID: "id-1", Text: "alpha"}})
	require.ErrorIs(t, err, appErr.ErrStoreUnavailable)
}
