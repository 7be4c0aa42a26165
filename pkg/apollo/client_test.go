package apollo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchPeople(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mixed_people/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Page)
		assert.Equal(t, 25, req.PerPage)
		assert.Equal(t, []string{"Marketing Director"}, req.Titles)

		_, _ = w.Write([]byte(`{
			"people": [
				{"id":"p1","first_name":"Jo","last_name":"Field","email":"jo@acme.example",
				 "organization":{"name":"Acme","primary_domain":"acme.example"}}
			],
			"pagination": {"page":3,"per_page":25,"total_pages":10}
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.SearchPeople(context.Background(), SearchRequest{
		Titles:  []string{"Marketing Director"},
		Page:    3,
		PerPage: 25,
	})
	require.NoError(t, err)
	require.Len(t, resp.People, 1)
	assert.Equal(t, "jo@acme.example", resp.People[0].Email)
	require.NotNil(t, resp.People[0].Organization)
	assert.Equal(t, "acme.example", resp.People[0].Organization.PrimaryDomain)
	assert.Equal(t, 10, resp.Pagination.TotalPages)
}

func TestSearchPeopleRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"people":[],"pagination":{"page":1}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.SearchPeople(context.Background(), SearchRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.People)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchPeopleBadRequestFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.SearchPeople(context.Background(), SearchRequest{Page: 1})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
