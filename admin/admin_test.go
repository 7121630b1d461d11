package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminResponse struct {
	Data    json.RawMessage `json:"data"`
	HasMore bool            `json:"has_more"`
	LastKey string          `json:"last_key"`
	Error   string          `json:"error"`
}

func setup(t *testing.T, records int) (*feed.Log, *notify.Notifier, http.Handler) {
	t.Helper()
	l := feed.NewLog()
	for i := 0; i < records; i++ {
		l.Append(feed.Record{Name: fmt.Sprintf("user-%d", i), LastName: "Test"})
	}
	n := notify.NewNotifier()

	r := chi.NewRouter()
	RegisterRoutes(r, NewAdminHandlers(l, n, "node-a"))
	return l, n, r
}

func get(t *testing.T, h http.Handler, target string) (int, adminResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp adminResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestStats(t *testing.T) {
	_, n, h := setup(t, 3)
	sub := n.Subscribe()
	defer sub.Close()
	n.Broadcast()

	code, resp := get(t, h, "/admin/stats")
	require.Equal(t, http.StatusOK, code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, float64(3), stats["log_length"])
	assert.Equal(t, float64(1), stats["listeners"])
	assert.Equal(t, float64(1), stats["broadcasts"])
	assert.Equal(t, "node-a", stats["instance_id"])
}

func TestRecordsPagination(t *testing.T) {
	_, _, h := setup(t, 5)

	var seen []recordEntry
	target := "/admin/records?limit=2"
	for pages := 0; pages < 10; pages++ {
		code, resp := get(t, h, target)
		require.Equal(t, http.StatusOK, code)

		var page []recordEntry
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		seen = append(seen, page...)

		if !resp.HasMore {
			assert.Empty(t, resp.LastKey)
			break
		}
		target = "/admin/records?limit=2&from=" + resp.LastKey
	}

	require.Len(t, seen, 5)
	for i, e := range seen {
		assert.Equal(t, i, e.Position)
		assert.Equal(t, fmt.Sprintf("user-%d", i), e.Name)
	}
}

func TestRecordsPastEnd(t *testing.T) {
	_, _, h := setup(t, 2)

	code, resp := get(t, h, "/admin/records?from=10")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(resp.Data))
	assert.False(t, resp.HasMore)
}

func TestRecordsBadParameters(t *testing.T) {
	_, _, h := setup(t, 2)

	for _, target := range []string{
		"/admin/records?limit=0",
		"/admin/records?limit=2000",
		"/admin/records?limit=abc",
		"/admin/records?from=-1",
		"/admin/records?from=x",
	} {
		code, resp := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, code, target)
		assert.NotEmpty(t, resp.Error, target)
	}
}
