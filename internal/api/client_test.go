package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/openbci/internal/httputil"
)

func TestClientAgainstServer(t *testing.T) {
	f := newFixture(t, false)
	f.session.Response = "done"
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)

	info, err := c.Board()
	require.NoError(t, err)
	assert.Equal(t, "cyton", info.Board)

	_, err = c.LatestFrame()
	assert.ErrorContains(t, err, "no frame emitted yet")

	f.emit(t, 2)
	fr, err := c.LatestFrame()
	require.NoError(t, err)
	assert.Equal(t, 2, fr.Samples())

	res, err := c.SendCommand("v")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Response)
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	m := httputil.NewMockHTTPClient().
		AddResponse(http.StatusBadGateway, "upstream gone").
		AddResponse(http.StatusOK, "{")
	c := NewClient("http://node", m)

	_, err := c.SendCommand("v")
	assert.ErrorContains(t, err, "status 502")
	assert.Equal(t, "command=v", m.Bodies[0])

	_, err = c.Board()
	assert.Error(t, err)
	assert.Equal(t, "http://node/api/board", m.Requests[1].URL.String())
}
