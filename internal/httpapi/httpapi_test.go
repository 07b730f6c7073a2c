package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"artnetctl/internal/artnet"
	"artnetctl/internal/logger"
	"artnetctl/internal/metrics"
	"artnetctl/internal/packet"
	"artnetctl/internal/universe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	store   *universe.Store
	nodes   []artnet.Node
	polls   int
	pollErr error
	tc      *packet.TimeCode
}

func (f *fakeController) SetUniverseData(net, subnet, uni int, data []byte) error {
	return f.store.SetUniverseData(net, subnet, uni, data)
}
func (f *fakeController) Store() *universe.Store         { return f.store }
func (f *fakeController) Nodes() []artnet.Node           { return f.nodes }
func (f *fakeController) LastTimeCode() *packet.TimeCode { return f.tc }
func (f *fakeController) SendPoll() error {
	f.polls++
	return f.pollErr
}

func newServer(t *testing.T) (*Server, *fakeController, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	ctrl := &fakeController{store: universe.NewStore()}
	return New(logger.Discard(), ctrl, reg), ctrl, reg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestPutAndGetUniverse(t *testing.T) {
	s, ctrl, _ := newServer(t)

	rec := do(t, s, http.MethodPut, "/universes/1/2/3", `{"data":[1,2,255]}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	k, err := universe.NewKey(1, 2, 3)
	require.NoError(t, err)
	info, ok := ctrl.store.Get(k)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 255}, info.Data)

	rec = do(t, s, http.MethodGet, "/universes/1/2/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got universeJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []int{1, 2, 255}, got.Data)
	assert.Equal(t, 1, got.Net)
	assert.Equal(t, 2, got.SubNet)
	assert.Equal(t, 3, got.Universe)

	rec = do(t, s, http.MethodGet, "/universes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []universeJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestUniverseErrors(t *testing.T) {
	s, _, _ := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"net out of range", http.MethodPut, "/universes/128/0/0", `{"data":[1]}`, http.StatusBadRequest},
		{"not a number", http.MethodPut, "/universes/x/0/0", `{"data":[1]}`, http.StatusBadRequest},
		{"byte out of range", http.MethodPut, "/universes/0/0/0", `{"data":[256]}`, http.StatusBadRequest},
		{"too many channels", http.MethodPut, "/universes/0/0/0", `{"data":[` + strings.Repeat("0,", 512) + `0]}`, http.StatusBadRequest},
		{"bad json", http.MethodPut, "/universes/0/0/0", `{`, http.StatusBadRequest},
		{"unknown universe", http.MethodGet, "/universes/0/0/1", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestDeleteUniverse(t *testing.T) {
	s, ctrl, _ := newServer(t)
	require.NoError(t, ctrl.store.SetUniverseData(0, 0, 1, []byte{1}))

	rec := do(t, s, http.MethodDelete, "/universes/0/0/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, ctrl.store.Len())
}

func TestDestinations(t *testing.T) {
	s, ctrl, _ := newServer(t)
	require.NoError(t, ctrl.store.SetUniverseData(0, 0, 1, []byte{1}))
	k, _ := universe.NewKey(0, 0, 1)

	rec := do(t, s, http.MethodPost, "/universes/0/0/1/destinations", `{"addr":"10.0.0.7"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPost, "/universes/0/0/1/destinations", `{"addr":"10.0.0.8:7000"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	dst := ctrl.store.Destinations(k)
	require.Len(t, dst, 2)
	assert.Equal(t, "10.0.0.7:6454", dst[0].String())
	assert.Equal(t, "10.0.0.8:7000", dst[1].String())

	rec = do(t, s, http.MethodDelete, "/universes/0/0/1/destinations/10.0.0.7", "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Len(t, ctrl.store.Destinations(k), 1)

	rec = do(t, s, http.MethodPost, "/universes/0/0/1/destinations", `{"addr":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseDestination(t *testing.T) {
	addr, err := parseDestination("192.168.1.5")
	require.NoError(t, err)
	assert.Equal(t, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 5).To4(), Port: packet.UDPPort}, addr)

	_, err = parseDestination("192.168.1.5:0")
	assert.ErrorIs(t, err, packet.ErrOutOfRange)

	_, err = parseDestination("::1")
	assert.ErrorIs(t, err, packet.ErrOutOfRange)
}

func TestNodes(t *testing.T) {
	s, ctrl, _ := newServer(t)
	k, _ := universe.NewKey(0, 1, 2)
	ctrl.nodes = []artnet.Node{{
		IP:        net.IPv4(10, 0, 0, 2),
		ShortName: "dimmer",
		Style:     packet.StyleNode,
		Outputs:   []universe.Key{k},
		LastSeen:  time.Unix(100, 0).UTC(),
	}}

	rec := do(t, s, http.MethodGet, "/nodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []nodeJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.2", got[0].IP)
	assert.Equal(t, "dimmer", got[0].ShortName)
	assert.Equal(t, []string{k.String()}, got[0].Outputs)
}

func TestPoll(t *testing.T) {
	s, ctrl, _ := newServer(t)

	rec := do(t, s, http.MethodPost, "/poll", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ctrl.polls)

	ctrl.pollErr = errors.New("closed")
	rec = do(t, s, http.MethodPost, "/poll", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTimeCode(t *testing.T) {
	s, ctrl, _ := newServer(t)

	rec := do(t, s, http.MethodGet, "/timecode", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	b := packet.NewTimeCodeBuilder()
	require.NoError(t, b.SetType(packet.TimeCodeSMPTE))
	require.NoError(t, b.SetHours(1))
	require.NoError(t, b.SetFrames(29))
	ctrl.tc = b.Build()

	rec = do(t, s, http.MethodGet, "/timecode", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"string":"01:00:00:29@smpte"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, reg := newServer(t)
	m := metrics.New(reg)
	m.PacketsSent.WithLabelValues(packet.OpDMX.String()).Inc()

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "artnet_packets_sent_total")
}
