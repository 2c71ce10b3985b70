package register

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register/api/v1/parties/lookup", r.URL.Path)

		var req partyLookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch {
		case req.Ssn == "01017012345":
			_ = json.NewEncoder(w).Encode(partyLookupResponse{PartyID: 50001})
		case req.OrgNo == "910000000":
			_ = json.NewEncoder(w).Encode(partyLookupResponse{PartyID: 50002})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	ctx := context.Background()

	id, err := client.PartyLookup(ctx, "", "01017012345")
	require.NoError(t, err)
	assert.Equal(t, 50001, id)

	id, err = client.PartyLookup(ctx, "910000000", "")
	require.NoError(t, err)
	assert.Equal(t, 50002, id)

	_, err = client.PartyLookup(ctx, "", "31129999999")
	assert.ErrorIs(t, err, ErrPartyNotFound)
	assert.NotContains(t, err.Error(), "31129999999")
}

func TestPartyLookup_RequiresExactlyOneIdentifier(t *testing.T) {
	client := New("http://unused.invalid", time.Second)

	_, err := client.PartyLookup(context.Background(), "", "")
	assert.Error(t, err)

	_, err = client.PartyLookup(context.Background(), "910000000", "01017012345")
	assert.Error(t, err)
}

func TestPartyLookup_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).PartyLookup(context.Background(), "", "01017012345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.NotContains(t, err.Error(), "01017012345")
}

func TestPartyLookupByURNs_Chunks(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		var req identifiersRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Data), MaxURNsPerLookup)

		resp := identifiersResponse{}
		for _, urn := range req.Data {
			resp.Data = append(resp.Data, PartyIdentifiers{URN: urn})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	urns := make([]string, 250)
	for i := range urns {
		urns[i] = fmt.Sprintf("urn:altinn:party:id:%d", i+1)
	}

	parties, err := New(server.URL, time.Second).PartyLookupByURNs(context.Background(), urns)
	require.NoError(t, err)
	assert.Len(t, parties, 250)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "urn:altinn:party:id:250", parties[249].URN)
}

func TestPartyLookupByURNs_Empty(t *testing.T) {
	parties, err := New("http://unused.invalid", time.Second).PartyLookupByURNs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, parties)
}
