// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maquino1985/abseq/internal/session"
)

const sampleAnnotations = `{
  "sequences": [
    {
      "name": "mab-1",
      "species": "human",
      "chains": [
        {
          "name": "H",
          "chain_type": "heavy",
          "sequence": "EVQLVESGGGLVQPGGSLRLSCAASGFTFSSYAMSWVRQAPGKGLEWVSAISGSGGSTYYADSVKGRFTISRDNSKNTLYLQMNSLRAEDTAVYYCAKDRLSITIRPRYYGLDVWGQGTTVTVSS",
          "domains": [
            {
              "domain_type": "V",
              "isotype": "IgG1",
              "regions": [
                {"name": "FR1", "start": 1, "stop": 30},
                {"name": "CDR1", "start": [31, ""], "stop": "35"},
                {"name": "FR2", "start": 36, "stop": 49},
                {"name": "CDR2", "start": 50, "stop": 65}
              ]
            }
          ]
        }
      ]
    }
  ]
}`

type fakeStorage map[string][]byte

func (s fakeStorage) NewObjectHandle(bucket, object string) ObjectHandle {
	return fakeObject{s, bucket + "/" + object}
}

type fakeObject struct {
	storage fakeStorage
	key     string
}

func (o fakeObject) NewReader(_ context.Context) (io.ReadCloser, error) {
	if data, ok := o.storage[o.key]; ok {
		return ioutil.NopCloser(bytes.NewReader(data)), nil
	}
	return nil, storage.ErrObjectNotExist
}

func newTestRouter(t *testing.T) (*gin.Engine, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	storage := fakeStorage{"demo/sample.json": []byte(sampleAnnotations)}
	server := NewServer(func(*http.Request) (Client, error) {
		return storage, nil
	}, session.NewStore(0))

	router := gin.New()
	server.Register(router)
	return router, server
}

func doRequest(router *gin.Engine, method, url string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, body)
	router.ServeHTTP(w, req)
	return w
}

func annotate(t *testing.T, router *gin.Engine) AnnotateResponse {
	t.Helper()
	w := doRequest(router, "POST", "/annotations", bytes.NewReader([]byte(sampleAnnotations)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response AnnotateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotEmpty(t, response.Session)
	return response
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, name string, code int) {
	t.Helper()
	assert.Equal(t, code, w.Code, w.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, name, body["error"])
}

func TestAnnotate_FromBody(t *testing.T) {
	router, _ := newTestRouter(t)
	response := annotate(t, router)

	require.Len(t, response.Sequences, 1)
	assert.Equal(t, "mab-1", response.Sequences[0].Name)
	require.Len(t, response.Sequences[0].Chains, 1)
	assert.Equal(t, "mab-1:H", response.Sequences[0].Chains[0].ID)
	assert.Len(t, response.Sequences[0].Chains[0].Regions, 4)
	assert.Empty(t, response.Failed)
}

func TestAnnotate_FromStorage(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, "POST", "/annotations?dataset=demo/sample", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response AnnotateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Sequences, 1)
}

func TestAnnotate_Errors(t *testing.T) {
	router, server := newTestRouter(t)
	server.Whitelist([]string{"demo"})

	testCases := []struct {
		name string
		url  string
		body string
		want string
		code int
	}{
		{"empty body", "/annotations", "", "InvalidInput", http.StatusBadRequest},
		{"garbage body", "/annotations", "not json", "InvalidInput", http.StatusBadRequest},
		{"no sequences", "/annotations", `{"sequences": []}`, "InvalidInput", http.StatusBadRequest},
		{"bad dataset ref", "/annotations?dataset=nodash", "", "InvalidInput", http.StatusBadRequest},
		{"missing dataset", "/annotations?dataset=demo/absent", "", "NotFound", http.StatusNotFound},
		{"bucket not whitelisted", "/annotations?dataset=other/sample", "", "PermissionDenied", http.StatusForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "POST", tc.url, bytes.NewReader([]byte(tc.body)))
			expectError(t, w, tc.want, tc.code)
		})
	}
}

func TestToggleRegion(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	w := doRequest(router, "POST", "/sessions/"+sess+"/regions/mab-1:H:0:1:CDR1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response ToggleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []string{"mab-1:H:0:1:CDR1"}, response.Selection.Regions)
	assert.Equal(t, []int{31, 32, 33, 34, 35}, response.Selection.Positions)
	assert.Empty(t, response.Suggestion)

	// Toggling again restores the empty selection.
	w = doRequest(router, "POST", "/sessions/"+sess+"/regions/mab-1:H:0:1:CDR1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Empty(t, response.Selection.Regions)
	assert.Empty(t, response.Selection.Positions)
}

func TestToggleRegion_UnknownSuggestsClosest(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	w := doRequest(router, "POST", "/sessions/"+sess+"/regions/CDR11", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response ToggleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	// The unknown ID is toggled in with no position effect.
	assert.Equal(t, []string{"CDR11"}, response.Selection.Regions)
	assert.Empty(t, response.Selection.Positions)
	assert.Equal(t, "CDR1", response.Suggestion)
}

func TestTogglePosition(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	w := doRequest(router, "POST", "/sessions/"+sess+"/chains/mab-1:H/positions/7", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response ToggleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []int{7}, response.Selection.Positions)
	assert.Empty(t, response.Selection.Regions)
}

func TestTogglePosition_Errors(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	testCases := []struct {
		name string
		url  string
		want string
		code int
	}{
		{"unparseable position", "/sessions/" + sess + "/chains/mab-1:H/positions/seven", "InvalidInput", http.StatusBadRequest},
		{"zero position", "/sessions/" + sess + "/chains/mab-1:H/positions/0", "InvalidRange", http.StatusBadRequest},
		{"past end of chain", "/sessions/" + sess + "/chains/mab-1:H/positions/9999", "InvalidRange", http.StatusBadRequest},
		{"unknown chain", "/sessions/" + sess + "/chains/mab-9:X/positions/7", "NotFound", http.StatusNotFound},
		{"unknown session", "/sessions/nope/chains/mab-1:H/positions/7", "NotFound", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, "POST", tc.url, nil)
			expectError(t, w, tc.want, tc.code)
		})
	}
}

func TestSelectionLabels(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	doRequest(router, "POST", "/sessions/"+sess+"/regions/mab-1:H:0:1:CDR1", nil)
	for _, pos := range []string{"1", "2", "3"} {
		doRequest(router, "POST", "/sessions/"+sess+"/chains/mab-1:H/positions/"+pos, nil)
	}

	w := doRequest(router, "GET", "/sessions/"+sess+"/selection", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response SelectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Chains, 1)
	assert.Equal(t, "mab-1:H", response.Chains[0].Chain)
	assert.Equal(t, []string{"CDR1:31-35", "E1-Q3"}, response.Chains[0].Labels)
}

func TestClearSelection(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	doRequest(router, "POST", "/sessions/"+sess+"/regions/mab-1:H:0:1:CDR1", nil)
	w := doRequest(router, "DELETE", "/sessions/"+sess+"/selection", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response ToggleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Empty(t, response.Selection.Regions)
	assert.Empty(t, response.Selection.Positions)
}

func TestColors(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	doRequest(router, "POST", "/sessions/"+sess+"/regions/mab-1:H:0:3:CDR2", nil)

	w := doRequest(router, "GET", "/sessions/"+sess+"/chains/mab-1:H/colors?scheme=clustal", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response ColorsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "clustal", response.Scheme)
	require.Len(t, response.Styles, len(response.Residues))

	// CDR2 spans positions 50-65; inside is emphasized with the region
	// color, outside is a plain residue fill.
	assert.True(t, response.Styles[49].Bold)
	assert.Equal(t, "#377eb8", response.Styles[49].Background)
	assert.True(t, response.Styles[64].Bold)
	assert.False(t, response.Styles[48].Bold)
}

func TestColors_UnsupportedScheme(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	w := doRequest(router, "GET", "/sessions/"+sess+"/chains/mab-1:H/colors?scheme=rainbow", nil)
	expectError(t, w, "UnsupportedScheme", http.StatusBadRequest)
}

func TestSessionLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	sess := annotate(t, router).Session

	w := doRequest(router, "GET", "/sessions/"+sess, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, sess, response.Session)
	assert.Len(t, response.Sequences, 1)

	w = doRequest(router, "DELETE", "/sessions/"+sess, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, "GET", "/sessions/"+sess, nil)
	expectError(t, w, "NotFound", http.StatusNotFound)
}

func TestSchemes(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, "GET", "/schemes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response SchemesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Schemes, "clustal")
	assert.Contains(t, response.Schemes, "region")
}

func TestForwardOrigin(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/schemes", nil)
	req.Header.Set("Origin", "https://viewer.example.com")
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://viewer.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
