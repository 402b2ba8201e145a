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

// Package api implements the antibody annotation selection API.
//
// The API ingests annotation service results into per-session datasets and
// exposes the selection operations the sequence viewer needs: region and
// position toggles, compacted selection labels, and per-position colors.
package api

import (
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/gin-gonic/gin"

	"github.com/maquino1985/abseq/internal/antibody"
	"github.com/maquino1985/abseq/internal/ingest"
	"github.com/maquino1985/abseq/internal/selection"
	"github.com/maquino1985/abseq/internal/session"
	"github.com/maquino1985/abseq/internal/tracking"
)

const defaultBodyLimit = 8 * 1024 * 1024 // Annotation results are small.

var (
	errInvalidOrUnspecifiedID = errors.New("invalid or unspecified dataset ID")
	errMissingOrInvalidToken  = errors.New("missing or invalid token")
	errEmptyBody              = errors.New("empty request body")
)

// Server provides the annotation selection API.  Must be created with
// NewServer.
type Server struct {
	newStorageClient NewStorageClientFunc
	store            *session.Store
	bodyLimit        int64
	whitelist        map[string]bool
}

// NewServer returns a Server that keeps sessions in store and resolves
// server-side dataset references through newStorageClient.
func NewServer(newStorageClient NewStorageClientFunc, store *session.Store) *Server {
	return &Server{newStorageClient, store, defaultBodyLimit, make(map[string]bool)}
}

// Whitelist adds buckets to the set of buckets the server may read
// datasets from.  If Whitelist is never called, any bucket is allowed.
func (server *Server) Whitelist(buckets []string) {
	for _, bucket := range buckets {
		server.whitelist[bucket] = true
	}
}

// Register installs the API routes on router.
func (server *Server) Register(router *gin.Engine) {
	router.Use(forwardOrigin)
	router.POST("/annotations", server.postAnnotations)
	router.GET("/schemes", server.getSchemes)
	router.GET("/sessions/:session", server.getSession)
	router.DELETE("/sessions/:session", server.deleteSession)
	router.POST("/sessions/:session/regions/:region", server.toggleRegion)
	router.POST("/sessions/:session/chains/:chain/positions/:position", server.togglePosition)
	router.GET("/sessions/:session/selection", server.getSelection)
	router.DELETE("/sessions/:session/selection", server.clearSelection)
	router.GET("/sessions/:session/chains/:chain/colors", server.getColors)
}

func (server *Server) postAnnotations(c *gin.Context) {
	ctx := c.Request.Context()
	track := tracking.TrackerFromContext(ctx)
	track(tracking.NewEvent("Annotations", "Annotation Request Received", "", nil))

	data, err := server.annotationData(c)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := ingest.Decode(data)
	if err != nil {
		writeError(c, newInvalidInputError("decoding annotation result", err))
		return
	}
	dataset, failed, err := ingest.Ingest(result)
	if err != nil {
		track(tracking.NewEvent("Annotations", "Annotation Ingest Failed", "", nil))
		writeError(c, newInvalidInputError("ingesting annotation result", err))
		return
	}

	sess := server.store.Create(dataset)

	response := AnnotateResponse{
		Session:   sess.ID,
		Sequences: summarize(dataset),
	}
	for _, f := range failed {
		response.Failed = append(response.Failed, f.Error())
	}
	c.JSON(http.StatusOK, response)

	count := int64(len(dataset.Sequences))
	track(tracking.NewEvent("Annotations", "Sequences Ingested", "", &count))
}

// annotationData returns the raw annotation JSON for the request: either
// the request body, or a server-side dataset named by the "dataset" query
// parameter as "bucket/object".
func (server *Server) annotationData(c *gin.Context) ([]byte, error) {
	if ref := c.Query("dataset"); ref != "" {
		bucket, object, err := parseID(ref)
		if err != nil {
			return nil, newInvalidInputError("parsing dataset ID", err)
		}
		if err := server.checkWhitelist(bucket); err != nil {
			return nil, newPermissionDeniedError("checking whitelist", err)
		}
		client, err := server.newStorageClient(c.Request)
		if err != nil {
			return nil, newStorageError("creating client", err)
		}
		object = strings.TrimSuffix(object, ".json") + ".json"
		r, err := client.NewObjectHandle(bucket, object).NewReader(c.Request.Context())
		if err != nil {
			return nil, newStorageError("opening dataset", err)
		}
		defer r.Close()
		data, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, newStorageError("reading dataset", err)
		}
		return data, nil
	}

	data, err := ioutil.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, server.bodyLimit))
	if err != nil {
		return nil, newInvalidInputError("reading request body", err)
	}
	if len(data) == 0 {
		return nil, newInvalidInputError("reading request body", errEmptyBody)
	}
	return data, nil
}

func (server *Server) getSchemes(c *gin.Context) {
	c.JSON(http.StatusOK, SchemesResponse{Schemes: selection.SchemeNames()})
}

func (server *Server) getSession(c *gin.Context) {
	sess, err := server.session(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var response SessionResponse
	sess.Do(func(m *selection.Model) {
		response = SessionResponse{
			Session:   sess.ID,
			Sequences: summarize(m.Dataset()),
			Selection: selectionState(m),
		}
	})
	c.JSON(http.StatusOK, response)
}

func (server *Server) deleteSession(c *gin.Context) {
	if _, err := server.session(c); err != nil {
		writeError(c, err)
		return
	}
	server.store.Delete(c.Param("session"))
	c.Status(http.StatusNoContent)
}

func (server *Server) toggleRegion(c *gin.Context) {
	track := tracking.TrackerFromContext(c.Request.Context())

	sess, err := server.session(c)
	if err != nil {
		writeError(c, err)
		return
	}
	regionID := c.Param("region")

	var response ToggleResponse
	sess.Do(func(m *selection.Model) {
		// Unknown IDs still toggle, with no position effect; offer the
		// closest known region so mistyped IDs are easy to correct.
		if m.Dataset().Region(regionID) == nil {
			response.Suggestion = suggestRegion(m.Dataset(), regionID)
		}
		m.ToggleRegion(regionID)
		response.Selection = selectionState(m)
	})
	c.JSON(http.StatusOK, response)
	track(tracking.NewEvent("Selection", "Region Toggled", "", nil))
}

func (server *Server) togglePosition(c *gin.Context) {
	track := tracking.TrackerFromContext(c.Request.Context())

	sess, err := server.session(c)
	if err != nil {
		writeError(c, err)
		return
	}

	pos, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		writeError(c, newInvalidInputError("parsing position", err))
		return
	}

	chainID := c.Param("chain")
	var response ToggleResponse
	var opErr error
	sess.Do(func(m *selection.Model) {
		chain := m.Dataset().Chain(chainID)
		if chain == nil {
			opErr = newNotFoundError("resolving chain", fmt.Errorf("no chain %q", chainID))
			return
		}
		if pos < 1 || pos > len(chain.Residues) {
			opErr = newInvalidRangeError(fmt.Errorf("position %d outside chain %s [1,%d]", pos, chainID, len(chain.Residues)))
			return
		}
		m.TogglePosition(pos)
		response.Selection = selectionState(m)
	})
	if opErr != nil {
		writeError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, response)
	track(tracking.NewEvent("Selection", "Position Toggled", "", nil))
}

func (server *Server) getSelection(c *gin.Context) {
	sess, err := server.session(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var response SelectionResponse
	sess.Do(func(m *selection.Model) {
		for _, seq := range m.Dataset().Sequences {
			for i := range seq.Chains {
				chain := &seq.Chains[i]
				response.Chains = append(response.Chains, ChainSelection{
					Chain:  chain.ID,
					Labels: m.FormatSelections(chain),
				})
			}
		}
	})
	c.JSON(http.StatusOK, response)
}

func (server *Server) clearSelection(c *gin.Context) {
	track := tracking.TrackerFromContext(c.Request.Context())

	sess, err := server.session(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var response ToggleResponse
	sess.Do(func(m *selection.Model) {
		m.Clear()
		response.Selection = selectionState(m)
	})
	c.JSON(http.StatusOK, response)
	track(tracking.NewEvent("Selection", "Selection Cleared", "", nil))
}

func (server *Server) getColors(c *gin.Context) {
	sess, err := server.session(c)
	if err != nil {
		writeError(c, err)
		return
	}

	schemeName := c.DefaultQuery("scheme", "clustal")
	scheme, err := selection.SchemeByName(schemeName)
	if err != nil {
		writeError(c, newUnsupportedSchemeError(err))
		return
	}

	chainID := c.Param("chain")
	var response ColorsResponse
	var opErr error
	sess.Do(func(m *selection.Model) {
		chain := m.Dataset().Chain(chainID)
		if chain == nil {
			opErr = newNotFoundError("resolving chain", fmt.Errorf("no chain %q", chainID))
			return
		}
		response = ColorsResponse{
			Chain:    chain.ID,
			Scheme:   scheme.Name,
			Residues: chain.Residues,
			Styles:   make([]selection.Style, 0, len(chain.Residues)),
		}
		for pos := 1; pos <= len(chain.Residues); pos++ {
			response.Styles = append(response.Styles, selection.ColorForPosition(chain, pos, m, scheme))
		}
	})
	if opErr != nil {
		writeError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (server *Server) session(c *gin.Context) (*session.Session, error) {
	sess, err := server.store.Get(c.Param("session"))
	if err != nil {
		return nil, newNotFoundError("resolving session", err)
	}
	return sess, nil
}

func (server *Server) checkWhitelist(bucket string) error {
	if len(server.whitelist) == 0 || server.whitelist[bucket] {
		return nil
	}
	return fmt.Errorf("access to bucket %s is not allowed", bucket)
}

// parseID parses ref and returns a storage bucket and object, or an error.
func parseID(ref string) (string, string, error) {
	if parts := strings.SplitN(ref, "/", 2); len(parts) == 2 {
		if parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}
	return "", "", errInvalidOrUnspecifiedID
}

// suggestRegion returns the known region ID or name closest to input, or
// an empty string when nothing is plausibly close.
func suggestRegion(dataset *antibody.Dataset, input string) string {
	best := ""
	bestDistance := len(input)/2 + 1
	for _, region := range dataset.Regions() {
		for _, candidate := range []string{region.ID, region.Name} {
			if d := levenshtein.ComputeDistance(input, candidate); d < bestDistance {
				best, bestDistance = candidate, d
			}
		}
	}
	return best
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func newApiError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %v", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newApiError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newApiError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

func newPermissionDeniedError(context string, err error) error {
	return newApiError("PermissionDenied", http.StatusForbidden, context, err)
}

func newUnsupportedSchemeError(err error) error {
	return &apiError{"UnsupportedScheme", http.StatusBadRequest, err}
}

func newNotFoundError(context string, err error) error {
	return newApiError("NotFound", http.StatusNotFound, context, err)
}

// writeError writes a JSON object describing err.  Errors without an API
// defined name and code are reported as internal.
func writeError(c *gin.Context, err error) {
	if err, ok := err.(*apiError); ok {
		c.JSON(err.code, gin.H{
			"error":   err.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(err.code), err.cause),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "InternalError",
		"message": fmt.Sprintf("%s: %v", http.StatusText(http.StatusInternalServerError), err),
	})
}

// forwardOrigin reflects the request origin so browser based viewers can
// call the API cross origin.
func forwardOrigin(c *gin.Context) {
	if origin := c.Request.Header.Get("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}
