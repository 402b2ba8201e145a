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
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Client is an interface to the dataset storage engine.
type Client interface {
	// NewObjectHandle returns a handle to the specified object in the
	// storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle
}

// ObjectHandle is a handle to one stored annotation dataset.
type ObjectHandle interface {
	// NewReader returns a reader over the whole object.
	NewReader(ctx context.Context) (io.ReadCloser, error)
}

// NewStorageClientFunc is the type of function that constructs the
// appropriate storage client to satisfy the incoming request.
type NewStorageClientFunc func(*http.Request) (Client, error)

// GCSClient is a Client for accessing Google Cloud Storage.
type GCSClient struct {
	*storage.Client
}

// NewObjectHandle returns a handle to a specified object in the storage
// engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

type gcsObjectHandle struct {
	*storage.ObjectHandle
}

func (h gcsObjectHandle) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return h.ObjectHandle.NewReader(ctx)
}

var (
	defaultStorageClient           *storage.Client
	initializeDefaultStorageClient sync.Once
)

func newClientWithOptions(opts ...option.ClientOption) (Client, error) {
	initializeDefaultStorageClient.Do(func() {
		gcs, err := storage.NewClient(context.Background(), opts...)
		if err != nil {
			log.Fatalf("Creating default storage client: %v", err)
		}
		defaultStorageClient = gcs
	})
	return GCSClient{defaultStorageClient}, nil
}

// NewDefaultClient returns a storage client that uses the application
// default credentials.  It caches the storage client for efficiency.
func NewDefaultClient(_ *http.Request) (Client, error) {
	return newClientWithOptions()
}

// NewPublicClient returns a storage client that does not use any form of
// client authorization.  It can only be used to read publicly-readable
// datasets.  It caches the storage client for efficiency.
func NewPublicClient(_ *http.Request) (Client, error) {
	return newClientWithOptions(option.WithHTTPClient(http.DefaultClient))
}

// NewClientFromBearerToken constructs a storage client that uses the
// OAuth2 bearer token found in req to make storage requests.
func NewClientFromBearerToken(req *http.Request) (Client, error) {
	authorization := req.Header.Get("Authorization")

	fields := strings.Split(authorization, " ")
	if len(fields) != 2 || fields[0] != "Bearer" {
		return nil, errMissingOrInvalidToken
	}

	token := oauth2.Token{
		TokenType:   fields[0],
		AccessToken: fields[1],
	}
	client, err := storage.NewClient(req.Context(), option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, fmt.Errorf("creating client with token source: %v", err)
	}
	return GCSClient{client}, nil
}

// DirClient serves datasets from a local directory tree; the bucket is a
// subdirectory and the object a file inside it.
type DirClient struct {
	Root string
}

// NewDirClientFunc returns a NewStorageClientFunc backed by the local
// directory root.
func NewDirClientFunc(root string) NewStorageClientFunc {
	return func(_ *http.Request) (Client, error) {
		return DirClient{Root: root}, nil
	}
}

// NewObjectHandle returns a handle to a file under the client's root.
func (c DirClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return dirObjectHandle{filepath.Join(c.Root, filepath.Clean("/"+bucket), filepath.Clean("/"+object))}
}

type dirObjectHandle struct {
	path string
}

func (h dirObjectHandle) NewReader(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrObjectNotExist
		}
		return nil, err
	}
	return f, nil
}

func newStorageError(context string, err error) error {
	if err == errMissingOrInvalidToken {
		return newPermissionDeniedError(context, err)
	}
	if err == storage.ErrObjectNotExist {
		return newNotFoundError("dataset does not exist", err)
	}
	if err, ok := err.(*googleapi.Error); ok {
		switch err.Code {
		case http.StatusUnauthorized:
			return newInvalidAuthenticationError(context, err)
		case http.StatusForbidden:
			return newPermissionDeniedError(context, err)
		}
	}
	return err
}
