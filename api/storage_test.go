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
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/storage"
)

func TestDirClient(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "demo"), 0755); err != nil {
		t.Fatalf("Failed to create bucket dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "demo", "sample.json"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to write dataset: %v", err)
	}

	client, err := NewDirClientFunc(root)(nil)
	if err != nil {
		t.Fatalf("NewDirClientFunc() returned error: %v", err)
	}

	r, err := client.NewObjectHandle("demo", "sample.json").NewReader(context.Background())
	if err != nil {
		t.Fatalf("NewReader() returned error: %v", err)
	}
	defer r.Close()
	data, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("Failed to read dataset: %v", err)
	}
	if got, want := string(data), `{}`; got != want {
		t.Errorf("Wrong content: got %q, want %q", got, want)
	}
}

func TestDirClient_MissingObject(t *testing.T) {
	client := DirClient{Root: t.TempDir()}
	if _, err := client.NewObjectHandle("demo", "absent.json").NewReader(context.Background()); err != storage.ErrObjectNotExist {
		t.Errorf("NewReader(): got %v, want %v", err, storage.ErrObjectNotExist)
	}
}

// Path escapes in bucket or object names must stay inside the root.
func TestDirClient_PathTraversal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "datasets")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	outside := filepath.Join(filepath.Dir(root), "secret.json")
	if err := os.WriteFile(outside, []byte("secret"), 0644); err != nil {
		t.Fatalf("Failed to write outside file: %v", err)
	}

	client := DirClient{Root: root}
	if _, err := client.NewObjectHandle("..", "secret.json").NewReader(context.Background()); err == nil {
		t.Error("Traversal through the bucket name escaped the root")
	}
	if _, err := client.NewObjectHandle("demo", "../../secret.json").NewReader(context.Background()); err == nil {
		t.Error("Traversal through the object name escaped the root")
	}
}

func TestParseID(t *testing.T) {
	testCases := []struct {
		ref            string
		bucket, object string
		ok             bool
	}{
		{"demo/sample.json", "demo", "sample.json", true},
		{"demo/nested/sample.json", "demo", "nested/sample.json", true},
		{"demo", "", "", false},
		{"/sample.json", "", "", false},
		{"demo/", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range testCases {
		bucket, object, err := parseID(tc.ref)
		if tc.ok && err != nil {
			t.Errorf("parseID(%q) returned error: %v", tc.ref, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("parseID(%q) succeeded, want error", tc.ref)
			}
			continue
		}
		if bucket != tc.bucket || object != tc.object {
			t.Errorf("parseID(%q): got (%q, %q), want (%q, %q)", tc.ref, bucket, object, tc.bucket, tc.object)
		}
	}
}

func TestNewClientFromBearerToken_MissingToken(t *testing.T) {
	req, _ := http.NewRequest("GET", "/annotations", nil)
	if _, err := NewClientFromBearerToken(req); err != errMissingOrInvalidToken {
		t.Errorf("NewClientFromBearerToken(): got %v, want %v", err, errMissingOrInvalidToken)
	}
}
