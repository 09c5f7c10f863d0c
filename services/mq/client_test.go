// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return NewClient(Config{
		BaseURL:  baseURL,
		Username: "mqadmin",
		Password: "secret",
	})
}

func TestClient_ListManagers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/qmgr/" {
			t.Errorf("path = %q, want /qmgr/", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "mqadmin" || pass != "secret" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if r.Header.Get("ibm-mq-rest-csrf-token") == "" {
			t.Error("missing CSRF token header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"qmgr": [
			{"name": "MQQMGR1", "state": "running"},
			{"name": "MQQMGR2", "state": "ended"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	managers, err := client.ListManagers(context.Background())
	if err != nil {
		t.Fatalf("ListManagers returned error: %v", err)
	}
	if len(managers) != 2 {
		t.Fatalf("len(managers) = %d, want 2", len(managers))
	}
	if managers[0].Name != "MQQMGR1" || managers[0].State != "running" {
		t.Errorf("managers[0] = %+v", managers[0])
	}
}

func TestClient_Installations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/installation" {
			t.Errorf("path = %q, want /installation", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"installation": [
			{"name": "Installation1", "version": "9.3.0.0", "architecture": "amd64", "installationPath": "/opt/mqm"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	installations, err := client.Installations(context.Background())
	if err != nil {
		t.Fatalf("Installations returned error: %v", err)
	}
	if len(installations) != 1 || installations[0].Version != "9.3.0.0" {
		t.Errorf("installations = %+v", installations)
	}
}

func TestClient_RunCommand(t *testing.T) {
	var capturedPath string
	var capturedBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		if r.Method != "POST" {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"overallCompletionCode": 0,
			"commandResponse": [
				{"completionCode": 0, "reasonCode": 0, "text": ["QUEUE(QL.IN.APP1)   CURDEPTH(42)"]}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.RunCommand(context.Background(), "MQQMGR1", "DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH", "")
	if err != nil {
		t.Fatalf("RunCommand returned error: %v", err)
	}

	if capturedPath != "/action/qmgr/MQQMGR1/mqsc" {
		t.Errorf("path = %q", capturedPath)
	}
	if capturedBody["type"] != "runCommand" {
		t.Errorf("body type = %v, want runCommand", capturedBody["type"])
	}
	params, _ := capturedBody["parameters"].(map[string]interface{})
	if params["command"] != "DISPLAY QLOCAL(QL.IN.APP1) CURDEPTH" {
		t.Errorf("command = %v", params["command"])
	}
	if len(resp.CommandResponse) != 1 {
		t.Fatalf("commandResponse = %+v", resp.CommandResponse)
	}
}

func TestClient_RunCommand_HostnameSubstitution(t *testing.T) {
	// The hostname substitution rewrites the URL before dispatch, so
	// build a base URL whose "localhost" placeholder maps back to the
	// test server's own address.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"overallCompletionCode": 0, "commandResponse": []}`))
	}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "http://")
	client := NewClient(Config{
		BaseURL:  "http://localhost/",
		Username: "mqadmin",
		Password: "secret",
	})

	_, err := client.RunCommand(context.Background(), "MQQMGR2", "DISPLAY QSTATUS(Q1)", host)
	if err != nil {
		t.Fatalf("RunCommand returned error: %v", err)
	}
}

func TestClient_RunCommand_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": [{"message": "bad credentials"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.RunCommand(context.Background(), "MQQMGR1", "DISPLAY QMGR", "")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "mq: API returned status 401") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_VerifyConnectivity(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"installation": []}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		if err := client.VerifyConnectivity(context.Background()); err != nil {
			t.Errorf("VerifyConnectivity returned error: %v", err)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		err := client.VerifyConnectivity(context.Background())
		if err == nil {
			t.Fatal("expected error for 401 probe")
		}
		if !strings.Contains(err.Error(), "401") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("MQ_URL_BASE", "")
	t.Setenv("MQ_USER_NAME", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when MQ_URL_BASE is unset")
	}
}

func TestLoadConfig_TrailingSlash(t *testing.T) {
	t.Setenv("MQ_URL_BASE", "https://localhost:9443/ibmmq/rest/v2/admin")
	t.Setenv("MQ_USER_NAME", "mqadmin")
	t.Setenv("MQ_PASSWORD", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		t.Errorf("BaseURL = %q, want trailing slash", cfg.BaseURL)
	}
}
