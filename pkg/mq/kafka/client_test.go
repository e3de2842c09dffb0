// Copyright 2025 Stagecraft Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kafka

import "testing"

func TestBuildBaseConfig_Required(t *testing.T) {
	if _, err := buildBaseConfig(Config{}); err == nil {
		t.Fatal("expected error when bootstrapServers is empty")
	}
}

func TestBuildBaseConfig_WithAuth(t *testing.T) {
	cfg := Config{
		BootstrapServers: "localhost:9092",
		SecurityProtocol: "SASL_SSL",
		Sasl: SaslConfig{
			Mechanism: "PLAIN",
			Username:  "user",
			Password:  "pass",
		},
		Ssl: SslConfig{
			CaFile:   "ca.pem",
			CertFile: "cert.pem",
			KeyFile:  "key.pem",
			Password: "secret",
		},
	}

	config, err := buildBaseConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := map[string]string{
		"bootstrap.servers":        "localhost:9092",
		"security.protocol":        "SASL_SSL",
		"sasl.mechanism":           "PLAIN",
		"sasl.username":            "user",
		"sasl.password":            "pass",
		"ssl.ca.location":          "ca.pem",
		"ssl.certificate.location": "cert.pem",
		"ssl.key.location":         "key.pem",
		"ssl.key.password":         "secret",
	}
	for key, want := range checks {
		got, err := config.Get(key, nil)
		if err != nil || got != want {
			t.Fatalf("expected %s = %q, got %v (err=%v)", key, want, got, err)
		}
	}
}

func TestBuildClientId(t *testing.T) {
	if _, err := buildClientId(""); err == nil {
		t.Fatal("expected error for empty clientId")
	}
	id, err := buildClientId("stagecraft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty client id")
	}
}
