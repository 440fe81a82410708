package app

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "MONGO_URI", "MONGO_DB", "LOG_LEVEL", "LOG_FORMAT", "DATA_DIR", "PUSH_ENDPOINT"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("MongoURI = %q", cfg.MongoURI)
	}
	if cfg.MongoDatabase != "itorrent" {
		t.Errorf("MongoDatabase = %q", cfg.MongoDatabase)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log config = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.PushEndpoint != "" {
		t.Errorf("PushEndpoint = %q", cfg.PushEndpoint)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DB", "session")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("DATA_DIR", "/var/lib/session")
	t.Setenv("PUSH_ENDPOINT", "http://gateway:8081")

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":9090" || cfg.MongoURI != "mongodb://db:27017" || cfg.MongoDatabase != "session" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings not lowercased: %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DataDir != "/var/lib/session" || cfg.PushEndpoint != "http://gateway:8081" {
		t.Errorf("cfg = %+v", cfg)
	}
}
