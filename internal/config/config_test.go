package config

import "testing"

func TestLoadDefaultTopology(t *testing.T) {
	cfg, err := Load("", "Bailey")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Self != "Bailey" {
		t.Fatalf("Self = %q, want Bailey", cfg.Self)
	}
	if cfg.Port("Bailey") != 10000 {
		t.Fatalf("Port(Bailey) = %d, want 10000", cfg.Port("Bailey"))
	}

	peers := cfg.Peers("Bailey")
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers for Bailey, got %v", peers)
	}
}

func TestLoadUnknownServerFails(t *testing.T) {
	_, err := Load("", "Nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown server name")
	}
}

func TestLoadRequiresServerName(t *testing.T) {
	_, err := Load("", "")
	if err == nil {
		t.Fatal("expected error when no server name is supplied")
	}
}

func TestReferenceTopologyIsSymmetric(t *testing.T) {
	cfg, err := LoadUnvalidated("", "")
	if err != nil {
		t.Fatalf("LoadUnvalidated: %v", err)
	}
	for name := range cfg.Servers {
		cfg.Self = name
		if err := cfg.Validate(); err != nil {
			t.Errorf("validation failed for %s: %v", name, err)
		}
	}
}

func TestAddrFormatsHostPort(t *testing.T) {
	cfg, err := Load("", "Bailey")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := cfg.Addr("Bona"), "127.0.0.1:10001"; got != want {
		t.Fatalf("Addr(Bona) = %q, want %q", got, want)
	}
}
