package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadGatewayKeys_Simple(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewaykey")
	if err := os.WriteFile(path, []byte("mykey mysecret\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	keyID, secret, err := readGatewayKeys(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keyID != "mykey" || secret != "mysecret" {
		t.Errorf("got (%q, %q), want (mykey, mysecret)", keyID, secret)
	}
}

func TestReadGatewayKeys_SkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewaykey")
	content := "# comment\n\n  \nkey secret extra-ignored\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	keyID, secret, err := readGatewayKeys(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keyID != "key" || secret != "secret" {
		t.Errorf("got (%q, %q), want (key, secret)", keyID, secret)
	}
}

func TestReadGatewayKeys_MalformedLineRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewaykey")
	if err := os.WriteFile(path, []byte("onlyonefield\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, _, err := readGatewayKeys(path); err == nil {
		t.Error("expected error for malformed key file")
	}
}

func TestReadGatewayKeys_MissingFile(t *testing.T) {
	if _, _, err := readGatewayKeys(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing key file")
	}
}
