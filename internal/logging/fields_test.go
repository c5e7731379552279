package logging

import "testing"

func TestRequestFields(t *testing.T) {
	fields := RequestFields("req-1", "GET", "some/key", 200)
	if fields["key"] != "some/key" || fields["request_id"] != "req-1" || fields["status"] != 200 {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestBaseFields(t *testing.T) {
	fields := BaseFields("startup", "/etc/fs-lru.toml")
	if fields["action"] != "startup" || fields["configPath"] != "/etc/fs-lru.toml" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
